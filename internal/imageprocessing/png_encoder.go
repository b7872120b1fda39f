package imageprocessing

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// pixelsPerMeterAt72DPI is the pHYs density of a 1x capture.
const pixelsPerMeterAt72DPI = 2835

// EncodePNG encodes img losslessly with best compression and annotates the
// stream with a pHYs chunk (72 dpi times scale) and a tEXt Software chunk.
// Output is deterministic for identical input.
func EncodePNG(img image.Image, scale int, software string) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if scale < 1 {
		scale = 1
	}

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}

	ppm := uint32(pixelsPerMeterAt72DPI * scale)
	extra := []pngChunk{
		{name: "pHYs", write: func(data *bytes.Buffer) {
			binary.Write(data, binary.BigEndian, ppm)
			binary.Write(data, binary.BigEndian, ppm)
			data.WriteByte(1) // unit: metre
		}},
	}
	if software != "" {
		extra = append(extra, pngChunk{name: "tEXt", write: func(data *bytes.Buffer) {
			data.WriteString("Software")
			data.WriteByte(0)
			data.WriteString(software)
		}})
	}

	return insertAfterIHDR(buf.Bytes(), extra)
}

type pngChunk struct {
	name  string
	write func(*bytes.Buffer)
}

// insertAfterIHDR splices chunks in right after the header chunk, where
// pHYs and tEXt are allowed to appear.
func insertAfterIHDR(encoded []byte, chunks []pngChunk) ([]byte, error) {
	if !bytes.HasPrefix(encoded, pngSignature) {
		return nil, fmt.Errorf("not a png stream")
	}
	// signature + length(4) + "IHDR"(4) + 13 data bytes + crc(4)
	ihdrEnd := len(pngSignature) + 4 + 4 + 13 + 4
	if len(encoded) < ihdrEnd || string(encoded[12:16]) != "IHDR" {
		return nil, fmt.Errorf("png stream has no IHDR chunk")
	}

	var out bytes.Buffer
	out.Grow(len(encoded) + 64)
	out.Write(encoded[:ihdrEnd])
	for _, c := range chunks {
		writeChunk(&out, c.name, c.write)
	}
	out.Write(encoded[ihdrEnd:])
	return out.Bytes(), nil
}

// writeChunk writes a PNG chunk with proper CRC
func writeChunk(buf *bytes.Buffer, chunkType string, dataWriter func(*bytes.Buffer)) {
	var chunkData bytes.Buffer
	dataWriter(&chunkData)

	data := chunkData.Bytes()

	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.WriteString(chunkType)
	buf.Write(data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(chunkType))
	crc.Write(data)
	binary.Write(buf, binary.BigEndian, crc.Sum32())
}
