package encoding

import (
	"bytes"
	"context"
	"encoding/base64"
	"text/template"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
)

// SVGLimitation is written into every SVG payload so consumers know the
// content is a bitmap.
const SVGLimitation = "Raster image in an SVG container. The chat content is embedded as a PNG and is not vectorized; scaling beyond the captured resolution will blur."

var svgTemplate = template.Must(template.New("svg").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
  <title>{{.Title}}</title>
  <desc>{{.Desc}}</desc>
  <image width="{{.Width}}" height="{{.Height}}" preserveAspectRatio="none" xlink:href="data:image/png;base64,{{.Data}}" href="data:image/png;base64,{{.Data}}"/>
</svg>
`))

// SVGEncoder wraps the PNG encoding of a bitmap in an SVG document. It is a
// raster in a vector wrapper, not a vector conversion.
type SVGEncoder struct {
	png *PNGEncoder
}

func NewSVGEncoder(software string) *SVGEncoder {
	return &SVGEncoder{png: NewPNGEncoder(software)}
}

func (e *SVGEncoder) Format() export.Format { return export.FormatSVG }

// Encode sizes the document in CSS pixels so a 2x capture keeps its density.
func (e *SVGEncoder) Encode(ctx context.Context, bitmap export.Bitmap, opts Options) ([]byte, error) {
	if err := checkBitmap(export.FormatSVG, bitmap); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &export.EncodeError{Format: export.FormatSVG, Err: err}
	}

	raster, err := imageprocessing.EncodePNG(bitmap.Image, bitmap.Scale, e.png.software)
	if err != nil {
		return nil, &export.EncodeError{Format: export.FormatSVG, Err: err}
	}

	width, height := cssSize(bitmap)
	var buf bytes.Buffer
	err = svgTemplate.Execute(&buf, struct {
		Width, Height int
		Title, Desc   string
		Data          string
	}{
		Width:  width,
		Height: height,
		Title:  xmlEscape(opts.Title),
		Desc:   SVGLimitation,
		Data:   base64.StdEncoding.EncodeToString(raster),
	})
	if err != nil {
		return nil, &export.EncodeError{Format: export.FormatSVG, Err: err}
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	template.HTMLEscape(&buf, []byte(s))
	return buf.String()
}
