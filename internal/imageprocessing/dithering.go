package imageprocessing

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/makeworld-the-better-one/dither/v2"
)

// Palette quality runs from 1 (finest, slowest) to 30 (coarsest, fastest).
const (
	MinPaletteQuality = 1
	MaxPaletteQuality = 30

	// At or above this quality error diffusion is skipped and pixels are
	// mapped to the nearest palette entry.
	DiffusionCutoff = 20
)

// LevelsForQuality returns the per-channel level count of the RGB cube used
// at the given palette quality: 6 levels (216 colors) at the fine end down to
// 2 levels (8 colors) at the coarse end.
func LevelsForQuality(quality int) int {
	quality = min(max(quality, MinPaletteQuality), MaxPaletteQuality)
	levels := 7 - quality/5
	return min(max(levels, 2), 6)
}

// CubePalette builds an evenly spaced RGB cube palette.
func CubePalette(levels int) color.Palette {
	if levels < 2 {
		levels = 2
	}
	palette := make(color.Palette, 0, levels*levels*levels)
	step := func(i int) uint8 { return uint8((i * 255) / (levels - 1)) }
	for r := 0; r < levels; r++ {
		for g := 0; g < levels; g++ {
			for b := 0; b < levels; b++ {
				palette = append(palette, color.RGBA{R: step(r), G: step(g), B: step(b), A: 0xff})
			}
		}
	}
	return palette
}

// Quantize maps img onto the cube palette for quality. Below DiffusionCutoff
// it applies Floyd-Steinberg dithering. When keepTransparency is set, a
// transparent entry is appended to the palette and pixels under half alpha
// map to it.
func Quantize(img image.Image, quality int, keepTransparency bool) *image.Paletted {
	if img == nil {
		return nil
	}

	palette := CubePalette(LevelsForQuality(quality))
	opaque := Flatten(img, color.White)
	bounds := opaque.Bounds()

	var paletted *image.Paletted
	if quality < DiffusionCutoff {
		ditherer := dither.NewDitherer(palette)
		ditherer.Matrix = dither.FloydSteinberg
		paletted = ditherer.DitherPaletted(opaque)
	} else {
		paletted = image.NewPaletted(bounds, palette)
		draw.Draw(paletted, bounds, opaque, bounds.Min, draw.Src)
	}

	if !keepTransparency {
		return paletted
	}

	withAlpha := make(color.Palette, 0, len(paletted.Palette)+1)
	withAlpha = append(withAlpha, paletted.Palette...)
	withAlpha = append(withAlpha, color.Transparent)
	paletted.Palette = withAlpha
	transparentIndex := uint8(len(withAlpha) - 1)

	src := img.Bounds()
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			if IsTransparentAt(img, x, y) {
				paletted.SetColorIndex(x, y, transparentIndex)
			}
		}
	}
	return paletted
}

// TransparentIndex returns the palette index of the first fully transparent
// entry, or -1.
func TransparentIndex(palette color.Palette) int {
	for i, c := range palette {
		if _, _, _, a := c.RGBA(); a == 0 {
			return i
		}
	}
	return -1
}
