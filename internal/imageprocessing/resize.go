package imageprocessing

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Scale resizes img by an integer factor. Factor 1 returns a copy so callers
// can mutate the result freely.
func Scale(img image.Image, factor int) *image.RGBA {
	if img == nil {
		return nil
	}
	if factor < 1 {
		factor = 1
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*factor, bounds.Dy()*factor))
	if factor == 1 {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}

	// CatmullRom keeps text edges in chat bubbles crisp at 2x and 3x
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}

// GetScaledDimensions calculates the scaled dimensions that fit within the target while preserving aspect ratio
func GetScaledDimensions(srcWidth, srcHeight, targetWidth, targetHeight int) (int, int) {
	scaleX := float64(targetWidth) / float64(srcWidth)
	scaleY := float64(targetHeight) / float64(srcHeight)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	newWidth := int(float64(srcWidth) * scale)
	newHeight := int(float64(srcHeight) * scale)

	return newWidth, newHeight
}

// Device frame geometry in CSS pixels; multiplied by the capture scale.
const (
	DeviceFrameBezel  = 14
	DeviceFrameRadius = 44
)

// DeviceFrameColor is the bezel color shared with the HTML page builder.
var DeviceFrameColor = color.RGBA{R: 0x1c, G: 0x1c, B: 0x1e, A: 0xff}

// AddDeviceFrame surrounds img with a rounded phone bezel. Pixels outside the
// rounded outline stay transparent.
func AddDeviceFrame(img image.Image, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	bezel := DeviceFrameBezel * scale
	radius := DeviceFrameRadius * scale

	bounds := img.Bounds()
	w := bounds.Dx() + 2*bezel
	h := bounds.Dy() + 2*bezel
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	mask := roundedRect{w: w, h: h, r: radius}
	draw.DrawMask(out, out.Bounds(), &image.Uniform{C: DeviceFrameColor}, image.Point{}, mask, image.Point{}, draw.Over)

	inner := roundedRect{w: bounds.Dx(), h: bounds.Dy(), r: max(radius-bezel, 0)}
	screen := image.Rect(bezel, bezel, bezel+bounds.Dx(), bezel+bounds.Dy())
	draw.DrawMask(out, screen, img, bounds.Min, inner, image.Point{}, draw.Over)
	return out
}

// roundedRect is an alpha mask of a w x h rectangle with corner radius r.
type roundedRect struct {
	w, h, r int
}

func (m roundedRect) ColorModel() color.Model { return color.AlphaModel }
func (m roundedRect) Bounds() image.Rectangle { return image.Rect(0, 0, m.w, m.h) }

func (m roundedRect) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return color.Transparent
	}
	cx, cy := x, y
	switch {
	case x < m.r:
		cx = m.r
	case x >= m.w-m.r:
		cx = m.w - m.r - 1
	}
	switch {
	case y < m.r:
		cy = m.r
	case y >= m.h-m.r:
		cy = m.h - m.r - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > m.r*m.r {
		return color.Transparent
	}
	return color.Opaque
}
