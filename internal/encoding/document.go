package encoding

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/color"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
)

// mmPerCSSPixel converts CSS pixels (1/96 in) to millimetres.
const mmPerCSSPixel = 25.4 / 96

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        @page { size: {{.Width}}px {{.Height}}px; margin: 0; }
        html, body { margin: 0; padding: 0; }
        img { display: block; width: {{.Width}}px; height: {{.Height}}px; }
    </style>
</head>
<body>
    <img src="{{.Src}}" alt="{{.Title}}">
    <script>
        window.addEventListener('load', () => { window.focus(); window.print(); });
    </script>
</body>
</html>
`))

// PrintSurfaceEncoder builds the document format as a print surface: a page sized to
// the bitmap that opens the platform print dialog when loaded. Save as PDF in
// that dialog produces the file.
type PrintSurfaceEncoder struct{}

var _ PrintEncoder = (*PrintSurfaceEncoder)(nil)

func NewPrintEncoder() *PrintSurfaceEncoder { return &PrintSurfaceEncoder{} }

func (e *PrintSurfaceEncoder) Format() export.Format { return export.FormatPDF }

func (e *PrintSurfaceEncoder) PrintSurface(ctx context.Context, bitmap export.Bitmap, opts Options) (export.PrintJob, error) {
	if err := checkBitmap(export.FormatPDF, bitmap); err != nil {
		return export.PrintJob{}, err
	}
	if err := ctx.Err(); err != nil {
		return export.PrintJob{}, &export.EncodeError{Format: export.FormatPDF, Err: err}
	}

	raster, err := imageprocessing.EncodePNG(bitmap.Image, bitmap.Scale, "")
	if err != nil {
		return export.PrintJob{}, &export.EncodeError{Format: export.FormatPDF, Err: err}
	}

	width, height := cssSize(bitmap)
	var buf bytes.Buffer
	err = printTemplate.Execute(&buf, struct {
		Title         string
		Width, Height int
		Src           template.URL
	}{
		Title:  opts.Title,
		Width:  width,
		Height: height,
		Src:    template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(raster)),
	})
	if err != nil {
		return export.PrintJob{}, &export.EncodeError{Format: export.FormatPDF, Err: err}
	}

	return export.PrintJob{HTML: buf.Bytes(), Width: width, Height: height, Filename: opts.Title}, nil
}

// PDFEncoder writes a single-page PDF holding the bitmap at its CSS size.
type PDFEncoder struct {
	software string
}

func NewPDFEncoder(software string) *PDFEncoder {
	return &PDFEncoder{software: software}
}

func (e *PDFEncoder) Format() export.Format { return export.FormatPDF }

func (e *PDFEncoder) Encode(ctx context.Context, bitmap export.Bitmap, opts Options) ([]byte, error) {
	if err := checkBitmap(export.FormatPDF, bitmap); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &export.EncodeError{Format: export.FormatPDF, Err: err}
	}

	cssWidth, cssHeight := cssSize(bitmap)
	pageWidth := float64(cssWidth) * mmPerCSSPixel
	pageHeight := float64(cssHeight) * mmPerCSSPixel

	img := bitmap.Image
	if !opts.Transparent {
		img = imageprocessing.Flatten(img, color.White)
	}

	c := canvas.New(pageWidth, pageHeight)
	ctxCanvas := canvas.NewContext(c)
	dpmm := float64(bitmap.Width()) / pageWidth
	ctxCanvas.DrawImage(0, 0, img, canvas.DPMM(dpmm))

	var buf bytes.Buffer
	writer := pdf.New(&buf, pageWidth, pageHeight, nil)
	writer.SetInfo(opts.Title, "Chat export", "chat, export", "", e.software)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, &export.EncodeError{Format: export.FormatPDF, Err: fmt.Errorf("failed to write pdf: %w", err)}
	}
	return buf.Bytes(), nil
}
