// Package export holds the data model shared by every stage of the export
// pipeline: formats, requests, bitmaps, frames, artifacts, progress and the
// error taxonomy.
package export

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Format is one of the five output variants.
type Format string

const (
	FormatPNG  Format = "png"  // raster, lossless
	FormatJPEG Format = "jpeg" // raster, lossy
	FormatSVG  Format = "svg"  // raster inside a vector wrapper
	FormatPDF  Format = "pdf"  // document via print surface
	FormatGIF  Format = "gif"  // animated
)

var formatInfo = map[Format]struct {
	mime string
	ext  string
}{
	FormatPNG:  {"image/png", "png"},
	FormatJPEG: {"image/jpeg", "jpg"},
	FormatSVG:  {"image/svg+xml", "svg"},
	FormatPDF:  {"application/pdf", "pdf"},
	FormatGIF:  {"image/gif", "gif"},
}

// SupportedFormats lists the formats in a stable order.
func SupportedFormats() []Format {
	return []Format{FormatPNG, FormatJPEG, FormatSVG, FormatPDF, FormatGIF}
}

// FormatNames returns the supported formats as strings, for help text.
func FormatNames() []string {
	return lo.Map(SupportedFormats(), func(f Format, _ int) string { return string(f) })
}

// ParseFormat accepts a format name case-insensitively; "jpg" is an alias of
// "jpeg".
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "jpg" {
		name = string(FormatJPEG)
	}
	f := Format(name)
	if !f.Valid() {
		return "", fmt.Errorf("unsupported format %q (expected one of %s)", s, strings.Join(FormatNames(), ", "))
	}
	return f, nil
}

func (f Format) Valid() bool {
	_, ok := formatInfo[f]
	return ok
}

// MIMEType returns the content type of the artifact produced for f.
func (f Format) MIMEType() string {
	return formatInfo[f].mime
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return formatInfo[f].ext
}

func (f Format) IsAnimated() bool { return f == FormatGIF }
func (f Format) IsLossy() bool    { return f == FormatJPEG }

// DeliveryMode selects how a finished artifact reaches the user.
type DeliveryMode string

const (
	DeliverDownload  DeliveryMode = "download"
	DeliverClipboard DeliveryMode = "clipboard"

	// DeliverPrint is implied by the document format in print mode and
	// cannot be requested directly.
	DeliverPrint DeliveryMode = "print"
)
