package rendering

import (
	"fmt"
	"html"
	"image/color"
	"strings"

	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
)

// FrameSelector is the capture node when the device frame is enabled.
const FrameSelector = ".device-frame"

// PageOptions contains configuration for generating a capture page
type PageOptions struct {
	Width              int
	Height             int
	Title              string
	BackgroundColor    color.Color // nil renders a transparent page
	CrossOriginEnabled bool
	IncludeDeviceFrame bool
}

// PageBuilder wraps target markup into a standalone document that signals
// completion through body[data-render-complete='true'] and reports images
// that failed to load in body[data-failed-images].
type PageBuilder struct{}

// NewPageBuilder creates a new page builder
func NewPageBuilder() *PageBuilder {
	return &PageBuilder{}
}

// Build returns the capture document and the selector of the node to capture.
func (b *PageBuilder) Build(target Target, opts RenderOptions) (string, string) {
	width, height := target.Size()
	return b.Generate(PageOptions{
		Width:              width,
		Height:             height,
		Title:              target.Name,
		BackgroundColor:    opts.BackgroundColor,
		CrossOriginEnabled: opts.CrossOriginEnabled,
		IncludeDeviceFrame: opts.IncludeDeviceFrame,
	}, target.HTML), captureSelector(target, opts)
}

// Viewport returns the CSS viewport needed to lay out the target, including
// the device bezel when enabled.
func Viewport(target Target, opts RenderOptions) (int, int) {
	width, height := target.Size()
	if opts.IncludeDeviceFrame {
		width += 2 * imageprocessing.DeviceFrameBezel
		height += 2 * imageprocessing.DeviceFrameBezel
	}
	return width, height
}

func captureSelector(target Target, opts RenderOptions) string {
	switch {
	case target.Selector != "":
		return target.Selector
	case opts.IncludeDeviceFrame:
		return FrameSelector
	default:
		return DefaultSelector
	}
}

// Generate creates the complete HTML document around content.
func (b *PageBuilder) Generate(opts PageOptions, content string) string {
	background := "transparent"
	if opts.BackgroundColor != nil {
		background = cssColor(opts.BackgroundColor)
	}

	body := fmt.Sprintf(`<div id="capture-root">%s</div>`, content)
	if opts.IncludeDeviceFrame {
		body = fmt.Sprintf(`<div class="device-frame">%s</div>`, body)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	sb.WriteString(`    <meta charset="utf-8">` + "\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(opts.Title))
	fmt.Fprintf(&sb, "    <style>%s</style>\n", b.styles(opts, background))
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	fmt.Fprintf(&sb, "\n<script>%s</script>\n", b.completionScript(opts.CrossOriginEnabled))
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func (b *PageBuilder) styles(opts PageOptions, background string) string {
	css := fmt.Sprintf(`
        html, body { margin: 0; padding: 0; background: %s; }
        #capture-root { position: relative; overflow: hidden; width: %dpx; height: %dpx; background: %s; }`,
		background, opts.Width, opts.Height, background)
	if opts.IncludeDeviceFrame {
		inner := max(imageprocessing.DeviceFrameRadius-imageprocessing.DeviceFrameBezel, 0)
		css += fmt.Sprintf(`
        .device-frame { display: inline-block; padding: %dpx; border-radius: %dpx; background: %s; }
        .device-frame > #capture-root { border-radius: %dpx; }`,
			imageprocessing.DeviceFrameBezel, imageprocessing.DeviceFrameRadius,
			cssColor(imageprocessing.DeviceFrameColor), inner)
	}
	return css
}

// completionScript waits for fonts and images, then records failed images and
// sets the completion attribute. A fallback timer guarantees the signal.
func (b *PageBuilder) completionScript(crossOrigin bool) string {
	return fmt.Sprintf(`
        (function () {
            const useCORS = %t;
            const done = (failed) => {
                if (document.body.hasAttribute('data-render-complete')) return;
                document.body.setAttribute('data-failed-images', JSON.stringify(failed));
                document.body.setAttribute('data-render-complete', 'true');
            };
            setTimeout(() => done([]), 5000);

            const images = Array.from(document.querySelectorAll('#capture-root img'));
            if (useCORS) {
                for (const img of images) {
                    if (!img.hasAttribute('crossorigin')) {
                        const src = img.src;
                        img.crossOrigin = 'anonymous';
                        img.src = src;
                    }
                }
            }
            const settled = images.map((img) => new Promise((resolve) => {
                if (img.complete) { resolve(); return; }
                img.addEventListener('load', resolve, { once: true });
                img.addEventListener('error', resolve, { once: true });
            }));
            const fonts = document.fonts ? document.fonts.ready : Promise.resolve();
            Promise.all([fonts, ...settled]).then(() => {
                const failed = images.filter((img) => img.src && img.naturalWidth === 0).map((img) => img.src);
                requestAnimationFrame(() => done(failed));
            });
        })();`, crossOrigin)
}

func cssColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("rgba(%d, %d, %d, %.3f)", n.R, n.G, n.B, float64(n.A)/255)
}
