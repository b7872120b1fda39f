package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/orchestrator"
	"github.com/rmitchellscott/chatsnap/internal/rendering"
	"github.com/rmitchellscott/chatsnap/internal/utils"
)

type exportFlags struct {
	input       string
	requestFile string
	format      string
	scale       int
	quality     int
	transparent bool
	deviceFrame bool
	frames      int
	frameMillis int
	gifQuality  int
	repeat      int
	delivery    string
	width       int
	height      int
	selector    string
	noProgress  bool
}

func newExportCommand() *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a chat mockup to an image, document or animation",
		Long: `Export captures a chat mockup and writes it in the requested format.

The input is an HTML file rendered by the configured browser renderer, or an
already rendered PNG/JPEG file or image URL captured as-is.`,
		Example: `  chatsnap export --input chat.html --width 375 --height 812 --format png --scale 2
  chatsnap export --input chat.png --format gif --frames 5 --frame-duration 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "HTML file, image file or image URL to export")
	flags.StringVar(&f.requestFile, "request", "", "YAML file with export options; flags override it")
	flags.StringVarP(&f.format, "format", "f", "png", "output format: "+strings.Join(export.FormatNames(), ", "))
	flags.IntVarP(&f.scale, "scale", "s", 2, "pixel ratio, 1 to 4")
	flags.IntVarP(&f.quality, "quality", "q", 0, "jpeg quality 1-100, 0 uses the configured default")
	flags.BoolVar(&f.transparent, "transparent", false, "keep a transparent background")
	flags.BoolVar(&f.deviceFrame, "device-frame", false, "wrap the capture in a device bezel")
	flags.IntVar(&f.frames, "frames", 0, "number of animation frames (gif)")
	flags.IntVar(&f.frameMillis, "frame-duration", 0, "frame duration in milliseconds (gif)")
	flags.IntVar(&f.gifQuality, "gif-quality", 0, "gif quality 1-30, lower is better")
	flags.IntVar(&f.repeat, "repeat", 0, "gif loop count, 0 loops forever, -1 plays once")
	flags.StringVarP(&f.delivery, "delivery", "d", "download", "download or clipboard")
	flags.IntVar(&f.width, "width", 375, "layout width in CSS pixels for HTML input")
	flags.IntVar(&f.height, "height", 812, "layout height in CSS pixels for HTML input")
	flags.StringVar(&f.selector, "selector", "", "CSS selector of the node to capture in HTML input")
	flags.BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runExport(cmd *cobra.Command, f *exportFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	req, err := f.request(cmd)
	if err != nil {
		return err
	}

	target, raster, err := f.target(ctx, cfg)
	if err != nil {
		return err
	}
	var renderer rendering.Renderer
	if raster {
		renderer = rendering.NewRasterRenderer()
	}

	p, err := newPipeline(ctx, cfg, renderer)
	if err != nil {
		return err
	}
	defer p.Close()

	orch := orchestrator.New(orchestrator.Options{
		Capture:            p.capture,
		Encoders:           p.encoders,
		Delivery:           p.delivery,
		Metrics:            p.metrics,
		Namer:              export.NewNamer(cfg.ProductName, nil),
		DefaultQuality:     cfg.DefaultQuality,
		DefaultGIFQuality:  cfg.DefaultGIFQuality,
		CrossOriginEnabled: true,
	})

	var bar *progressBar
	if !f.noProgress {
		bar = newProgressBar(cmd.ErrOrStderr(), string(req.Format))
		orch.Subscribe(bar.Observe)
	}

	result := orch.Export(ctx, req, target)
	if bar != nil {
		bar.Wait()
	}

	switch result.Outcome {
	case orchestrator.OutcomeSucceeded:
		if result.Location != "" {
			fmt.Fprintln(cmd.OutOrStdout(), result.Location)
		} else if req.Delivery == export.DeliverClipboard {
			fmt.Fprintf(cmd.OutOrStdout(), "%s copied to clipboard\n", result.Filename)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s opened for printing\n", result.Filename)
		}
		return nil
	default:
		return errors.New("export failed, see log for details")
	}
}

// request builds the export request from the optional YAML file and the
// flags that were set explicitly.
func (f *exportFlags) request(cmd *cobra.Command) (export.Request, error) {
	req := export.Request{Scale: f.scale}
	if f.requestFile != "" {
		data, err := os.ReadFile(f.requestFile)
		if err != nil {
			return req, fmt.Errorf("failed to read request file: %w", err)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("failed to parse request file %s: %w", f.requestFile, err)
		}
	}

	set := cmd.Flags().Changed
	if req.Format == "" || set("format") {
		format, err := export.ParseFormat(f.format)
		if err != nil {
			return req, err
		}
		req.Format = format
	}
	if req.Scale == 0 || set("scale") {
		req.Scale = f.scale
	}
	if set("quality") {
		req.Quality = f.quality
	}
	if set("transparent") {
		req.TransparentBackground = f.transparent
	}
	if set("device-frame") {
		req.IncludeDeviceFrame = f.deviceFrame
	}
	if set("frames") {
		req.FrameCount = f.frames
	}
	if set("frame-duration") {
		req.FrameDuration = f.frameMillis
	}
	if set("gif-quality") {
		req.GIFQuality = f.gifQuality
	}
	if set("repeat") {
		req.Repeat = f.repeat
	}
	if req.Delivery == "" || set("delivery") {
		req.Delivery = export.DeliveryMode(strings.ToLower(f.delivery))
	}
	return req, nil
}

// target loads the input. The boolean reports a raster input, which bypasses
// the configured browser renderer.
func (f *exportFlags) target(ctx context.Context, cfg config.Config) (rendering.Target, bool, error) {
	name := strings.TrimSuffix(filepath.Base(f.input), filepath.Ext(f.input))

	switch {
	case strings.HasPrefix(f.input, "http://") || strings.HasPrefix(f.input, "https://"):
		if err := utils.URLPolicyFromEnv().Validate(ctx, f.input); err != nil {
			return rendering.Target{}, false, err
		}
		img, format, err := imageprocessing.LoadImageFromURL(ctx, f.input, cfg.RenderTimeout)
		if err != nil {
			return rendering.Target{}, false, err
		}
		logging.DebugWithComponent(logging.ComponentCLI, "Loaded image input", "url", f.input, "format", format)
		return rendering.Target{Name: name, Raster: img}, true, nil

	case isHTML(f.input):
		if cfg.Renderer == "raster" {
			return rendering.Target{}, false, fmt.Errorf("HTML input needs a browser renderer, RENDERER is %q", cfg.Renderer)
		}
		html, err := os.ReadFile(f.input)
		if err != nil {
			return rendering.Target{}, false, fmt.Errorf("failed to read input: %w", err)
		}
		t := rendering.Target{Name: name, HTML: string(html), Selector: f.selector, Width: f.width, Height: f.height}
		return t, false, t.Validate()

	default:
		img, err := imageprocessing.LoadImageFile(f.input)
		if err != nil {
			return rendering.Target{}, false, err
		}
		return rendering.Target{Name: name, Raster: img}, true, nil
	}
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
