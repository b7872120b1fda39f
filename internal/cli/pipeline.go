package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rmitchellscott/chatsnap/internal/capture"
	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/delivery"
	"github.com/rmitchellscott/chatsnap/internal/encoding"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/metrics"
	"github.com/rmitchellscott/chatsnap/internal/rendering"
	"github.com/rmitchellscott/chatsnap/internal/storage"
	"github.com/rmitchellscott/chatsnap/internal/version"
)

// pipeline holds the collaborators an orchestrator is wired from.
type pipeline struct {
	cfg      config.Config
	renderer rendering.Renderer
	capture  *capture.Service
	encoders *encoding.Registry
	delivery *delivery.Service
	storage  storage.Backend
	metrics  *metrics.Recorder
	registry *prometheus.Registry
}

// newPipeline builds the pipeline from cfg. A non-nil renderer replaces the
// configured backend.
func newPipeline(ctx context.Context, cfg config.Config, renderer rendering.Renderer) (*pipeline, error) {
	if renderer == nil {
		var err error
		renderer, err = rendering.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
	}

	backend, err := storage.New(ctx, cfg)
	if err != nil {
		renderer.Close()
		return nil, fmt.Errorf("failed to open export storage: %w", err)
	}

	software := version.Software(cfg.ProductName)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	logging.DebugWithComponent(logging.ComponentStartup, "Pipeline ready",
		"renderer", cfg.Renderer, "storage", cfg.Storage, "document_mode", cfg.DocumentMode)

	return &pipeline{
		cfg:      cfg,
		renderer: renderer,
		capture:  capture.NewService(renderer),
		encoders: encoding.NewRegistry(encoding.Settings{Software: software, DocumentMode: cfg.DocumentMode}),
		delivery: delivery.NewService(delivery.Options{
			Sink:     backend,
			PrintTTL: cfg.PrintSurfaceTTL,
			Software: software,
		}),
		storage:  backend,
		metrics:  metrics.NewRecorder(registry),
		registry: registry,
	}, nil
}

func (p *pipeline) Close() error {
	return p.renderer.Close()
}
