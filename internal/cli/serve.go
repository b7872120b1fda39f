package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/pollers"
	"github.com/rmitchellscott/chatsnap/internal/server"
	"github.com/rmitchellscott/chatsnap/internal/sse"
	"github.com/rmitchellscott/chatsnap/internal/utils"
	"github.com/rmitchellscott/chatsnap/internal/version"
)

func newServeCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the export API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			logging.InfoWithComponent(logging.ComponentStartup, "Starting chatsnap", "version", version.String(),
				"renderer", cfg.Renderer, "storage", cfg.Storage)

			p, err := newPipeline(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			srv := server.New(server.Dependencies{
				Config:   cfg,
				Capture:  p.capture,
				Encoders: p.encoders,
				Delivery: p.delivery,
				Storage:  p.storage,
				Metrics:  p.metrics,
				Gatherer: p.registry,
				Events:   sse.NewService(),

				URLPolicy: utils.URLPolicyFromEnv(),
			})

			housekeeping := pollers.NewManager()
			housekeeping.Register(pollers.NewRetentionPoller(p.storage, cfg.ProductName+"-export-", cfg.Retention, time.Hour))
			housekeeping.Register(pollers.NewHealthPoller(p.metrics.Monitor(), 15*time.Minute))
			housekeeping.Register(pollers.NewSessionPoller(srv, cfg.SessionTTL, sessionSweepInterval(cfg.SessionTTL)))
			if err := housekeeping.Start(ctx); err != nil {
				return err
			}
			defer housekeeping.Stop()

			return srv.Run(ctx, ":"+cfg.Port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port, overrides PORT")
	return cmd
}

// sessionSweepInterval checks for idle sessions a few times per TTL.
func sessionSweepInterval(ttl time.Duration) time.Duration {
	return max(ttl/4, time.Minute)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			cmd.Printf("chatsnap %s (commit %s, built %s)\n", version.String(), info["gitCommit"], info["buildTime"])
			cmd.Printf("formats: %v\n", export.FormatNames())
		},
	}
}
