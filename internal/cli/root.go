// Package cli wires the export pipeline into the chatsnap command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// NewRootCommand builds the chatsnap command tree.
func NewRootCommand() *cobra.Command {
	var (
		configFile string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "chatsnap",
		Short: "Export chat mockups as PNG, JPEG, SVG, PDF or GIF",
		Long: `chatsnap captures a rendered chat mockup and exports it as a still image,
a vector-wrapped raster, a printable document or an animated GIF.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := config.LoadFile(configFile); err != nil {
					return err
				}
			}
			opts := logging.OptionsFromEnv()
			if logLevel != "" {
				opts.Level = logging.ParseLevel(logLevel)
			}
			logging.Setup(opts)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML settings file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error; overrides LOG_LEVEL")

	root.AddCommand(newExportCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
