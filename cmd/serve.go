package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assetpipe/internal/server"
	"github.com/conneroisu/assetpipe/internal/version"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve assets over http",
	Long: `Bootstrap the asset pipeline and serve it. Assets are served under
/_content/, with health at /health, metrics at /metrics and a pipeline
report at /_diagnostics.

Development mode turns off caching headers, watches the asset roots and
pushes reloads to browsers over /_livereload.

Examples:
  assetpipe serve                   # Serve on localhost:8080
  assetpipe serve --dev             # Development mode with live reload
  assetpipe serve --dev --watch=false
  assetpipe serve -p 9000 --host 0.0.0.0`,
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, "server")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"port":  "server.port",
		"host":  "server.host",
		"dev":   "development.enabled",
		"watch": "development.watch",
	})
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger, server.Options{Version: version.Get().Short()})
	if err != nil {
		logger.Error(ctx, err, "Failed to start asset server")
		return err
	}

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info(context.Background(), "Asset server stopped")
	return nil
}
