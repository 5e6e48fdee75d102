package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-extractor/internal/api"
	"github.com/insightdelivered/statement-extractor/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes the extractor over HTTP:

  GET  /api/health    service status
  POST /api/extract   JSON {filename, text, banks} or multipart field "file"
  GET  /metrics       Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}

		m := metrics.New()
		h := &api.Handler{
			NewExtractor: extractorFactory(cfg, logger, m),
			Version:      Version,
			Logger:       logger,
		}
		app := api.NewApp(h, api.Options{
			BodyLimit: cfg.Server.BodyLimitMB << 20,
			Metrics:   m.Registry,
		})

		errc := make(chan error, 1)
		go func() { errc <- app.Listen(cfg.Server.Addr) }()
		logger.Info("server started", slog.String("addr", cfg.Server.Addr), slog.String("version", Version))
		fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓ ")+"listening on "+infoStyle.Render(cfg.Server.Addr))

		select {
		case err := <-errc:
			return err
		case <-cmd.Context().Done():
		}

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
