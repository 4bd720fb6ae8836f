package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/soundbed/internal/api"
	"github.com/keagan/soundbed/internal/config"
	"github.com/keagan/soundbed/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		m := metrics.New()
		a, err := build(cfg, m)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		go a.store.RunJanitor(ctx, cfg.Storage.SweepInterval, cfg.Storage.MaxAge)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.New(log.Logger, a.pipeline, api.Options{MaxBodyBytes: cfg.Server.MaxBodyBytes, Metrics: m, AssetDir: a.store.Dir()}).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("addr", cfg.Server.Addr).
				Str("storage", a.store.Dir()).
				Str("transcriber", a.transcriber.Backend()).
				Msg("listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown incomplete")
		}

		if cfg.Storage.PurgeOnShutdown {
			if err := a.store.Purge(); err != nil {
				log.Error().Err(err).Msg("error during cleanup")
			} else {
				log.Info().Str("storage", a.store.Dir()).Msg("temporary files removed")
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
