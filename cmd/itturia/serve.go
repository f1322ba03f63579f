package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/runtime"
	"github.com/mohammad-safakhou/itturia/internal/server"
	"github.com/mohammad-safakhou/itturia/internal/store"
)

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Address = addr
			}
			ctx, cancel := runtime.SignalContext(cmd.Context(), a.logger)
			defer cancel()
			defer a.tracing(ctx)()

			reg, tele, err := a.metrics()
			if err != nil {
				return err
			}
			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()
			models, err := a.models(ctx, tele)
			if err != nil {
				return err
			}
			defer models.Close()
			runs, err := store.Open(ctx, a.cfg.Storage)
			if err != nil {
				return err
			}
			defer runs.Close()
			sf, err := a.sefariaClient()
			if err != nil {
				return err
			}

			if p, ok := runs.(*store.Postgres); ok {
				go pruneLoop(ctx, p, a.logger)
			}

			srv, err := server.New(ctx, server.Deps{
				Config:   a.cfg,
				Models:   models,
				Index:    idx,
				Store:    runs,
				Sefaria:  sf,
				Recorder: tele,
				Metrics:  reg,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			if !srv.Healthy() {
				a.logger.Warn("index failed validation; search endpoints return 503 until it recovers",
					zap.String("index", a.cfg.Search.IndexPath))
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}

// pruneLoop drops expired runs hourly; Redis and the memory store expire on their own.
func pruneLoop(ctx context.Context, p *store.Postgres, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PruneExpired(ctx)
			if err != nil {
				logger.Warn("prune runs", zap.Error(err))
				continue
			}
			logger.Debug("pruned runs", zap.Int64("count", n))
		}
	}
}
