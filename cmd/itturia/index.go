package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/corpus"
	"github.com/mohammad-safakhou/itturia/internal/runtime"
)

func indexCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Index .txt and .html files under dir into the corpus index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = a.cfg.Search.IngestMode
			}
			ctx, cancel := runtime.SignalContext(cmd.Context(), a.logger)
			defer cancel()

			idx, err := corpus.OpenOrCreate(a.cfg.Search.IndexPath,
				corpus.WithLogger(a.logger.Named("corpus")),
				corpus.WithNativeHighlights(a.cfg.Search.NativeHighlights))
			if err != nil {
				return err
			}
			defer idx.Close()

			n, err := corpus.NewIngester(idx, mode, a.cfg.Search.BatchSize, a.logger.Named("ingest")).IngestDir(ctx, args[0])
			if err != nil {
				return err
			}
			total, _ := idx.Count()
			a.logger.Info("indexing finished", zap.Int("passages", n), zap.Uint64("total", total))
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d passages (%d in index)\n", n, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "line or file (default from search.ingest_mode)")
	return cmd
}

func validateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the corpus index opens and answers a match-all query",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()
			if !idx.Validate(cmd.Context()) {
				return fmt.Errorf("index %s failed validation", a.cfg.Search.IndexPath)
			}
			n, err := idx.Count()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d passages in %s\n", n, a.cfg.Search.IndexPath)
			return nil
		},
	}
}
