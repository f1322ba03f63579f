package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/logging"
	"github.com/mohammad-safakhou/itturia/internal/tui"
)

func chatCmd(a *app) *cobra.Command {
	var providerName string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal UI that streams each question's search steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.logger = logging.FileOnly(a.cfg.General, a.cfg.Telemetry)
			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()
			count, err := idx.Count()
			if err != nil {
				return err
			}
			models, err := a.models(ctx, nil)
			if err != nil {
				return err
			}
			defer models.Close()
			lm, err := models.Get(providerName)
			if err != nil {
				return err
			}
			orch := a.loop(lm, idx, nil)
			asker := tui.AskerFunc(func(ctx context.Context, q string, em core.StepEmitter) (core.Result, error) {
				return orch.Run(ctx, core.Request{Question: q, Emitter: em})
			})
			summary := fmt.Sprintf("%d passages in %s, model %s", count, a.cfg.Search.IndexPath, lm.Name())
			_, err = tea.NewProgram(tui.New(ctx, asker, summary), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "language model provider (default from llm.default)")
	return cmd
}
