package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/itturia/internal/logging"
	"github.com/mohammad-safakhou/itturia/mcp"
)

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the corpus tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol
			a.logger = logging.FileOnly(a.cfg.General, a.cfg.Telemetry)
			ctx := cmd.Context()
			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()
			models, err := a.models(ctx, nil)
			if err != nil {
				return err
			}
			defer models.Close()
			sf, err := a.sefariaClient()
			if err != nil {
				return err
			}
			server := mcp.NewServer(version, mcp.Deps{
				Index:   idx,
				Models:  models,
				Loop:    a.cfg.Loop,
				Sefaria: sf,
				Logger:  a.logger,
			})
			return mcp.Serve(ctx, server)
		},
	}
}
