package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func providersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the enabled language model providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := a.models(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer models.Close()
			bold := lipgloss.NewStyle().Bold(true)
			for _, name := range models.Names() {
				lm, _ := models.Get(name)
				line := fmt.Sprintf("%-12s %-10s %s", name, a.cfg.LLM.Providers[name].Type, lm.Model())
				if name == models.Default() {
					line = bold.Render(line + "  (default)")
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}
