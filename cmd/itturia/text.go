package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func textCmd(a *app) *cobra.Command {
	var commentaries bool
	cmd := &cobra.Command{
		Use:   "text [reference]",
		Short: "Look up a reference on Sefaria; without one, show this week's parasha",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.sefariaClient()
			if err != nil {
				return err
			}
			if client == nil {
				return errors.New("sefaria.base_url is not configured")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			title := lipgloss.NewStyle().Bold(true)

			ref := strings.TrimSpace(strings.Join(args, " "))
			if ref == "" {
				p, err := client.WeeklyParasha(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, title.Render(p.NameHe), p.Ref)
				ref = p.Ref
			}
			if commentaries {
				refs, err := client.Commentaries(ctx, ref)
				if err != nil {
					return err
				}
				for _, r := range refs {
					fmt.Fprintln(out, r)
				}
				return nil
			}
			t, err := client.Text(ctx, ref)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, title.Render(t.Reference))
			fmt.Fprintln(out, t.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&commentaries, "commentaries", false, "list commentaries instead of the text")
	return cmd
}
