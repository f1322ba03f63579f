package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/runtime"
	"github.com/mohammad-safakhou/itturia/internal/tui"
)

type askOptions struct {
	provider      string
	numResults    int
	maxIterations int
	format        string
}

func askCmd(a *app) *cobra.Command {
	var o askOptions
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch o.format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q (text, json or yaml)", o.format)
			}
			ctx, cancel := runtime.SignalContext(cmd.Context(), a.logger)
			defer cancel()
			defer a.tracing(ctx)()

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
			lm, err := models.Get(o.provider)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var em core.StepEmitter
			if o.format == "text" {
				em = core.EmitterFunc(func(s core.Step) { fmt.Fprintln(out, tui.RenderStep(s)) })
			}
			res, err := a.loop(lm, idx, nil).Run(ctx, core.Request{
				Question:      strings.Join(args, " "),
				NumResults:    o.numResults,
				MaxIterations: o.maxIterations,
				Emitter:       em,
			})
			if err != nil {
				return err
			}
			return writeResult(out, o.format, res)
		},
	}
	cmd.Flags().StringVarP(&o.provider, "provider", "p", "", "language model provider (default from llm.default)")
	cmd.Flags().IntVarP(&o.numResults, "num-results", "n", 0, "hits per search round (default from loop.num_results)")
	cmd.Flags().IntVarP(&o.maxIterations, "max-iterations", "i", 0, "maximum search rounds (default from loop.max_iterations)")
	cmd.Flags().StringVarP(&o.format, "format", "f", "text", "output format: text, json or yaml")
	return cmd
}

func writeResult(w io.Writer, format string, res core.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(res)
	}
	_, err := fmt.Fprintln(w, "\n"+tui.RenderResult(res, 0))
	return err
}
