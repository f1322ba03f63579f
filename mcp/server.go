// Package mcp exposes the corpus and the question loop as MCP tools over stdio.
// Tools hold no state of their own; everything they need is wired in once.
package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/helpers"
	"github.com/mohammad-safakhou/itturia/internal/logging"
	"github.com/mohammad-safakhou/itturia/internal/sefaria"
	"github.com/mohammad-safakhou/itturia/provider"
)

// Deps are shared by every tool. Sefaria, Recorder and Logger are optional.
type Deps struct {
	Index    core.Searcher
	Models   *provider.Registry
	Loop     config.LoopConfig
	Recorder core.Recorder
	Sefaria  *sefaria.Client
	Logger   *zap.Logger
}

type tools struct {
	deps   Deps
	logger *zap.Logger
}

// NewServer registers the tools. read_text, get_commentaries and
// weekly_parasha are only offered when a Sefaria client is configured.
func NewServer(version string, deps Deps) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "itturia",
		Title:   "itturia corpus search",
		Version: version,
	}, nil)
	t := &tools{deps: deps, logger: logging.OrNop(deps.Logger).Named("mcp")}
	t.addSearch(server)
	t.addAsk(server)
	if deps.Sefaria != nil {
		t.addReadText(server)
		t.addCommentaries(server)
		t.addParasha(server)
	}
	return server
}

// Serve runs server over stdin/stdout until the client disconnects or ctx ends.
func Serve(ctx context.Context, server *sdkmcp.Server) error {
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}

type searchArgs struct {
	Query      string `json:"query" jsonschema:"Query in the corpus grammar: words, \"phrases\", \"phrase\"~N, prefix*, +required, -excluded, AND/OR/NOT, field:value"`
	NumResults int    `json:"num_results,omitempty" jsonschema:"Maximum hits to return (default 10)"`
}

type searchOutput struct {
	Hits []core.Hit `json:"hits"`
}

func (t *tools) addSearch(server *sdkmcp.Server) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "search",
		Description: "Run one full-text query against the Hebrew source index and return the ranked passages.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, a searchArgs) (*sdkmcp.CallToolResult, searchOutput, error) {
		q := strings.TrimSpace(a.Query)
		if q == "" {
			return nil, searchOutput{}, fmt.Errorf("query is required")
		}
		limit := a.NumResults
		if limit < 1 || limit > 100 {
			limit = t.deps.Loop.NumResults
		}
		if limit < 1 {
			limit = 10
		}
		hits, err := t.deps.Index.Search(ctx, q, limit)
		if err != nil {
			return nil, searchOutput{}, err
		}
		if hits == nil {
			hits = []core.Hit{}
		}
		t.logger.Debug("search", zap.String("query", q), zap.Int("hits", len(hits)))
		return textResult(formatHits(hits)), searchOutput{Hits: hits}, nil
	})
}

type askArgs struct {
	Question      string `json:"question" jsonschema:"Question in Hebrew or English"`
	NumResults    int    `json:"num_results,omitempty" jsonschema:"Hits retrieved per round"`
	MaxIterations int    `json:"max_iterations,omitempty" jsonschema:"Maximum search rounds"`
	Provider      string `json:"provider,omitempty" jsonschema:"Language model provider name; empty selects the default"`
}

type askOutput struct {
	Answer  string        `json:"answer"`
	Outcome string        `json:"outcome"`
	Rounds  int           `json:"rounds"`
	Sources []core.Source `json:"sources"`
}

func (t *tools) addAsk(server *sdkmcp.Server) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the corpus: compose queries, search, judge the results and refine, then write a cited Hebrew answer.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, a askArgs) (*sdkmcp.CallToolResult, askOutput, error) {
		lm, err := t.deps.Models.Get(a.Provider)
		if err != nil {
			return nil, askOutput{}, err
		}
		opts := []core.Option{
			core.WithLogger(t.logger.Named("loop")),
			core.WithDefaults(t.deps.Loop.NumResults, t.deps.Loop.MaxIterations),
			core.WithCallTimeout(t.deps.Loop.CallTimeout),
		}
		if t.deps.Recorder != nil {
			opts = append(opts, core.WithRecorder(t.deps.Recorder))
		}
		res, err := core.NewOrchestrator(lm, t.deps.Index, opts...).Run(ctx, core.Request{
			Question:      a.Question,
			NumResults:    a.NumResults,
			MaxIterations: a.MaxIterations,
		})
		if err != nil {
			return nil, askOutput{}, err
		}
		out := askOutput{Answer: res.Answer, Outcome: string(res.Outcome), Rounds: res.Rounds, Sources: res.Sources}
		return textResult(formatAnswer(res)), out, nil
	})
}

type refArgs struct {
	Ref string `json:"ref" jsonschema:"Sefaria reference, e.g. Genesis 1:1 or בראשית א:א"`
}

func (t *tools) addReadText(server *sdkmcp.Server) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "read_text",
		Description: "Fetch the text of a reference from Sefaria.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, a refArgs) (*sdkmcp.CallToolResult, sefaria.Text, error) {
		if strings.TrimSpace(a.Ref) == "" {
			return nil, sefaria.Text{}, fmt.Errorf("ref is required")
		}
		txt, err := t.deps.Sefaria.Text(ctx, a.Ref)
		if err != nil {
			return nil, sefaria.Text{}, err
		}
		return textResult(txt.Reference + "\n" + txt.Text), txt, nil
	})
}

type commentariesOutput struct {
	Commentaries []string `json:"commentaries"`
}

func (t *tools) addCommentaries(server *sdkmcp.Server) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_commentaries",
		Description: "List the commentaries Sefaria links to a reference.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, a refArgs) (*sdkmcp.CallToolResult, commentariesOutput, error) {
		if strings.TrimSpace(a.Ref) == "" {
			return nil, commentariesOutput{}, fmt.Errorf("ref is required")
		}
		refs, err := t.deps.Sefaria.Commentaries(ctx, a.Ref)
		if err != nil {
			return nil, commentariesOutput{}, err
		}
		if len(refs) == 0 {
			return textResult("no commentaries found"), commentariesOutput{Commentaries: []string{}}, nil
		}
		return textResult(strings.Join(refs, "\n")), commentariesOutput{Commentaries: refs}, nil
	})
}

func (t *tools) addParasha(server *sdkmcp.Server) {
	type args struct{}
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "weekly_parasha",
		Description: "Return this week's Torah portion.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ args) (*sdkmcp.CallToolResult, sefaria.Parasha, error) {
		p, err := t.deps.Sefaria.WeeklyParasha(ctx)
		if err != nil {
			return nil, sefaria.Parasha{}, err
		}
		return textResult(p.NameHe + " (" + p.Ref + ")"), p, nil
	})
}

func textResult(s string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: s}}}
}

func formatHits(hits []core.Hit) string {
	if len(hits) == 0 {
		return "no results"
	}
	var b strings.Builder
	for i, h := range hits {
		ref := h.Reference
		if ref == "" {
			ref = h.Title
		}
		text := h.Text
		if len(h.Highlights) > 0 {
			text = strings.Join(h.Highlights, " ... ")
		}
		fmt.Fprintf(&b, "%d. %s [%.2f]\n%s\n", i+1, ref, h.Score, helpers.Truncate(text, 400, "…"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAnswer(res core.Result) string {
	var b strings.Builder
	b.WriteString(res.Answer)
	if len(res.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, s := range res.Sources {
			ref := s.Reference
			if ref == "" {
				ref = s.Title
			}
			fmt.Fprintf(&b, "\n- %s (%s)", ref, s.Path)
		}
	}
	return b.String()
}
