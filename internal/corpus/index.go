// Package corpus is the full-text index over the religious-text corpus.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/mapping"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/helpers"
)

var ErrIndexNotFound = errors.New("index not found")

// Passage is the indexed unit: one line or one file of a source text.
type Passage struct {
	Title     string   `json:"title"`
	Reference string   `json:"reference"`
	Path      string   `json:"path"`
	Segment   int      `json:"segment"`
	Text      string   `json:"text"`
	Topics    []string `json:"topics,omitempty"`
}

// ID is stable across re-ingestion of the same file.
func (p Passage) ID() string { return fmt.Sprintf("%s#%d", p.Path, p.Segment) }

var storedFields = []string{"title", "reference", "path", "segment", "text"}

type Index struct {
	idx              bleve.Index
	logger           *zap.Logger
	nativeHighlights bool
}

type Option func(*Index)

func WithLogger(l *zap.Logger) Option { return func(i *Index) { i.logger = l } }

// WithNativeHighlights makes Search return the index's own highlight
// fragments. Without it hits carry no highlights and callers compute them.
func WithNativeHighlights(on bool) Option { return func(i *Index) { i.nativeHighlights = on } }

func newIndex(idx bleve.Index, opts []Option) *Index {
	i := &Index{idx: idx, logger: zap.NewNop(), nativeHighlights: true}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = zap.NewNop()
	}
	return i
}

// Open opens an existing index at path.
func Open(path string, opts ...Option) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return newIndex(idx, opts), nil
}

// OpenOrCreate opens the index at path, creating it with the passage mapping
// when it does not exist yet.
func OpenOrCreate(path string, opts ...Option) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		return Open(path, opts...)
	}
	idx, err := bleve.New(path, NewMapping())
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", path, err)
	}
	return newIndex(idx, opts), nil
}

// NewMemory builds an in-memory index, used by tests and the mcp smoke mode.
func NewMemory(opts ...Option) (*Index, error) {
	idx, err := bleve.NewMemOnly(NewMapping())
	if err != nil {
		return nil, err
	}
	return newIndex(idx, opts), nil
}

// NewMapping indexes title, reference, text and topics as analyzed text and
// path as a single keyword term.
func NewMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()

	path := bleve.NewTextFieldMapping()
	path.Analyzer = keyword.Name
	path.IncludeInAll = false

	segment := bleve.NewNumericFieldMapping()
	segment.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("reference", text)
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("topics", text)
	doc.AddFieldMappingsAt("path", path)
	doc.AddFieldMappingsAt("segment", segment)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// Add indexes passages in a single batch.
func (i *Index) Add(passages ...Passage) error {
	batch := i.idx.NewBatch()
	for _, p := range passages {
		if err := batch.Index(p.ID(), p); err != nil {
			return fmt.Errorf("index %s: %w", p.ID(), err)
		}
	}
	return i.idx.Batch(batch)
}

// Search compiles the query grammar and returns at most limit hits by
// descending score.
func (i *Index) Search(ctx context.Context, q string, limit int) ([]core.Hit, error) {
	compiled, err := Compile(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, q)
	}
	if limit < 1 {
		limit = core.DefaultNumResults
	}
	req := bleve.NewSearchRequestOptions(compiled, limit, 0, false)
	req.Fields = storedFields
	if i.nativeHighlights {
		req.Highlight = bleve.NewHighlightWithStyle("html")
		req.Highlight.AddField("text")
	}
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	out := make([]core.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := core.Hit{
			Score:     h.Score,
			Title:     fieldString(h.Fields, "title"),
			Reference: fieldString(h.Fields, "reference"),
			Path:      fieldString(h.Fields, "path"),
			Text:      fieldString(h.Fields, "text"),
		}
		for _, frag := range h.Fragments["text"] {
			if s := strings.TrimSpace(helpers.HTMLText(frag)); s != "" {
				hit.Highlights = append(hit.Highlights, s)
			}
		}
		out = append(out, hit)
	}
	i.logger.Debug("search", zap.String("query", q), zap.Int("hits", len(out)), zap.Uint64("total", res.Total))
	return out, nil
}

// Validate reports whether the index answers a match-all search.
func (i *Index) Validate(ctx context.Context) bool {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 1, 0, false)
	if _, err := i.idx.SearchInContext(ctx, req); err != nil {
		i.logger.Warn("index validation failed", zap.Error(err))
		return false
	}
	return true
}

func (i *Index) Count() (uint64, error) { return i.idx.DocCount() }

func (i *Index) Close() error { return i.idx.Close() }

func fieldString(fields map[string]interface{}, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
