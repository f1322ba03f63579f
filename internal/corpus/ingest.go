package corpus

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

const (
	ModeLine = "line"
	ModeFile = "file"
)

// Ingester walks a directory of source texts and feeds them to an Index.
type Ingester struct {
	index     *Index
	mode      string
	batchSize int
	logger    *zap.Logger
}

func NewIngester(index *Index, mode string, batchSize int, logger *zap.Logger) *Ingester {
	if mode != ModeFile {
		mode = ModeLine
	}
	if batchSize < 1 {
		batchSize = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{index: index, mode: mode, batchSize: batchSize, logger: logger}
}

// IngestDir indexes every .txt, .html and .htm file under root and returns the
// number of passages written.
func (in *Ingester) IngestDir(ctx context.Context, root string) (int, error) {
	var pending []Passage
	total := 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := in.index.Add(pending...); err != nil {
			return err
		}
		total += len(pending)
		pending = pending[:0]
		return nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		passages, err := in.readFile(root, path)
		if err != nil {
			return err
		}
		if passages == nil {
			return nil
		}
		if len(passages) == 0 {
			in.logger.Warn("skipping empty file", zap.String("path", path))
			return nil
		}
		for _, p := range passages {
			pending = append(pending, p)
			if len(pending) >= in.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("ingest %s: %w", root, err)
	}
	if err := flush(); err != nil {
		return total, fmt.Errorf("ingest %s: %w", root, err)
	}
	in.logger.Info("ingest finished", zap.String("root", root), zap.Int("passages", total))
	return total, nil
}

// readFile returns nil for files it does not handle and an empty slice for
// handled files without text.
func (in *Ingester) readFile(root, path string) ([]Passage, error) {
	ext := strings.ToLower(filepath.Ext(path))
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var body string
	switch ext {
	case ".txt":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		body = string(b)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		article, err := readability.FromReader(f, &url.URL{Scheme: "file", Path: path})
		if err != nil {
			in.logger.Warn("readability failed", zap.String("path", path), zap.Error(err))
			return []Passage{}, nil
		}
		if t := strings.TrimSpace(article.Title); t != "" {
			title = t
		}
		body = article.TextContent
	default:
		return nil, nil
	}
	passages, err := splitPassages(body, title, path, topicsOf(root, path), in.mode)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", path, err)
	}
	return passages, nil
}

// maxLineBytes bounds a single line passage.
const maxLineBytes = 4 * 1024 * 1024

func splitPassages(body, title, path string, topics []string, mode string) ([]Passage, error) {
	out := []Passage{}
	if mode == ModeFile {
		text := strings.TrimSpace(body)
		if text != "" {
			out = append(out, Passage{Title: title, Reference: title, Path: path, Segment: 1, Text: text, Topics: topics})
		}
		return out, nil
	}
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, Passage{
			Title:     title,
			Reference: fmt.Sprintf("%s %d", title, n),
			Path:      path,
			Segment:   n,
			Text:      line,
			Topics:    topics,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", n+1, err)
	}
	return out, nil
}

// topicsOf is the directory chain between root and the file.
func topicsOf(root, path string) []string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}
