package core

import "context"

// ResultRetriever runs a composed query and makes sure every candidate has highlights.
type ResultRetriever struct {
	searcher Searcher
}

func NewResultRetriever(s Searcher) *ResultRetriever {
	return &ResultRetriever{searcher: s}
}

// Retrieve propagates search errors; zero hits is not an error.
func (r *ResultRetriever) Retrieve(ctx context.Context, q ComposedQuery, limit int) ([]Candidate, error) {
	hits, err := r.searcher.Search(ctx, q.Text, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		highlights := h.Highlights
		if len(highlights) == 0 {
			highlights = Highlight(h.Text, q.Text)
		}
		out = append(out, Candidate{
			Score:      h.Score,
			Title:      h.Title,
			Reference:  h.Reference,
			SourcePath: h.Path,
			RawText:    h.Text,
			Highlights: highlights,
		})
	}
	return out, nil
}
