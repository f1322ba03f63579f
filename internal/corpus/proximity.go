package corpus

import (
	"sort"

	"github.com/blevesearch/bleve/index"
	"github.com/blevesearch/bleve/mapping"
	"github.com/blevesearch/bleve/search"
	"github.com/blevesearch/bleve/search/query"
	"github.com/blevesearch/bleve/search/searcher"
)

// proximityQuery matches every term of a phrase, in any order, with at most
// slop other words between the first and the last of them.
type proximityQuery struct {
	match *query.MatchQuery
	slop  int
}

func newProximityQuery(text string, slop int) *proximityQuery {
	mq := query.NewMatchQuery(text)
	mq.SetOperator(query.MatchQueryOperatorAnd)
	return &proximityQuery{match: mq, slop: slop}
}

func (q *proximityQuery) SetField(f string)  { q.match.SetField(f) }
func (q *proximityQuery) Field() string      { return q.match.Field() }
func (q *proximityQuery) SetBoost(b float64) { q.match.SetBoost(b) }
func (q *proximityQuery) Boost() float64     { return q.match.Boost() }

func (q *proximityQuery) Searcher(i index.IndexReader, m mapping.IndexMapping, options search.SearcherOptions) (search.Searcher, error) {
	field := q.match.Field()
	if field == "" {
		field = m.DefaultSearchField()
	}
	terms := q.terms(m, field)
	options.IncludeTermVectors = true
	s, err := q.match.Searcher(i, m, options)
	if err != nil {
		return nil, err
	}
	if len(terms) < 2 {
		return s, nil
	}
	return searcher.NewFilteringSearcher(s, func(d *search.DocumentMatch) bool {
		return within(d.FieldTermLocations, terms, q.slop)
	}), nil
}

// terms returns the distinct analyzed terms of the phrase.
func (q *proximityQuery) terms(m mapping.IndexMapping, field string) []string {
	analyzer := m.AnalyzerNamed(m.AnalyzerNameForPath(field))
	if analyzer == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, tok := range analyzer.Analyze([]byte(q.match.Match)) {
		t := string(tok.Term)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

type termPos struct {
	pos  uint64
	term int
}

// within reports whether some field holds a window covering every term in
// which at most slop positions are taken by other words.
func within(locs []search.FieldTermLocation, terms []string, slop int) bool {
	want := make(map[string]int, len(terms))
	for i, t := range terms {
		want[t] = i
	}
	byField := map[string][]termPos{}
	for _, l := range locs {
		if ti, ok := want[l.Term]; ok {
			byField[l.Field] = append(byField[l.Field], termPos{pos: l.Location.Pos, term: ti})
		}
	}
	for _, ps := range byField {
		if span, ok := minSpan(ps, len(terms)); ok && span-(len(terms)-1) <= slop {
			return true
		}
	}
	return false
}

// minSpan is the smallest distance between the first and last position of a
// window containing all n terms.
func minSpan(ps []termPos, n int) (int, bool) {
	sort.Slice(ps, func(a, b int) bool { return ps[a].pos < ps[b].pos })
	counts := make([]int, n)
	have, best, found := 0, 0, false
	lo := 0
	for hi := range ps {
		if counts[ps[hi].term] == 0 {
			have++
		}
		counts[ps[hi].term]++
		for have == n {
			if span := int(ps[hi].pos - ps[lo].pos); !found || span < best {
				best, found = span, true
			}
			counts[ps[lo].term]--
			if counts[ps[lo].term] == 0 {
				have--
			}
			lo++
		}
	}
	return best, found
}
