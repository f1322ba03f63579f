package corpus

import (
	"errors"
	"testing"

	"github.com/blevesearch/bleve/search/query"
)

func TestTokenizeLenient(t *testing.T) {
	toks := tokenize(`+title:"ברית מילה"~3 -(אור OR "חושך`)
	kinds := []tokenKind{tokPlus, tokField, tokPhrase, tokMinus, tokLParen, tokWord, tokOr, tokPhrase}
	if len(toks) != len(kinds) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(kinds), len(toks), toks)
	}
	for i, k := range kinds {
		if toks[i].kind != k {
			t.Fatalf("token %d: expected kind %d, got %+v", i, k, toks[i])
		}
	}
	if toks[2].slop != 3 || toks[2].text != "ברית מילה" {
		t.Fatalf("unexpected phrase token %+v", toks[2])
	}
	if toks[7].text != "חושך" {
		t.Fatalf("expected unterminated phrase to run to the end, got %q", toks[7].text)
	}
}

func TestTokenizeBoostAndPrefixPhrase(t *testing.T) {
	toks := tokenize(`שבת^2.5 "נר חנו"* x^0`)
	if len(toks) != 4 {
		t.Fatalf("unexpected tokens %+v", toks)
	}
	if toks[1].kind != tokBoost || toks[1].boost != 2.5 {
		t.Fatalf("expected boost 2.5, got %+v", toks[1])
	}
	if !toks[2].prefix {
		t.Fatalf("expected prefix phrase")
	}
	// non-positive boosts are dropped
	if toks[3].kind != tokWord {
		t.Fatalf("unexpected trailing token %+v", toks[3])
	}
}

func TestCompileShapes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"שבת", "*query.MatchQuery"},
		{"שבת מלאכה", "*query.DisjunctionQuery"},
		{"שבת AND מלאכה", "*query.ConjunctionQuery"},
		{"+שבת +מלאכה", "*query.ConjunctionQuery"},
		{"שבת -מלאכה", "*query.BooleanQuery"},
		{"NOT מלאכה", "*query.BooleanQuery"},
		{`"יהי אור"`, "*query.MatchPhraseQuery"},
		{`"יהי אור"~2`, "proximity"},
		{`"נר חנו"*`, "*query.ConjunctionQuery"},
		{"אלה*", "*query.PrefixQuery"},
		{"א?ה*ם", "*query.WildcardQuery"},
		{"*", "*query.MatchAllQuery"},
		{"topics IN [שבת חג]", "*query.DisjunctionQuery"},
		{"(שבת))", "*query.MatchQuery"},
	}
	for _, tc := range cases {
		q, err := Compile(tc.in)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.in, err)
		}
		if got := typeName(q); got != tc.want {
			t.Fatalf("Compile(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCompileFieldAndBoost(t *testing.T) {
	q, err := Compile("title:ברכות^3")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	mq, ok := q.(*query.MatchQuery)
	if !ok {
		t.Fatalf("expected match query, got %T", q)
	}
	if mq.Field() != "title" || mq.Boost() != 3 {
		t.Fatalf("expected field title boost 3, got %q %v", mq.Field(), mq.Boost())
	}
}

func TestCompileMalformed(t *testing.T) {
	for _, in := range []string{"", "   ", "AND OR", "( )", `""`, "+ -", "?*"} {
		if _, err := Compile(in); !errors.Is(err, ErrMalformedQuery) {
			t.Fatalf("Compile(%q): expected ErrMalformedQuery, got %v", in, err)
		}
	}
}

func typeName(q query.Query) string {
	switch q.(type) {
	case *query.MatchQuery:
		return "*query.MatchQuery"
	case *query.DisjunctionQuery:
		return "*query.DisjunctionQuery"
	case *query.ConjunctionQuery:
		return "*query.ConjunctionQuery"
	case *query.BooleanQuery:
		return "*query.BooleanQuery"
	case *query.MatchPhraseQuery:
		return "*query.MatchPhraseQuery"
	case *query.PrefixQuery:
		return "*query.PrefixQuery"
	case *query.WildcardQuery:
		return "*query.WildcardQuery"
	case *query.MatchAllQuery:
		return "*query.MatchAllQuery"
	case *proximityQuery:
		return "proximity"
	}
	return "other"
}
