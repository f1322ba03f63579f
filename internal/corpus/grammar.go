package corpus

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"
)

var ErrMalformedQuery = errors.New("malformed query")

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokField
	tokAnd
	tokOr
	tokNot
	tokIn
	tokPlus
	tokMinus
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokBoost
)

type token struct {
	kind   tokenKind
	text   string
	slop   int // phrase followed by ~N
	prefix bool
	boost  float64
}

// tokenize is lenient: an unterminated phrase runs to the end of the input
// and stray syntax characters are dropped.
func tokenize(input string) []token {
	rs := []rune(input)
	var out []token
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			out = append(out, token{kind: tokLParen})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen})
			i++
		case r == '[':
			out = append(out, token{kind: tokLBracket})
			i++
		case r == ']':
			out = append(out, token{kind: tokRBracket})
			i++
		case r == '+':
			out = append(out, token{kind: tokPlus})
			i++
		case r == '-':
			out = append(out, token{kind: tokMinus})
			i++
		case r == '^':
			n, next := readNumber(rs, i+1)
			if b, err := strconv.ParseFloat(n, 64); err == nil && b > 0 {
				out = append(out, token{kind: tokBoost, boost: b})
			}
			i = next
		case r == '~':
			_, i = readNumber(rs, i+1)
		case r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				j++
			}
			tok := token{kind: tokPhrase, text: strings.TrimSpace(string(rs[i+1 : min(j, len(rs))]))}
			i = j + 1
			if i < len(rs) && rs[i] == '~' {
				n, next := readNumber(rs, i+1)
				tok.slop, _ = strconv.Atoi(strings.SplitN(n, ".", 2)[0])
				if tok.slop == 0 {
					tok.slop = 1
				}
				i = next
			}
			if i < len(rs) && rs[i] == '*' {
				tok.prefix = true
				i++
			}
			out = append(out, tok)
		case r == ':':
			i++
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && !strings.ContainsRune(`()[]"^~:`, rs[j]) {
				j++
			}
			word := string(rs[i:j])
			i = j
			if i < len(rs) && rs[i] == ':' && isFieldName(word) {
				out = append(out, token{kind: tokField, text: word})
				i++
				continue
			}
			switch word {
			case "AND", "&&":
				out = append(out, token{kind: tokAnd})
			case "OR", "||":
				out = append(out, token{kind: tokOr})
			case "NOT":
				out = append(out, token{kind: tokNot})
			case "IN":
				out = append(out, token{kind: tokIn})
			default:
				out = append(out, token{kind: tokWord, text: word})
			}
		}
	}
	return out
}

func readNumber(rs []rune, i int) (string, int) {
	j := i
	for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
		j++
	}
	return string(rs[i:j]), j
}

func isFieldName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

type occur int

const (
	occurShould occur = iota
	occurMust
	occurMustNot
)

type clause struct {
	q     query.Query
	occur occur
}

type parser struct {
	toks []token
	pos  int
}

// Compile turns a query-grammar string into a bleve query. Adjacent clauses
// are OR-ed, AND binds tighter than OR, +/- mark required and excluded
// clauses. It returns ErrMalformedQuery when nothing usable remains.
func Compile(input string) (query.Query, error) {
	p := &parser{toks: tokenize(input)}
	var parts []query.Query
	for !p.done() {
		if q := p.parseOr(""); q != nil {
			parts = append(parts, q)
		}
		// unbalanced close paren
		p.accept(tokRParen)
	}
	q := combine(nil, parts, nil)
	if q == nil {
		return nil, ErrMalformedQuery
	}
	return q, nil
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() (token, bool) {
	if p.done() {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) accept(k tokenKind) bool {
	if t, ok := p.peek(); ok && t.kind == k {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr(field string) query.Query {
	var must, should, mustNot []query.Query
	for {
		t, ok := p.peek()
		if !ok || t.kind == tokRParen {
			break
		}
		if p.accept(tokOr) {
			continue
		}
		c, ok := p.parseAnd(field)
		if !ok {
			continue
		}
		switch c.occur {
		case occurMust:
			must = append(must, c.q)
		case occurMustNot:
			mustNot = append(mustNot, c.q)
		default:
			should = append(should, c.q)
		}
	}
	return combine(must, should, mustNot)
}

func (p *parser) parseAnd(field string) (clause, bool) {
	first, ok := p.parseUnary(field)
	if t, more := p.peek(); !more || t.kind != tokAnd {
		return first, ok
	}
	var must, mustNot []query.Query
	add := func(c clause, ok bool) {
		if !ok {
			return
		}
		if c.occur == occurMustNot {
			mustNot = append(mustNot, c.q)
		} else {
			must = append(must, c.q)
		}
	}
	add(first, ok)
	for p.accept(tokAnd) {
		add(p.parseUnary(field))
	}
	q := combine(must, nil, mustNot)
	return clause{q: q}, q != nil
}

func (p *parser) parseUnary(field string) (clause, bool) {
	switch {
	case p.accept(tokNot), p.accept(tokMinus):
		c, ok := p.parseUnary(field)
		c.occur = occurMustNot
		return c, ok
	case p.accept(tokPlus):
		c, ok := p.parseUnary(field)
		if c.occur != occurMustNot {
			c.occur = occurMust
		}
		return c, ok
	}
	q := p.parsePrimary(field)
	if t, ok := p.peek(); ok && t.kind == tokBoost {
		p.pos++
		if b, ok := q.(query.BoostableQuery); ok {
			b.SetBoost(t.boost)
		}
	}
	return clause{q: q}, q != nil
}

func (p *parser) parsePrimary(field string) query.Query {
	t, ok := p.peek()
	if !ok {
		return nil
	}
	p.pos++
	switch t.kind {
	case tokLParen:
		q := p.parseOr(field)
		p.accept(tokRParen)
		return q
	case tokField:
		return p.parsePrimary(t.text)
	case tokPhrase:
		return phraseQuery(t, field)
	case tokWord:
		if p.accept(tokIn) {
			return p.parseIn(t.text)
		}
		return wordQuery(t.text, field)
	}
	// operator or bracket with nothing to apply to
	return nil
}

func (p *parser) parseIn(field string) query.Query {
	if !p.accept(tokLBracket) {
		return nil
	}
	var alts []query.Query
	for {
		t, ok := p.peek()
		if !ok {
			break
		}
		p.pos++
		if t.kind == tokRBracket {
			break
		}
		var q query.Query
		switch t.kind {
		case tokWord:
			q = wordQuery(t.text, field)
		case tokPhrase:
			q = phraseQuery(t, field)
		}
		if q != nil {
			alts = append(alts, q)
		}
	}
	return combine(nil, alts, nil)
}

func combine(must, should, mustNot []query.Query) query.Query {
	switch {
	case len(must) == 0 && len(mustNot) == 0:
		if len(should) == 0 {
			return nil
		}
		if len(should) == 1 {
			return should[0]
		}
		return bleve.NewDisjunctionQuery(should...)
	case len(must) == 1 && len(should) == 0 && len(mustNot) == 0:
		return must[0]
	case len(must) > 1 && len(should) == 0 && len(mustNot) == 0:
		return bleve.NewConjunctionQuery(must...)
	}
	if len(must) == 0 && len(should) == 0 {
		must = []query.Query{bleve.NewMatchAllQuery()}
	}
	bq := query.NewBooleanQuery(must, should, mustNot)
	if len(must) == 0 {
		bq.SetMinShould(1)
	}
	return bq
}

func wordQuery(word, field string) query.Query {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil
	}
	if word == "*" {
		return bleve.NewMatchAllQuery()
	}
	if strings.Trim(word, "*?") == "" {
		return nil
	}
	lower := strings.ToLower(word)
	var q query.Query
	switch {
	case strings.HasSuffix(lower, "*") && !strings.ContainsAny(strings.TrimSuffix(lower, "*"), "*?"):
		q = bleve.NewPrefixQuery(strings.TrimSuffix(lower, "*"))
	case strings.ContainsAny(lower, "*?"):
		q = bleve.NewWildcardQuery(lower)
	default:
		q = bleve.NewMatchQuery(word)
	}
	return withField(q, field)
}

func phraseQuery(t token, field string) query.Query {
	words := strings.Fields(t.text)
	if len(words) == 0 {
		return nil
	}
	switch {
	case t.prefix:
		last := bleve.NewPrefixQuery(strings.ToLower(strings.TrimRight(words[len(words)-1], "*")))
		if len(words) == 1 {
			return withField(last, field)
		}
		lead := bleve.NewMatchPhraseQuery(strings.Join(words[:len(words)-1], " "))
		return bleve.NewConjunctionQuery(withField(lead, field), withField(last, field))
	case t.slop > 0:
		return withField(newProximityQuery(t.text, t.slop), field)
	case len(words) == 1:
		return withField(bleve.NewMatchQuery(t.text), field)
	}
	return withField(bleve.NewMatchPhraseQuery(t.text), field)
}

func withField(q query.Query, field string) query.Query {
	if field == "" {
		return q
	}
	if fq, ok := q.(query.FieldableQuery); ok {
		fq.SetField(field)
	}
	return q
}
