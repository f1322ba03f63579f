package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	highlightRadius  = 50
	previewRunes     = 100
	ellipsis         = "..."
	minHighlightTerm = 2
)

var (
	fieldPrefixPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*:`)
	modifierPattern    = regexp.MustCompile(`[\^~]\d+(?:\.\d+)?`)
	syntaxPattern      = regexp.MustCompile(`[:"'()\[\]{}^~*?\\]|\b(?:AND|OR|NOT|TO|IN)\b|[-+]`)
)

// HighlightTerms strips query-grammar syntax and returns the literal terms
// long enough to be worth highlighting.
func HighlightTerms(query string) []string {
	s := fieldPrefixPattern.ReplaceAllString(query, " ")
	s = modifierPattern.ReplaceAllString(s, " ")
	s = syntaxPattern.ReplaceAllString(s, " ")
	var terms []string
	for _, f := range strings.Fields(s) {
		if utf8.RuneCountInString(f) >= minHighlightTerm {
			terms = append(terms, f)
		}
	}
	return terms
}

// Highlight returns a window of highlightRadius runes around every
// case-insensitive match of a query term in text. Without matches it returns a
// single preview of the start of the text.
func Highlight(text, query string) []string {
	terms := HighlightTerms(query)
	if len(terms) == 0 {
		return []string{preview(text)}
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile("(?i)" + strings.Join(quoted, "|"))
	if err != nil {
		return []string{preview(text)}
	}
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{preview(text)}
	}

	runes := []rune(text)
	out := make([]string, 0, len(locs))
	bytePos, runePos := 0, 0
	for _, loc := range locs {
		runePos += utf8.RuneCountInString(text[bytePos:loc[0]])
		bytePos = loc[0]
		matchStart := runePos
		matchEnd := matchStart + utf8.RuneCountInString(text[loc[0]:loc[1]])

		start := max(0, matchStart-highlightRadius)
		end := min(len(runes), matchEnd+highlightRadius)
		snippet := string(runes[start:end])
		if start > 0 {
			snippet = ellipsis + snippet
		}
		if end < len(runes) {
			snippet += ellipsis
		}
		out = append(out, snippet)
	}
	return out
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + ellipsis
}
