package helpers

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripCodeFence unwraps s when it is enclosed in a ``` or ~~~ fence,
// dropping the optional language tag. Anything else is returned trimmed.
func StripCodeFence(s string) string {
	trim := strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	for _, fence := range []string{"```", "~~~"} {
		if !strings.HasPrefix(trim, fence) {
			continue
		}
		rest := trim[len(fence):]
		idx := strings.IndexByte(rest, '\n')
		if idx == -1 {
			// single-line fence like ```query```
			return strings.TrimSpace(strings.TrimSuffix(rest, fence))
		}
		rest = rest[idx+1:]
		if end := strings.LastIndex(rest, fence); end != -1 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return trim
}

// Truncate cuts s to at most n runes, appending suffix when something was cut.
func Truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}

// HTMLText returns the text content of an HTML fragment, or the input when it
// cannot be parsed.
func HTMLText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return doc.Text()
}
