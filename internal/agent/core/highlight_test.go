package core

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHighlightTermsStripsGrammar(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{`+title:"cloud security"^2.0 +(aws OR azure) -deprecated`, []string{"cloud", "security", "aws", "azure", "deprecated"}},
		{`"בראשית ברא"~2 AND אלהים*`, []string{"בראשית", "ברא", "אלהים"}},
		{`topics IN [שבת חג]`, []string{"topics", "שבת", "חג"}},
		{`sec?rity NOT a`, []string{"sec", "rity"}},
		{`* AND ( ) "" + -`, nil},
	}
	for _, tc := range cases {
		got := HighlightTerms(tc.query)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("HighlightTerms(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestHighlightPreviewWhenOnlySyntax(t *testing.T) {
	text := strings.Repeat("א", 150)
	got := Highlight(text, `* AND ( ) OR "a"`)
	want := strings.Repeat("א", 100) + "..."
	if len(got) != 1 || got[0] != want {
		t.Fatalf("expected first 100 runes plus ellipsis, got %q", got)
	}
}

func TestHighlightPreviewShortTextUntouched(t *testing.T) {
	got := Highlight("short passage", "missing")
	if len(got) != 1 || got[0] != "short passage" {
		t.Fatalf("unexpected preview %q", got)
	}
}

func TestHighlightWindowIsFiftyRunesEachSide(t *testing.T) {
	left := strings.Repeat("ב", 80)
	right := strings.Repeat("ג", 80)
	text := left + "שלום" + right

	got := Highlight(text, "שלום")
	if len(got) != 1 {
		t.Fatalf("expected one window, got %d", len(got))
	}
	want := "..." + strings.Repeat("ב", 50) + "שלום" + strings.Repeat("ג", 50) + "..."
	if got[0] != want {
		t.Fatalf("unexpected window %q", got[0])
	}
}

func TestHighlightNoEllipsisAtBoundaries(t *testing.T) {
	text := "Moses went up " + strings.Repeat("x", 20)
	got := Highlight(text, "moses")
	if len(got) != 1 {
		t.Fatalf("expected one window, got %d", len(got))
	}
	if strings.HasPrefix(got[0], "...") || strings.HasSuffix(got[0], "...") {
		t.Fatalf("window reaching both boundaries must not carry ellipses: %q", got[0])
	}
	if got[0] != text {
		t.Fatalf("expected whole text, got %q", got[0])
	}
}

func TestHighlightEveryMatchYieldsWindow(t *testing.T) {
	text := "Shabbat " + strings.Repeat("y", 120) + " shabbat end"
	got := Highlight(text, "+SHABBAT")
	if len(got) != 2 {
		t.Fatalf("expected two windows for two case-insensitive matches, got %d: %q", len(got), got)
	}
	if strings.HasPrefix(got[0], "...") || !strings.HasSuffix(got[0], "...") {
		t.Fatalf("first window should only be truncated on the right: %q", got[0])
	}
	if !strings.HasPrefix(got[1], "...") || strings.HasSuffix(got[1], "...") {
		t.Fatalf("second window should only be truncated on the left: %q", got[1])
	}
	// 50 runes before "shabbat", the match, then the 4 remaining runes
	if n := utf8.RuneCountInString(strings.TrimPrefix(got[1], "...")); n != 50+len("shabbat")+len(" end") {
		t.Fatalf("unexpected second window length %d", n)
	}
}
