package core

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func TestComposeCleansModelOutput(t *testing.T) {
	cases := map[string]string{
		"```\n+שבת +מלאכה\n```":            "+שבת +מלאכה",
		"Query: \"ברית מילה\"~3":           "\"ברית מילה\"~3",
		"`title:ברכות`":                    "title:ברכות",
		"  נר חנוכה \nexplanation follows": "נר חנוכה",
	}
	for raw, want := range cases {
		lm := &scriptedModel{compose: []reply{ok(raw)}}
		q := NewQueryComposer(lm, zap.NewNop()).Compose(context.Background(), "שאלה", nil)
		if q.Text != want || q.Fallback {
			t.Fatalf("Compose(%q) = %+v, want %q", raw, q, want)
		}
	}
}

func TestComposeFallsBackToQuotedQuestion(t *testing.T) {
	for _, r := range []reply{fail("boom"), ok("   "), ok("```\n```")} {
		lm := &scriptedModel{compose: []reply{r}}
		q := NewQueryComposer(lm, zap.NewNop()).Compose(context.Background(), "מהי תשובה?", nil)
		if q.Text != `"מהי תשובה?"` || !q.Fallback {
			t.Fatalf("expected literal fallback, got %+v", q)
		}
	}
}

func TestComposePromptListsFailures(t *testing.T) {
	prompt := composePrompt("q", []Failure{{Query: "a", Reason: "no results"}, {Query: "b", Reason: "חסר"}})
	if !containsAll(prompt, "1. a (reason: no results)", "2. b (reason: חסר)", "Do not repeat") {
		t.Fatalf("prompt missing failures:\n%s", prompt)
	}
	if strings.Contains(composePrompt("q", nil), "Previous queries") {
		t.Fatalf("first-round prompt must not mention previous queries")
	}
}

func TestSynthesizeFallbacks(t *testing.T) {
	s := NewAnswerSynthesizer(&scriptedModel{}, zap.NewNop())
	if got, _ := s.Synthesize(context.Background(), "q", nil); got != noEvidenceAnswer {
		t.Fatalf("unexpected empty-evidence answer %q", got)
	}
	s = NewAnswerSynthesizer(&scriptedModel{answer: []reply{ok("  ")}}, zap.NewNop())
	got, failed := s.Synthesize(context.Background(), "q", []Candidate{{Title: "t"}})
	if !failed || got != answerErrorPrefix+errEmptyAnswer.Error() {
		t.Fatalf("unexpected answer %q", got)
	}
}
