package core

import (
	"fmt"
	"strings"
)

// Step action labels are shown to readers of the corpus, so they are in Hebrew.
const (
	actionCompose      = "יצירת שאילתת חיפוש"
	actionRecompose    = "יצירת שאילתה מחדש (ניסיון %d)"
	actionSearch       = "חיפוש במאגר"
	actionSearchAgain  = "חיפוש נוסף (ניסיון %d)"
	actionEvaluate     = "דירוג תוצאות"
	actionEvaluateMore = "דירוג תוצאות (ניסיון %d)"

	descCompose      = "נוצרה שאילתת חיפוש עבור מנוע החיפוש"
	descRecompose    = "נוצרה שאילתת חיפוש נוספת עבור מנוע החיפוש"
	descSearch       = "חיפוש במאגר עבור שאילתת חיפוש: %s\nנמצאו %d תוצאות"
	descEvaluate     = "דירוג תוצאות חיפוש"
	descEvaluateMore = "דירוג תוצאות חיפוש לניסיון זה"
)

const (
	reasonNoResults    = "no results"
	reasonInsufficient = "insufficient results"
	explainNoResults   = "no results were found"
	noEvidenceAnswer   = "I couldn't find any relevant information to answer your question."
	answerErrorPrefix  = "I encountered an error generating the answer: "
)

func composePrompt(question string, failures []Failure) string {
	var sb strings.Builder
	sb.WriteString("Create a search query for this request using the query syntax below. ")
	sb.WriteString("Return only the query string, no other text.\n\n")
	sb.WriteString(QueryGrammarDoc())
	sb.WriteString("\n\nAdditional instructions:\n")
	sb.WriteString("1. Use only Hebrew terms in the query\n")
	sb.WriteString("2. The corpus is an ancient Hebrew corpus: Torah, Talmud and later rabbinic literature\n")
	sb.WriteString("3. Prefer ancient Hebrew terms and Talmudic or Aramaic expressions over modern words that are rare in those texts\n")
	fmt.Fprintf(&sb, "\nThe search request: %s", question)

	if len(failures) > 0 {
		sb.WriteString("\n\nPrevious queries that did not work:\n")
		for i, f := range failures {
			fmt.Fprintf(&sb, "%d. %s (reason: %s)\n", i+1, f.Query, f.Reason)
		}
		sb.WriteString("\nGenerate a different query that:\n")
		sb.WriteString("1. Uses other Hebrew synonyms or related terms\n")
		sb.WriteString("2. Tries broader or more general terms\n")
		sb.WriteString("3. Adjusts proximity values or uses wildcards\n")
		sb.WriteString("4. Simplifies complex expressions using +/- operators\n")
		sb.WriteString("5. Considers the IN operator for multiple alternatives\n")
		sb.WriteString("Do not repeat any of the previous queries.")
	}
	return sb.String()
}

// candidateContext renders candidates the same way for evaluation and answering.
func candidateContext(candidates []Candidate) string {
	lines := make([]string, 0, len(candidates))
	for i, c := range candidates {
		source := c.Title
		if c.Reference != "" && c.Reference != c.Title {
			source = c.Title + " (" + c.Reference + ")"
		}
		lines = append(lines, fmt.Sprintf("Result %d. Source: %s\n Text: %s", i+1, source, c.RawText))
	}
	return strings.Join(lines, "\n")
}

func evaluatePrompt(question string, candidates []Candidate) string {
	return fmt.Sprintf(`Evaluate the search results for answering this question:
Question: %s

Search Results:
%s

Reply with exactly three labeled lines and nothing else:
CONFIDENCE: a number from 0.0 to 1.0 saying how well the results can answer the question
DECISION: ACCEPT if the confidence is %.1f or more, otherwise REFINE
EXPLANATION: one line, in Hebrew, describing what information is present or missing`,
		question, candidateContext(candidates), AcceptThreshold)
}

func answerPrompt(question string, evidence []Candidate) string {
	return fmt.Sprintf(`Based on these search results, answer this question:
Question: %s

Search Results:
%s

Requirements for your answer:
1. Use only information from the search results
2. Be comprehensive but concise
3. Structure the answer clearly
4. If any aspect of the question cannot be fully answered, acknowledge this
5. Cite the source of each fact you use
6. The answer must be in Hebrew`, question, candidateContext(evidence))
}
