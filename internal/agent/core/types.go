package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AcceptThreshold is the confidence at or above which evidence is accepted.
const AcceptThreshold = 0.5

const (
	DefaultNumResults    = 10
	DefaultMaxIterations = 3
)

var (
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrConfidenceRange  = errors.New("confidence outside [0,1]")
	errUnknownEntryType = errors.New("unknown step entry type")
)

// LanguageModel is the only capability the loop needs from a model backend.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Hit is one ranked passage returned by a Searcher.
type Hit struct {
	Score      float64  `json:"score"`
	Title      string   `json:"title"`
	Reference  string   `json:"reference,omitempty"`
	Path       string   `json:"path"`
	Text       string   `json:"text"`
	Highlights []string `json:"highlights,omitempty"`
}

// Searcher is the full-text index capability.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	Validate(ctx context.Context) bool
}

// ComposedQuery is a query-grammar string and the round that produced it.
type ComposedQuery struct {
	Text     string `json:"text"`
	Round    int    `json:"round"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Candidate is a retrieved passage enriched with highlights.
type Candidate struct {
	Score      float64  `json:"score"`
	Title      string   `json:"title"`
	Reference  string   `json:"reference,omitempty"`
	SourcePath string   `json:"path"`
	RawText    string   `json:"text"`
	Highlights []string `json:"highlights"`
}

// Failure records a rejected query and why it was rejected.
type Failure struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionRefine Decision = "REFINE"
)

// Evaluation is the judgment of one round's candidates. Build it with
// NewEvaluation so the decision always follows the confidence.
type Evaluation struct {
	Confidence  float64  `json:"confidence"`
	Decision    Decision `json:"decision"`
	Explanation string   `json:"explanation"`
}

// NewEvaluation derives the decision from confidence.
func NewEvaluation(confidence float64, explanation string) (Evaluation, error) {
	if confidence < 0 || confidence > 1 || confidence != confidence {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrConfidenceRange, confidence)
	}
	d := DecisionRefine
	if confidence >= AcceptThreshold {
		d = DecisionAccept
	}
	return Evaluation{Confidence: confidence, Decision: d, Explanation: explanation}, nil
}

// FallbackEvaluation is used whenever the model cannot be asked or understood.
func FallbackEvaluation() Evaluation {
	return Evaluation{Confidence: 0, Decision: DecisionRefine, Explanation: ""}
}

func (e Evaluation) Accepted() bool { return e.Decision == DecisionAccept }

// EntryType tags the content of a StepEntry.
type EntryType string

const (
	EntryQuery      EntryType = "query"
	EntryDocument   EntryType = "document"
	EntryEvaluation EntryType = "evaluation"
	EntryNewQuery   EntryType = "newQuery"
)

// DocumentContent is the content of a document entry.
type DocumentContent struct {
	Title      string   `json:"title"`
	Reference  string   `json:"reference,omitempty"`
	Highlights []string `json:"highlights"`
	Score      float64  `json:"score"`
}

// EvaluationContent is the content of an evaluation entry.
type EvaluationContent struct {
	Status      string  `json:"status"` // accepted or insufficient
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// StepEntry is a tagged union: Content is a string for query and newQuery
// entries, DocumentContent for documents and EvaluationContent for evaluations.
type StepEntry struct {
	Type    EntryType `json:"type"`
	Content any       `json:"content"`
}

func QueryEntry(q ComposedQuery) StepEntry {
	if q.Round > 1 {
		return StepEntry{Type: EntryNewQuery, Content: q.Text}
	}
	return StepEntry{Type: EntryQuery, Content: q.Text}
}

func DocumentEntry(c Candidate) StepEntry {
	return StepEntry{Type: EntryDocument, Content: DocumentContent{
		Title:      c.Title,
		Reference:  c.Reference,
		Highlights: c.Highlights,
		Score:      c.Score,
	}}
}

func EvaluationEntry(e Evaluation) StepEntry {
	status := "insufficient"
	if e.Accepted() {
		status = "accepted"
	}
	return StepEntry{Type: EntryEvaluation, Content: EvaluationContent{
		Status:      status,
		Confidence:  e.Confidence,
		Explanation: e.Explanation,
	}}
}

// UnmarshalJSON restores the concrete content type from the tag.
func (s *StepEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type    EntryType       `json:"type"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Type = raw.Type
	switch raw.Type {
	case EntryQuery, EntryNewQuery:
		var text string
		if err := json.Unmarshal(raw.Content, &text); err != nil {
			return err
		}
		s.Content = text
	case EntryDocument:
		var doc DocumentContent
		if err := json.Unmarshal(raw.Content, &doc); err != nil {
			return err
		}
		s.Content = doc
	case EntryEvaluation:
		var ev EvaluationContent
		if err := json.Unmarshal(raw.Content, &ev); err != nil {
			return err
		}
		s.Content = ev
	default:
		return fmt.Errorf("%w: %q", errUnknownEntryType, raw.Type)
	}
	return nil
}

// Step is one trace record of the loop.
type Step struct {
	Action      string      `json:"action"`
	Description string      `json:"description"`
	Results     []StepEntry `json:"results"`
}

// Source is a cited passage in the final result.
type Source struct {
	Title      string   `json:"title"`
	Path       string   `json:"path"`
	Reference  string   `json:"reference,omitempty"`
	Highlights []string `json:"highlights"`
	Score      float64  `json:"score"`
}

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeExhausted Outcome = "exhausted"
)

// Result is the final output of a session.
type Result struct {
	Steps    []Step        `json:"steps"`
	Answer   string        `json:"answer"`
	Sources  []Source      `json:"sources"`
	Outcome  Outcome       `json:"outcome"`
	Rounds   int           `json:"rounds"`
	Failures []Failure     `json:"failures,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Request holds the invocation parameters of one session.
type Request struct {
	Question      string
	NumResults    int
	MaxIterations int
	Emitter       StepEmitter
}
