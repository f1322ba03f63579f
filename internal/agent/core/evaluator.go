package core

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/helpers"
)

var (
	errNoConfidence = errors.New("no confidence value")
	errNoDecision   = errors.New("no decision token")
	errTooFewLines  = errors.New("fewer than three lines")

	labelPattern  = regexp.MustCompile(`^(?i)(confidence|score|decision|explanation|reason|ביטחון|החלטה|הסבר)(?:\s+[\p{L}]+)?\s*[:=\-]\s*(.*)$`)
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	linePrefix    = regexp.MustCompile(`^(?i)\[?line\s*\d\]?\s*`)
)

// ResultEvaluator asks the model whether a round's candidates answer the question.
type ResultEvaluator struct {
	lm     LanguageModel
	logger *zap.Logger
}

func NewResultEvaluator(lm LanguageModel, logger *zap.Logger) *ResultEvaluator {
	return &ResultEvaluator{lm: lm, logger: logger}
}

// Evaluate never fails and never accepts on a failure. The second return value
// is true when the fallback evaluation was used.
func (e *ResultEvaluator) Evaluate(ctx context.Context, question string, candidates []Candidate) (Evaluation, bool) {
	if len(candidates) == 0 {
		return Evaluation{Confidence: 0, Decision: DecisionRefine, Explanation: explainNoResults}, false
	}
	out, err := e.lm.Generate(ctx, evaluatePrompt(question, candidates))
	if err != nil {
		e.logger.Warn("evaluation failed", zap.Error(err))
		return FallbackEvaluation(), true
	}
	parsed, err := parseEvaluation(out)
	if err != nil {
		e.logger.Warn("evaluation unparsable", zap.Error(err), zap.String("raw", out))
		return FallbackEvaluation(), true
	}
	if parsed.token != "" && Decision(parsed.token) != parsed.eval.Decision {
		e.logger.Info("model decision overridden by confidence threshold",
			zap.String("token", parsed.token), zap.Float64("confidence", parsed.eval.Confidence))
	}
	e.logger.Info("evaluated", zap.Float64("confidence", parsed.eval.Confidence), zap.String("decision", string(parsed.eval.Decision)))
	return parsed.eval, false
}

type parsedEvaluation struct {
	eval  Evaluation
	token string
}

// parseEvaluation reads labeled fields in any order. Without labels it falls
// back to three positional lines: number, token, explanation.
func parseEvaluation(raw string) (parsedEvaluation, error) {
	var lines []string
	for _, l := range strings.Split(helpers.StripCodeFence(raw), "\n") {
		l = strings.TrimSpace(strings.ReplaceAll(l, "**", ""))
		l = strings.TrimSpace(linePrefix.ReplaceAllString(l, ""))
		if l != "" {
			lines = append(lines, l)
		}
	}

	var confRaw, token, explanation string
	var loose []string
	var labeled, inExplanation bool
	for _, l := range lines {
		m := labelPattern.FindStringSubmatch(l)
		if m == nil {
			if inExplanation && decisionToken(l) == "" {
				explanation += " " + l
			} else {
				loose = append(loose, l)
			}
			continue
		}
		labeled = true
		inExplanation = false
		switch strings.ToLower(m[1]) {
		case "confidence", "score", "ביטחון":
			confRaw = m[2]
		case "decision", "החלטה":
			token = m[2]
		default:
			explanation = m[2]
			inExplanation = true
		}
	}
	switch {
	case !labeled:
		if len(lines) < 3 {
			return parsedEvaluation{}, errTooFewLines
		}
		confRaw, token, explanation = lines[0], lines[1], strings.Join(lines[2:], " ")
	default:
		// unlabeled lines fill whatever the labels left out
		for _, l := range loose {
			switch {
			case token == "" && decisionToken(l) != "":
				token = l
			case confRaw == "" && numberPattern.MatchString(l):
				confRaw = l
			}
		}
	}

	num := numberPattern.FindString(confRaw)
	if num == "" {
		return parsedEvaluation{}, errNoConfidence
	}
	conf, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return parsedEvaluation{}, err
	}
	token = decisionToken(token)
	if token == "" {
		return parsedEvaluation{}, errNoDecision
	}
	ev, err := NewEvaluation(conf, strings.TrimSpace(explanation))
	if err != nil {
		return parsedEvaluation{}, err
	}
	return parsedEvaluation{eval: ev, token: token}, nil
}

// decisionToken normalizes s to ACCEPT or REFINE, or returns "".
func decisionToken(s string) string {
	t := strings.ToUpper(strings.Trim(strings.TrimSpace(s), ".*`'\""))
	if t == string(DecisionAccept) || t == string(DecisionRefine) {
		return t
	}
	return ""
}
