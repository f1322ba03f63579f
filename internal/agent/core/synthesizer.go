package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

var errEmptyAnswer = errors.New("model returned an empty answer")

// AnswerSynthesizer writes the final cited answer from all accumulated evidence.
type AnswerSynthesizer struct {
	lm     LanguageModel
	logger *zap.Logger
}

func NewAnswerSynthesizer(lm LanguageModel, logger *zap.Logger) *AnswerSynthesizer {
	return &AnswerSynthesizer{lm: lm, logger: logger}
}

// Synthesize returns an apology embedding the error instead of failing.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, evidence []Candidate) (string, bool) {
	if len(evidence) == 0 {
		return noEvidenceAnswer, false
	}
	out, err := s.lm.Generate(ctx, answerPrompt(question, evidence))
	answer := strings.TrimSpace(out)
	if err == nil && answer == "" {
		err = errEmptyAnswer
	}
	if err != nil {
		s.logger.Error("answer generation failed", zap.Error(err), zap.Int("evidence", len(evidence)))
		return answerErrorPrefix + err.Error(), true
	}
	return answer, false
}
