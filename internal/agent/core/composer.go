package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/helpers"
)

// QueryComposer turns a question and the failed attempts so far into a query.
type QueryComposer struct {
	lm     LanguageModel
	logger *zap.Logger
}

func NewQueryComposer(lm LanguageModel, logger *zap.Logger) *QueryComposer {
	return &QueryComposer{lm: lm, logger: logger}
}

// Compose never fails: on any model problem it quotes the question verbatim.
func (c *QueryComposer) Compose(ctx context.Context, question string, failures []Failure) ComposedQuery {
	out, err := c.lm.Generate(ctx, composePrompt(question, failures))
	if err == nil {
		if q := cleanQuery(out); q != "" {
			c.logger.Info("composed query", zap.String("query", q), zap.Int("failures", len(failures)))
			return ComposedQuery{Text: q}
		}
		c.logger.Warn("composer returned no usable query", zap.String("raw", out))
	} else {
		c.logger.Warn("compose failed, using literal phrase", zap.Error(err))
	}
	return ComposedQuery{Text: `"` + question + `"`, Fallback: true}
}

// cleanQuery removes fences and a leading "query:" label models like to add.
func cleanQuery(raw string) string {
	q := helpers.StripCodeFence(raw)
	q = strings.Trim(q, "`")
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		q = q[:i]
	}
	lower := strings.ToLower(q)
	for _, label := range []string{"query:", "search query:"} {
		if strings.HasPrefix(lower, label) {
			q = q[len(label):]
			break
		}
	}
	return strings.TrimSpace(q)
}
