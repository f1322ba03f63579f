package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var orchestratorTracer trace.Tracer = otel.Tracer("itturia/internal/agent/orchestrator")

// Recorder receives loop metrics.
type Recorder interface {
	SearchObserved(elapsed time.Duration, hits int, err error)
	RoundCompleted(round, candidates int, decision Decision)
	FallbackUsed(component string)
	SessionFinished(outcome Outcome, rounds, evidence int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SearchObserved(time.Duration, int, error)         {}
func (nopRecorder) RoundCompleted(int, int, Decision)                {}
func (nopRecorder) FallbackUsed(string)                              {}
func (nopRecorder) SessionFinished(Outcome, int, int, time.Duration) {}

// Orchestrator drives the compose, retrieve, evaluate and refine loop and
// synthesizes the answer. It holds no per-session state, so one instance can
// serve concurrent Run calls.
type Orchestrator struct {
	composer    *QueryComposer
	retriever   *ResultRetriever
	evaluator   *ResultEvaluator
	synthesizer *AnswerSynthesizer

	logger        *zap.Logger
	recorder      Recorder
	numResults    int
	maxIterations int
	callTimeout   time.Duration
}

type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithDefaults sets the values used when a Request leaves them unset.
func WithDefaults(numResults, maxIterations int) Option {
	return func(o *Orchestrator) {
		if numResults > 0 {
			o.numResults = numResults
		}
		if maxIterations > 0 {
			o.maxIterations = maxIterations
		}
	}
}

// WithCallTimeout bounds every model and search call. A timed-out call is
// handled like any other failure of that call.
func WithCallTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.callTimeout = d } }

func NewOrchestrator(lm LanguageModel, searcher Searcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        zap.NewNop(),
		recorder:      nopRecorder{},
		numResults:    DefaultNumResults,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	o.composer = NewQueryComposer(lm, o.logger.Named("composer"))
	o.retriever = NewResultRetriever(searcher)
	o.evaluator = NewResultEvaluator(lm, o.logger.Named("evaluator"))
	o.synthesizer = NewAnswerSynthesizer(lm, o.logger.Named("synthesizer"))
	return o
}

// session is the per-call aggregate: question, evidence, failures and trace.
type session struct {
	question string
	round    int
	evidence []Candidate
	failures []Failure
	steps    []Step
	emitter  StepEmitter
}

// Run answers one question. The only error it returns is ErrEmptyQuestion;
// every collaborator failure is turned into a fallback value.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	limit := req.NumResults
	if limit < 1 {
		limit = o.numResults
	}
	maxIterations := req.MaxIterations
	if maxIterations < 1 {
		maxIterations = o.maxIterations
	}

	ctx, span := orchestratorTracer.Start(ctx, "loop.run",
		trace.WithAttributes(
			attribute.Int("loop.num_results", limit),
			attribute.Int("loop.max_iterations", maxIterations),
		))
	defer span.End()

	start := time.Now()
	s := &session{question: question, emitter: req.Emitter}
	outcome := OutcomeExhausted

	for round := 1; round <= maxIterations; round++ {
		s.round = round
		q := o.compose(ctx, s)

		candidates, err := o.retrieve(ctx, s, q, limit)
		if err != nil || len(candidates) == 0 {
			s.failures = append(s.failures, Failure{Query: q.Text, Reason: reasonNoResults})
			o.recorder.RoundCompleted(round, 0, DecisionRefine)
			continue
		}
		// evidence is kept even when this round is rejected below
		s.evidence = append(s.evidence, candidates...)

		ev := o.evaluate(ctx, s, candidates)
		o.recorder.RoundCompleted(round, len(candidates), ev.Decision)
		if ev.Accepted() {
			outcome = OutcomeAccepted
			break
		}
		reason := ev.Explanation
		if strings.TrimSpace(reason) == "" {
			reason = reasonInsufficient
		}
		s.failures = append(s.failures, Failure{Query: q.Text, Reason: reason})
	}

	answer := o.synthesize(ctx, s)
	result := Result{
		Steps:    s.steps,
		Answer:   answer,
		Sources:  sourcesOf(s.evidence),
		Outcome:  outcome,
		Rounds:   s.round,
		Failures: s.failures,
		Elapsed:  time.Since(start),
	}
	o.recorder.SessionFinished(outcome, s.round, len(s.evidence), result.Elapsed)
	span.SetAttributes(
		attribute.String("loop.outcome", string(outcome)),
		attribute.Int("loop.rounds", s.round),
		attribute.Int("loop.evidence", len(s.evidence)),
	)
	span.SetStatus(codes.Ok, "")
	o.logger.Info("session finished",
		zap.String("outcome", string(outcome)),
		zap.Int("rounds", s.round),
		zap.Int("evidence", len(s.evidence)),
		zap.Duration("elapsed", result.Elapsed))

	o.emit(s.emitter, func(e StepEmitter) { e.EmitResult(result) })
	return result, nil
}

func (o *Orchestrator) compose(ctx context.Context, s *session) ComposedQuery {
	ctx, span := orchestratorTracer.Start(ctx, "loop.compose", trace.WithAttributes(attribute.Int("loop.round", s.round)))
	defer span.End()
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	q := o.composer.Compose(callCtx, s.question, s.failures)
	q.Round = s.round
	if q.Fallback {
		o.recorder.FallbackUsed("compose")
		span.SetAttributes(attribute.Bool("loop.fallback", true))
	}

	step := Step{Action: actionCompose, Description: descCompose, Results: []StepEntry{QueryEntry(q)}}
	if s.round > 1 {
		step.Action = fmt.Sprintf(actionRecompose, s.round)
		step.Description = descRecompose
	}
	o.record(s, step)
	return q
}

func (o *Orchestrator) retrieve(ctx context.Context, s *session, q ComposedQuery, limit int) ([]Candidate, error) {
	ctx, span := orchestratorTracer.Start(ctx, "loop.retrieve", trace.WithAttributes(attribute.String("loop.query", q.Text)))
	defer span.End()
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	candidates, err := o.retriever.Retrieve(callCtx, q, limit)
	o.recorder.SearchObserved(time.Since(start), len(candidates), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("search failed, treating round as empty", zap.String("query", q.Text), zap.Error(err))
		candidates = nil
	}

	entries := make([]StepEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, DocumentEntry(c))
	}
	step := Step{Action: actionSearch, Description: fmt.Sprintf(descSearch, q.Text, len(candidates)), Results: entries}
	if s.round > 1 {
		step.Action = fmt.Sprintf(actionSearchAgain, s.round)
	}
	o.record(s, step)
	return candidates, err
}

func (o *Orchestrator) evaluate(ctx context.Context, s *session, candidates []Candidate) Evaluation {
	ctx, span := orchestratorTracer.Start(ctx, "loop.evaluate", trace.WithAttributes(attribute.Int("loop.candidates", len(candidates))))
	defer span.End()
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	ev, fallback := o.evaluator.Evaluate(callCtx, s.question, candidates)
	if fallback {
		o.recorder.FallbackUsed("evaluate")
	}
	span.SetAttributes(attribute.Float64("loop.confidence", ev.Confidence), attribute.String("loop.decision", string(ev.Decision)))

	step := Step{Action: actionEvaluate, Description: descEvaluate, Results: []StepEntry{EvaluationEntry(ev)}}
	if s.round > 1 {
		step.Action = fmt.Sprintf(actionEvaluateMore, s.round)
		step.Description = descEvaluateMore
	}
	o.record(s, step)
	return ev
}

func (o *Orchestrator) synthesize(ctx context.Context, s *session) string {
	ctx, span := orchestratorTracer.Start(ctx, "loop.synthesize", trace.WithAttributes(attribute.Int("loop.evidence", len(s.evidence))))
	defer span.End()
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	answer, failed := o.synthesizer.Synthesize(callCtx, s.question, s.evidence)
	if failed {
		o.recorder.FallbackUsed("synthesize")
		span.SetStatus(codes.Error, "answer generation failed")
	}
	return answer
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout > 0 {
		return context.WithTimeout(ctx, o.callTimeout)
	}
	return ctx, func() {}
}

func (o *Orchestrator) record(s *session, step Step) {
	s.steps = append(s.steps, step)
	o.emit(s.emitter, func(e StepEmitter) { e.EmitStep(step) })
}

// emit shields the loop from observer panics.
func (o *Orchestrator) emit(e StepEmitter, fn func(StepEmitter)) {
	if e == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("step observer panicked", zap.Any("panic", r))
		}
	}()
	fn(e)
}

func sourcesOf(evidence []Candidate) []Source {
	out := make([]Source, 0, len(evidence))
	for _, c := range evidence {
		out = append(out, Source{
			Title:      c.Title,
			Path:       c.SourcePath,
			Reference:  c.Reference,
			Highlights: c.Highlights,
			Score:      c.Score,
		})
	}
	return out
}
