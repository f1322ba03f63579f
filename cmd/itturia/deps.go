package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/agent/telemetry"
	"github.com/mohammad-safakhou/itturia/internal/corpus"
	"github.com/mohammad-safakhou/itturia/internal/runtime"
	"github.com/mohammad-safakhou/itturia/internal/sefaria"
	"github.com/mohammad-safakhou/itturia/provider"
)

func (a *app) openIndex() (*corpus.Index, error) {
	idx, err := corpus.Open(a.cfg.Search.IndexPath,
		corpus.WithLogger(a.logger.Named("corpus")),
		corpus.WithNativeHighlights(a.cfg.Search.NativeHighlights))
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", a.cfg.Search.IndexPath, err)
	}
	return idx, nil
}

// metrics builds a private registry with the runtime collectors and the loop metrics.
func (a *app) metrics() (*prometheus.Registry, *telemetry.Telemetry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tele, err := telemetry.New(reg, a.logger.Named("telemetry"))
	if err != nil {
		return nil, nil, err
	}
	return reg, tele, nil
}

func (a *app) models(ctx context.Context, tele *telemetry.Telemetry) (*provider.Registry, error) {
	opts := []provider.Option{
		provider.WithLogger(a.logger),
		provider.WithTokenCounter(provider.NewTokenCounter("")),
	}
	if tele != nil {
		opts = append(opts, provider.WithObserver(tele))
	}
	return provider.NewRegistry(ctx, a.cfg.LLM, opts...)
}

func (a *app) loop(lm core.LanguageModel, idx core.Searcher, tele *telemetry.Telemetry) *core.Orchestrator {
	opts := []core.Option{
		core.WithLogger(a.logger.Named("loop")),
		core.WithDefaults(a.cfg.Loop.NumResults, a.cfg.Loop.MaxIterations),
		core.WithCallTimeout(a.cfg.Loop.CallTimeout),
	}
	if tele != nil {
		opts = append(opts, core.WithRecorder(tele))
	}
	return core.NewOrchestrator(lm, idx, opts...)
}

// sefariaClient returns nil when no base url is configured.
func (a *app) sefariaClient() (*sefaria.Client, error) {
	if !a.cfg.Sefaria.Enabled() {
		return nil, nil
	}
	return sefaria.New(a.cfg.Sefaria, a.logger.Named("sefaria"))
}

func (a *app) tracing(ctx context.Context) func() {
	tr, err := runtime.SetupTracing(ctx, a.cfg.Telemetry, version, a.logger)
	if err != nil {
		a.logger.Warn("tracing disabled", zap.Error(err))
		return func() {}
	}
	return func() {
		if err := tr.Shutdown(context.Background()); err != nil {
			a.logger.Warn("tracing shutdown", zap.Error(err))
		}
	}
}
