package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/provider"
)

var (
	_ core.Recorder     = (*Telemetry)(nil)
	_ provider.Observer = (*Telemetry)(nil)
)

func TestRecorderCounters(t *testing.T) {
	tel, err := New(prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tel.RoundCompleted(1, 3, core.DecisionRefine)
	tel.RoundCompleted(2, 3, core.DecisionAccept)
	tel.FallbackUsed("compose")
	tel.FallbackUsed("compose")
	tel.SearchObserved(time.Millisecond, 0, errors.New("closed"))
	tel.SessionFinished(core.OutcomeAccepted, 2, 6, time.Second)

	if got := testutil.ToFloat64(tel.rounds.WithLabelValues("REFINE")); got != 1 {
		t.Fatalf("expected 1 refine round, got %v", got)
	}
	if got := testutil.ToFloat64(tel.fallbacks.WithLabelValues("compose")); got != 2 {
		t.Fatalf("expected 2 compose fallbacks, got %v", got)
	}
	if got := testutil.ToFloat64(tel.searchErrors); got != 1 {
		t.Fatalf("expected 1 search error, got %v", got)
	}
	if got := testutil.ToFloat64(tel.sessions.WithLabelValues("accepted")); got != 1 {
		t.Fatalf("expected 1 accepted session, got %v", got)
	}
}

func TestObserveLLMAndIndexGauge(t *testing.T) {
	tel, err := New(prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tel.ObserveLLM("local", "aya", time.Second, 120, 30, nil)
	tel.ObserveLLM("local", "aya", time.Second, 10, 0, errors.New("timeout"))
	if got := testutil.ToFloat64(tel.llmTokens.WithLabelValues("local", "aya", "prompt")); got != 130 {
		t.Fatalf("expected 130 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(tel.llmRequests.WithLabelValues("local", "aya", "error")); got != 1 {
		t.Fatalf("expected 1 failed request, got %v", got)
	}
	tel.SetIndexHealthy(true)
	if testutil.ToFloat64(tel.indexHealthy) != 1 {
		t.Fatalf("expected healthy gauge")
	}
	tel.SetIndexHealthy(false)
	if testutil.ToFloat64(tel.indexHealthy) != 0 {
		t.Fatalf("expected unhealthy gauge")
	}
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg, nil); err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := New(reg, nil); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
