package runtime

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/config"
)

func TestSetupTracingDisabled(t *testing.T) {
	tr, err := SetupTracing(context.Background(), config.TelemetryConfig{}, "test", zap.NewNop())
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSetupTracingStdout(t *testing.T) {
	tr, err := SetupTracing(context.Background(), config.TelemetryConfig{Enabled: true}, "test", zap.NewNop())
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if tr.tp == nil {
		t.Fatalf("expected a tracer provider")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background(), zap.NewNop())
	cancel()
	<-ctx.Done()
}
