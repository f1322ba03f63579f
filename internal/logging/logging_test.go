package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/mohammad-safakhou/itturia/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itturia.log")
	logger := New(config.GeneralConfig{LogLevel: "info"}, config.TelemetryConfig{LogFile: path})
	logger.Named("loop").Info("round finished")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(b)
	if !strings.Contains(line, `"msg":"round finished"`) || !strings.Contains(line, `"logger":"loop"`) {
		t.Fatalf("unexpected log line: %s", line)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected no-op logger")
	}
}

func TestFileOnlyWithoutFileIsNop(t *testing.T) {
	logger := FileOnly(config.GeneralConfig{}, config.TelemetryConfig{})
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected a disabled core without a log file")
	}
}
