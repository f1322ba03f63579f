package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mohammad-safakhou/itturia/config"
)

// New builds the process logger. Console output always goes to stderr so that
// stdout stays clean for command output; when telemetry.log_file is set a JSON
// copy is written there and rotated by lumberjack.
func New(general config.GeneralConfig, tele config.TelemetryConfig) *zap.Logger {
	return build(general, tele, true)
}

// FileOnly is New without the console output, for full-screen commands. It is
// a no-op logger when no log file is configured.
func FileOnly(general config.GeneralConfig, tele config.TelemetryConfig) *zap.Logger {
	return build(general, tele, false)
}

func build(general config.GeneralConfig, tele config.TelemetryConfig, console bool) *zap.Logger {
	level := parseLevel(general.LogLevel)
	if general.Debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	var cores []zapcore.Core
	if console {
		var consoleEncoder zapcore.Encoder
		if strings.EqualFold(general.LogFormat, "json") {
			consoleEncoder = jsonEncoder
		} else {
			consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		}
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level))
	}

	if path := strings.TrimSpace(tele.LogFile); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), level))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
