package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/llm-answer-bot/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitLoggerAppendsToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "email.log")
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logFile, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger, err := InitLogger(config.LoggingConfig{Level: "info", Format: "json"}, logFile)
	if err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	logger.Info("cycle complete")
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "previous run\n") {
		t.Errorf("log file was truncated: %q", content)
	}
	if !strings.Contains(content, "cycle complete") {
		t.Errorf("log file missing entry: %q", content)
	}
}

func TestInitLoggerCreatesDirectory(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "dir", "telegram.log")

	logger, err := InitLogger(config.LoggingConfig{Level: "debug", Format: "console"}, logFile)
	if err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()

	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
