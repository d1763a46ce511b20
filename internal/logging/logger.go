package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/llm-answer-bot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes a logger based on configuration.
// Output goes to stderr and, when logFile is set, is appended to that file.
// A detached process whose stderr already is the log file writes it once.
func InitLogger(cfg config.LoggingConfig, logFile string) (*zap.Logger, error) {
	logConfig := baseConfig(parseLevel(cfg.Level), cfg.Format == "json")

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		if !stderrIs(logFile) {
			logConfig.OutputPaths = append(logConfig.OutputPaths, logFile)
			logConfig.ErrorOutputPaths = append(logConfig.ErrorOutputPaths, logFile)
		}
	}

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

// InitConsoleLogger initializes a console-friendly logger
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	logger, err := baseConfig(level, jsonFormat).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func baseConfig(level zapcore.Level, jsonFormat bool) zap.Config {
	var logConfig zap.Config
	if jsonFormat {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)
	return logConfig
}

func stderrIs(path string) bool {
	errInfo, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(errInfo, fileInfo)
}
