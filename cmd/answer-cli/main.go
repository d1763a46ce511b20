package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mikey/llm-answer-bot/internal/adapters/cli"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/di"
	"github.com/mikey/llm-answer-bot/internal/factory"
	"go.uber.org/zap"
)

var errEmptyQuestion = errors.New("empty question")

func main() {
	// Parse command line flags
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Validate the configuration and flags before the model client is built
	err = container.Invoke(func(flags *di.CLIFlags, cfg *config.Config) error {
		if flags.Channel != core.ChannelTelegram && flags.Channel != core.ChannelEmail {
			return fmt.Errorf("unknown channel %q (telegram, email)", flags.Channel)
		}
		return cfg.Validate()
	})
	if err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	err = container.Invoke(func(
		flags *di.CLIFlags,
		cfg *config.Config,
		logger *zap.Logger,
		service *core.ModelService,
		models *factory.ModelFactory,
	) error {
		return run(flags, cfg, logger, service, models)
	})
	if err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *di.CLIFlags, cfg *config.Config, logger *zap.Logger, service *core.ModelService, models *factory.ModelFactory) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Error("Failed to close model client", zap.Error(err))
		}
	}()

	asker := cli.NewAsker(service, logger, flags.Verbose, os.Stdout)

	if flags.EmailFile != "" {
		raw, err := os.ReadFile(flags.EmailFile)
		if err != nil {
			return fmt.Errorf("failed to read email file: %w", err)
		}
		emailCfg, err := cfg.GetEmail()
		if err != nil {
			return err
		}
		logger.Info("Drafting reply", zap.String("file", flags.EmailFile))
		_, err = asker.DraftReply(ctx, raw, emailCfg, models.GenerationParams(core.ChannelEmail))
		return err
	}

	question, err := readQuestion(flags, logger)
	if err != nil {
		return err
	}
	_, err = asker.Ask(ctx, question, models.GenerationParams(flags.Channel))
	return err
}

// readQuestion takes the question from the argument, then -file, then stdin
func readQuestion(flags *di.CLIFlags, logger *zap.Logger) (string, error) {
	var question string
	switch {
	case flags.Question != "":
		question = flags.Question
	case flags.InputFile != "":
		logger.Info("Reading question from file", zap.String("file", flags.InputFile))
		data, err := os.ReadFile(flags.InputFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		question = string(data)
	default:
		logger.Info("Reading question from stdin")
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		question = string(data)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return "", errEmptyQuestion
	}
	return question, nil
}
