package di

import (
	"flag"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Model flags; empty values keep the configured settings
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	// Generation flags
	Channel     string
	MaxTokens   int
	Temperature float64

	// Input flags
	Question   string
	InputFile  string
	EmailFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
	EnvFile    string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet defines the CLI flags on fs and parses args.
// The first positional argument, if any, is the question.
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// Model flags
	fs.StringVar(&flags.Provider, "provider", "", "Model provider (openai, gemini, bedrock)")
	fs.StringVar(&flags.Model, "model", "", "Model name or Bedrock model ID")
	fs.StringVar(&flags.BaseURL, "base-url", "", "Base URL of an OpenAI-compatible server")
	fs.StringVar(&flags.APIKey, "api-key", "", "API key for the model provider")

	// Generation flags
	fs.StringVar(&flags.Channel, "channel", core.ChannelTelegram, "Channel whose generation parameters to use (telegram, email)")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 0, "Maximum tokens in the answer (0 keeps the channel setting)")
	fs.Float64Var(&flags.Temperature, "temperature", -1, "Sampling temperature (negative keeps the channel setting)")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Read the question from a file (stdin if neither a question nor a file is given)")
	fs.StringVar(&flags.EmailFile, "eml", "", "Draft the reply to a raw email file instead of answering a question")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	fs.StringVar(&flags.EnvFile, "env-file", "", "Path to a dotenv file (default .env)")

	_ = fs.Parse(args)
	if fs.NArg() > 0 {
		flags.Question = fs.Arg(0)
	}
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration, with flags overriding file and environment values
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.Load(config.Options{ConfigFile: flags.ConfigFile, EnvFile: flags.EnvFile})
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideModel(container); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags copies the flags that were set onto the configuration
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Provider != "" {
		cfg.Set("model.provider", flags.Provider)
	}
	if flags.Model != "" {
		cfg.Set("model.name", flags.Model)
	}
	if flags.BaseURL != "" {
		cfg.Set("model.base_url", flags.BaseURL)
	}
	if flags.APIKey != "" {
		cfg.Set("model.api_key", flags.APIKey)
	}
	if flags.MaxTokens > 0 {
		cfg.Set(flags.Channel+".generation.max_tokens", flags.MaxTokens)
	}
	if flags.Temperature >= 0 {
		cfg.Set(flags.Channel+".generation.temperature", flags.Temperature)
	}
}
