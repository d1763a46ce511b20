package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/factory"
	"github.com/mikey/llm-answer-bot/internal/health"
	"github.com/mikey/llm-answer-bot/internal/logging"
	"github.com/mikey/llm-answer-bot/internal/utils"
)

// Options selects the configuration source and the adapter process being built
type Options struct {
	ConfigFile string
	EnvFile    string
	Adapter    string
}

// BuildContainer creates and configures a dependency injection container for an adapter process
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.Load(config.Options{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile})
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		logger, err := logging.InitLogger(cfg.GetLogging(), cfg.LogFile(opts.Adapter))
		if err != nil {
			return nil, err
		}
		return logger.With(zap.String("adapter", opts.Adapter)), nil
	}); err != nil {
		return nil, err
	}

	if err := provideModel(container); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLedgerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewChannelFactory); err != nil {
		return nil, err
	}

	// Register readiness endpoint
	if err := container.Provide(func(cfg *config.Config, service *core.ModelService, logger *zap.Logger) *health.Server {
		return health.NewServer(cfg.GetHealth().Listen, service, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideModel registers the text processor, the model factory and the shared model service
func provideModel(container *dig.Container) error {
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}
	if err := container.Provide(factory.NewModelFactory); err != nil {
		return err
	}
	return container.Provide(func(f *factory.ModelFactory) (*core.ModelService, error) {
		return f.CreateModelService()
	})
}
