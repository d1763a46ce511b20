package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/di"
	"github.com/mikey/llm-answer-bot/internal/factory"
	"github.com/mikey/llm-answer-bot/internal/health"
	"github.com/mikey/llm-answer-bot/internal/pidfile"
	"github.com/mikey/llm-answer-bot/internal/ports"
	"github.com/mikey/llm-answer-bot/internal/supervisor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configFile string
	envFile    string
)

func main() {
	root := &cobra.Command{
		Use:           "answer-bot",
		Short:         "Answer French labour law questions on Telegram and by email",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml (default: search ./configs, ~/.llm-answer-bot, /etc/llm-answer-bot)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a dotenv file (default: .env)")

	root.AddCommand(adapterCmd(core.ChannelTelegram, "Run the Telegram bot"))
	root.AddCommand(adapterCmd(core.ChannelEmail, "Run the email responder"))
	root.AddCommand(adapterCmd("all", "Run the Telegram bot and the email responder"))

	if err := root.Execute(); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func adapterCmd(adapter, short string) *cobra.Command {
	return &cobra.Command{
		Use:   adapter,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := factory.ChannelNames(adapter)
			if err != nil {
				return err
			}

			// Build the dependency injection container
			container, err := di.BuildContainer(di.Options{ConfigFile: configFile, EnvFile: envFile, Adapter: adapter})
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}

			// Validate before the model client is built so a missing key is reported by name
			if err := container.Invoke(func(cfg *config.Config) error {
				return cfg.Validate(names...)
			}); err != nil {
				return err
			}

			return container.Invoke(func(
				cfg *config.Config,
				logger *zap.Logger,
				service *core.ModelService,
				channels *factory.ChannelFactory,
				healthServer *health.Server,
			) error {
				return run(adapter, names, cfg, logger, service, channels, healthServer)
			})
		},
	}
}

// run is the adapter process body once all dependencies are built
func run(
	adapter string,
	names []string,
	cfg *config.Config,
	logger *zap.Logger,
	service *core.ModelService,
	channels *factory.ChannelFactory,
	healthServer *health.Server,
) error {
	defer logger.Sync()

	pidPath := cfg.PIDFile(adapter)
	if err := pidfile.Acquire(pidPath); err != nil {
		logger.Error("Failed to acquire pid file", zap.String("path", pidPath), zap.Error(err))
		return err
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Warn("Failed to release pid file", zap.String("path", pidPath), zap.Error(err))
		}
	}()
	// "all" and a single channel adapter would answer the same messages twice
	if err := supervisor.CheckOverlap(adapter, cfg.PIDFile, os.Getpid()); err != nil {
		logger.Error("Refusing to start alongside an overlapping adapter", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Initialize(ctx); err != nil {
		logger.Error("Failed to load model", zap.Error(err))
		return err
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Error("Failed to close model client", zap.Error(err))
		}
	}()
	defer channels.Close()

	var adapters []ports.Channel
	for _, name := range names {
		ch, err := channels.CreateChannel(name)
		if err != nil {
			logger.Error("Failed to create channel", zap.String("channel", name), zap.Error(err))
			return err
		}
		adapters = append(adapters, ch)
		healthServer.Track(ch.Name())
	}

	g, gctx := errgroup.WithContext(ctx)
	if listen := cfg.GetHealth().Listen; listen != "" {
		g.Go(func() error { return healthServer.Run(gctx) })
	}
	for _, ch := range adapters {
		g.Go(func() error {
			healthServer.SetRunning(ch.Name(), true)
			defer healthServer.SetRunning(ch.Name(), false)
			if err := ch.Run(gctx); err != nil {
				return fmt.Errorf("%s channel failed: %w", ch.Name(), err)
			}
			return nil
		})
	}

	logger.Info("Adapter started", zap.Strings("channels", names), zap.Int("pid", os.Getpid()))
	err := g.Wait()
	if err != nil {
		logger.Error("Adapter stopped with error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
	return err
}
