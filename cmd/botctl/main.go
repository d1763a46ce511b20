package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/logging"
	"github.com/mikey/llm-answer-bot/internal/supervisor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const adapterBinary = "answer-bot"

var (
	configFile string
	envFile    string
	binPath    string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Manage the answer bot adapters",
		Long:          "botctl starts, stops and inspects the Telegram and email adapters and runs operator health checks.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a dotenv file (default: .env)")
	root.PersistentFlags().StringVar(&binPath, "bin", "", "path to the answer-bot binary (default: next to botctl, then PATH)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(startCmd())
	root.AddCommand(stopCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(logsCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(healthCmd())

	if err := root.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// env bundles what every subcommand needs
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	sup    *supervisor.Supervisor
}

func loadEnv() (*env, error) {
	logger, err := logging.InitConsoleLogger(verbose, false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(config.Options{ConfigFile: configFile, EnvFile: envFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	supCfg, err := cfg.GetSupervisor()
	if err != nil {
		return nil, err
	}

	sup := supervisor.NewSupervisor(supCfg, adapterCommand(), logger).WithLogFile(cfg.LogFile)
	return &env{cfg: cfg, logger: logger, sup: sup}, nil
}

// adapterCommand returns the adapter binary with the flags forwarded to it
func adapterCommand() []string {
	bin := binPath
	if bin == "" {
		bin = adapterBinary
		if self, err := os.Executable(); err == nil {
			sibling := filepath.Join(filepath.Dir(self), adapterBinary)
			if _, err := os.Stat(sibling); err == nil {
				bin = sibling
			}
		}
	}

	command := []string{bin}
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			abs = configFile
		}
		command = append(command, "--config", abs)
	}
	if envFile != "" {
		abs, err := filepath.Abs(envFile)
		if err != nil {
			abs = envFile
		}
		command = append(command, "--env-file", abs)
	}
	return command
}

func adapterArgs(args []string) []string {
	if len(args) == 0 {
		return slices.Clone(supervisor.Adapters)
	}
	return args
}
