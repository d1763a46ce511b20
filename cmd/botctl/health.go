package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/mikey/llm-answer-bot/internal/factory"
	"github.com/mikey/llm-answer-bot/internal/health"
	"github.com/mikey/llm-answer-bot/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errUnhealthy = errors.New("health check failed")

func checkCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check [telegram|email|all]",
		Short: "Validate the configuration and reach the model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			adapter := "all"
			if len(args) == 1 {
				adapter = args[0]
			}
			names, err := factory.ChannelNames(adapter)
			if err != nil {
				return err
			}

			if err := e.cfg.Validate(names...); err != nil {
				return err
			}
			fmt.Println("✅ Configuration valide")

			models := factory.NewModelFactory(e.cfg, e.logger, utils.NewTextProcessor(e.logger))
			service, err := models.CreateModelService()
			if err != nil {
				return err
			}
			defer service.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := service.Initialize(ctx); err != nil {
				e.logger.Error("Model check failed", zap.Error(err))
				return err
			}
			info := service.Describe()
			fmt.Printf("✅ Modèle %s/%s disponible\n", info.Provider, info.Name)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "how long to wait for the model")
	return cmd
}

func healthCmd() *cobra.Command {
	var (
		asJSON   bool
		adapter  string
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run the operator health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && interval <= 0 {
				return fmt.Errorf("invalid interval %s: must be positive", interval)
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			names, err := factory.ChannelNames(adapter)
			if err != nil {
				return err
			}
			adapters := []string{adapter}
			if adapter == "all" {
				adapters = append(slices.Clone(names), adapter)
			}

			var logFiles []string
			for _, a := range adapters {
				if path := e.sup.LogFile(a); !slices.Contains(logFiles, path) {
					logFiles = append(logFiles, path)
				}
			}

			checker := health.NewChecker(
				e.cfg.GetHealth(),
				e.sup,
				adapters,
				func() error { return e.cfg.Validate(names...) },
				logFiles,
			)

			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				fmt.Printf("🔄 Monitoring continu (intervalle: %s)\nAppuyez sur Ctrl+C pour arrêter\n\n", interval)
				checker.Watch(ctx, interval, func(report health.Report) {
					if err := writeReport(report, asJSON); err != nil {
						e.logger.Error("Failed to write health report", zap.Error(err))
					}
					for _, alert := range report.Alerts() {
						e.logger.Warn("Health alert", zap.String("alert", alert))
					}
					if !asJSON {
						fmt.Printf("\n⏳ Prochaine vérification dans %s...\n\n", interval)
					}
				})
				fmt.Println("👋 Monitoring arrêté")
				return nil
			}

			report := checker.Run()
			if err := writeReport(report, asJSON); err != nil {
				return err
			}
			if !report.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&adapter, "channel", "all", "adapter to check (telegram, email, all)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run the checks every interval until interrupted")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Minute, "time between checks in watch mode")
	return cmd
}

func writeReport(report health.Report, asJSON bool) error {
	if asJSON {
		return report.WriteJSON(os.Stdout)
	}
	report.WriteText(os.Stdout)
	if alerts := report.Alerts(); len(alerts) > 0 {
		fmt.Println("\n🚨 ALERTES:")
		for _, alert := range alerts {
			fmt.Println("   " + alert)
		}
	}
	return nil
}
