package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/llm-answer-bot/internal/supervisor"
	"github.com/mikey/llm-answer-bot/internal/sysinfo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func startCmd() *cobra.Command {
	var background bool

	cmd := &cobra.Command{
		Use:       "start <telegram|email|all>",
		Short:     "Start an adapter",
		Args:      cobra.ExactArgs(1),
		ValidArgs: supervisor.Adapters,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()
			adapter := args[0]

			if !background {
				return e.sup.Exec(adapter)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pid, err := e.sup.StartBackground(ctx, adapter)
			if err != nil {
				if errors.Is(err, supervisor.ErrDiedEarly) {
					fmt.Printf("%s failed to start, see %s\n", adapter, e.sup.LogFile(adapter))
				}
				return err
			}
			fmt.Printf("%s started (PID: %d)\n", adapter, pid)
			fmt.Printf("Logs: %s\n", e.sup.LogFile(adapter))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&background, "background", "b", false, "detach the adapter and return once it is running")
	return cmd
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "stop <telegram|email|all>",
		Short:     "Stop a running adapter",
		Args:      cobra.ExactArgs(1),
		ValidArgs: supervisor.Adapters,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			if err := e.sup.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s stopped\n", args[0])
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [adapter...]",
		Short: "Show whether adapters are running",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			var stopped []string
			for _, adapter := range adapterArgs(args) {
				st, err := e.sup.Status(adapter)
				if err != nil {
					return err
				}
				if !st.Running {
					fmt.Printf("%-9s stopped\n", adapter)
					stopped = append(stopped, adapter)
					continue
				}
				fmt.Printf("%-9s running (PID: %d, uptime: %s)\n", adapter, st.PID, sysinfo.FormatDuration(st.Uptime()))
				e.logger.Debug("Adapter status",
					zap.String("adapter", adapter),
					zap.String("pid_file", st.PIDFile),
					zap.String("log_file", st.LogFile))
			}

			// only the explicitly requested adapters must be running
			if len(args) > 0 && len(stopped) > 0 {
				return fmt.Errorf("%w: %v", supervisor.ErrNotRunning, stopped)
			}
			return nil
		},
	}
}

func logsCmd() *cobra.Command {
	var (
		lines  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:       "logs <telegram|email|all>",
		Short:     "Print the last lines of an adapter log",
		Args:      cobra.ExactArgs(1),
		ValidArgs: supervisor.Adapters,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			path := e.sup.LogFile(args[0])
			tail, err := supervisor.Tail(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Println(line)
			}
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return supervisor.Follow(ctx, path, os.Stdout)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing lines as they are written")
	return cmd
}
