package main

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestAdapterCommandForwardsFlags(t *testing.T) {
	defer func(bin, cfg, env string) { binPath, configFile, envFile = bin, cfg, env }(binPath, configFile, envFile)

	binPath = "/opt/bot/answer-bot"
	configFile = "configs/config.yaml"
	envFile = ""

	got := adapterCommand()
	abs, _ := filepath.Abs("configs/config.yaml")
	want := []string{"/opt/bot/answer-bot", "--config", abs}
	if !slices.Equal(got, want) {
		t.Errorf("adapterCommand() = %v, want %v", got, want)
	}
}

func TestAdapterArgsDefaultsToAll(t *testing.T) {
	if got := adapterArgs(nil); !slices.Equal(got, []string{"telegram", "email", "all"}) {
		t.Errorf("adapterArgs(nil) = %v", got)
	}
	if got := adapterArgs([]string{"email"}); !slices.Equal(got, []string{"email"}) {
		t.Errorf("adapterArgs(email) = %v", got)
	}
}

func TestHealthWatchFlags(t *testing.T) {
	cmd := healthCmd()
	if err := cmd.ParseFlags([]string{"--watch", "--interval", "30s"}); err != nil {
		t.Fatal(err)
	}
	if watch, _ := cmd.Flags().GetBool("watch"); !watch {
		t.Error("--watch not set")
	}
	if interval, _ := cmd.Flags().GetDuration("interval"); interval != 30*time.Second {
		t.Errorf("--interval = %s, want 30s", interval)
	}
}

func TestHealthWatchRejectsZeroInterval(t *testing.T) {
	cmd := healthCmd()
	cmd.SetArgs([]string{"--watch", "--interval", "0s"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid interval") {
		t.Errorf("Execute() error = %v, want an interval error", err)
	}
}
