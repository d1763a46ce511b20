// Package supervisor starts, stops and inspects adapter processes through their PID files.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/pidfile"
	"go.uber.org/zap"
)

// Adapters lists the process names the supervisor manages
var Adapters = []string{"telegram", "email", "all"}

var (
	// ErrUnknownAdapter is returned for a name outside Adapters
	ErrUnknownAdapter = errors.New("unknown adapter")
	// ErrAlreadyRunning is returned by Start when a live PID file exists
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotRunning is returned by Stop when no live PID file exists
	ErrNotRunning = errors.New("not running")
	// ErrDiedEarly is returned by StartBackground when the child exits during the start wait
	ErrDiedEarly = errors.New("process exited during startup")
)

const pollInterval = 100 * time.Millisecond

// Status describes one adapter process
type Status struct {
	Adapter string
	PID     int
	Running bool
	Since   time.Time
	PIDFile string
	LogFile string
}

// Uptime returns how long the process has been running
func (s Status) Uptime() time.Duration {
	if !s.Running || s.Since.IsZero() {
		return 0
	}
	return time.Since(s.Since).Truncate(time.Second)
}

// Supervisor manages adapter processes
type Supervisor struct {
	cfg     config.SupervisorConfig
	command []string
	logFile func(adapter string) string
	logger  *zap.Logger
}

// NewSupervisor creates a new supervisor. command is the adapter binary and
// any leading arguments; the adapter name is appended to it.
func NewSupervisor(cfg config.SupervisorConfig, command []string, logger *zap.Logger) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		command: command,
		logger:  logger,
	}
	s.logFile = func(adapter string) string {
		return filepath.Join(cfg.LogDir, adapter+".log")
	}
	return s
}

// WithLogFile overrides where an adapter's log file lives
func (s *Supervisor) WithLogFile(fn func(adapter string) string) *Supervisor {
	s.logFile = fn
	return s
}

// PIDFile returns the PID file path of an adapter
func (s *Supervisor) PIDFile(adapter string) string {
	return filepath.Join(s.cfg.RunDir, adapter+".pid")
}

// LogFile returns the log file path of an adapter
func (s *Supervisor) LogFile(adapter string) string {
	return s.logFile(adapter)
}

// Status reports whether an adapter runs
func (s *Supervisor) Status(adapter string) (Status, error) {
	if err := checkAdapter(adapter); err != nil {
		return Status{}, err
	}

	st := Status{
		Adapter: adapter,
		PIDFile: s.PIDFile(adapter),
		LogFile: s.LogFile(adapter),
	}
	st.PID = pidfile.Running(st.PIDFile)
	st.Running = st.PID != 0
	if st.Running {
		if info, err := os.Stat(st.PIDFile); err == nil {
			st.Since = info.ModTime()
		}
	}
	return st, nil
}

// Exec replaces the current process with the adapter
func (s *Supervisor) Exec(adapter string) error {
	if err := s.checkStartable(adapter); err != nil {
		return err
	}

	bin, err := exec.LookPath(s.command[0])
	if err != nil {
		return fmt.Errorf("failed to locate %s: %w", s.command[0], err)
	}
	args := append(slices.Clone(s.command), adapter)
	if err := syscall.Exec(bin, args, os.Environ()); err != nil {
		return fmt.Errorf("failed to exec %s: %w", bin, err)
	}
	return nil
}

// StartBackground spawns the adapter in its own session with output appended
// to its log file, then waits the start period and confirms it is alive.
func (s *Supervisor) StartBackground(ctx context.Context, adapter string) (int, error) {
	if err := s.checkStartable(adapter); err != nil {
		return 0, err
	}

	logPath := s.LogFile(adapter)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(s.command[0], append(slices.Clone(s.command[1:]), adapter)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", adapter, err)
	}
	pid := cmd.Process.Pid

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	s.logger.Info("Started adapter in background",
		zap.String("adapter", adapter),
		zap.Int("pid", pid),
		zap.String("log_file", logPath))

	timer := time.NewTimer(s.cfg.StartWait)
	defer timer.Stop()
	select {
	case err := <-exited:
		return 0, fmt.Errorf("%s %w (%v), see %s", adapter, ErrDiedEarly, err, logPath)
	case <-ctx.Done():
		return pid, ctx.Err()
	case <-timer.C:
	}

	if owner := pidfile.Running(s.PIDFile(adapter)); owner != pid {
		return pid, fmt.Errorf("%s did not take its pid file %s, see %s", adapter, s.PIDFile(adapter), logPath)
	}
	return pid, nil
}

// Stop sends SIGTERM and escalates to SIGKILL after the stop timeout
func (s *Supervisor) Stop(ctx context.Context, adapter string) error {
	st, err := s.Status(adapter)
	if err != nil {
		return err
	}
	if !st.Running {
		return fmt.Errorf("%s %w", adapter, ErrNotRunning)
	}

	s.logger.Info("Stopping adapter", zap.String("adapter", adapter), zap.Int("pid", st.PID))
	if err := syscall.Kill(st.PID, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal %s (pid %d): %w", adapter, st.PID, err)
	}

	if waitExit(ctx, st.PID, s.cfg.StopTimeout) {
		s.cleanup(st)
		return nil
	}

	s.logger.Warn("Adapter did not stop in time, killing",
		zap.String("adapter", adapter),
		zap.Int("pid", st.PID),
		zap.Duration("stop_timeout", s.cfg.StopTimeout))
	if err := syscall.Kill(st.PID, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to kill %s (pid %d): %w", adapter, st.PID, err)
	}
	waitExit(ctx, st.PID, 5*time.Second)
	s.cleanup(st)
	return nil
}

// cleanup removes a PID file left behind by a killed process
func (s *Supervisor) cleanup(st Status) {
	if pid, err := pidfile.Read(st.PIDFile); err == nil && pid == st.PID {
		if err := os.Remove(st.PIDFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove pid file", zap.String("path", st.PIDFile), zap.Error(err))
		}
	}
}

func (s *Supervisor) checkStartable(adapter string) error {
	if err := checkAdapter(adapter); err != nil {
		return err
	}
	if err := CheckOverlap(adapter, s.PIDFile, 0); err != nil {
		return err
	}
	if len(s.command) == 0 {
		return errors.New("no adapter command configured")
	}
	return nil
}

func waitExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !pidfile.Alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}

// Overlapping returns adapter and every other adapter serving one of its channels.
// "all" runs both channels, so it overlaps telegram and email.
func Overlapping(adapter string) []string {
	switch adapter {
	case "all":
		return []string{"all", "telegram", "email"}
	case "telegram", "email":
		return []string{adapter, "all"}
	default:
		return []string{adapter}
	}
}

// CheckOverlap returns ErrAlreadyRunning when a live process other than self
// holds the PID file of an adapter overlapping adapter. pidPath maps an
// adapter to its PID file.
func CheckOverlap(adapter string, pidPath func(adapter string) string, self int) error {
	for _, other := range Overlapping(adapter) {
		if pid := pidfile.Running(pidPath(other)); pid != 0 && pid != self {
			if other == adapter {
				return fmt.Errorf("%s %w (pid %d)", adapter, ErrAlreadyRunning, pid)
			}
			return fmt.Errorf("%s overlaps %s which is %w (pid %d)", adapter, other, ErrAlreadyRunning, pid)
		}
	}
	return nil
}

func checkAdapter(adapter string) error {
	if !slices.Contains(Adapters, adapter) {
		return fmt.Errorf("%w: %q (expected one of %v)", ErrUnknownAdapter, adapter, Adapters)
	}
	return nil
}
