package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/supervisor"
	"github.com/mikey/llm-answer-bot/internal/sysinfo"
)

// Check status values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Check is the outcome of one health check
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Report is the outcome of a full health run
type Report struct {
	Timestamp    time.Time `json:"timestamp"`
	GlobalStatus string    `json:"global_status"`
	Checks       []Check   `json:"checks"`
}

// Healthy reports whether every check passed
func (r Report) Healthy() bool {
	return r.GlobalStatus == "healthy"
}

// WriteText prints the report for a terminal
func (r Report) WriteText(w io.Writer) {
	fmt.Fprintln(w, "🏥 Vérification de santé du bot Code du Travail")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Timestamp: %s\n\n", r.Timestamp.Format(time.RFC3339))
	for _, c := range r.Checks {
		mark := "✅ OK"
		if c.Status != StatusOK {
			mark = "❌ ERREUR"
		}
		fmt.Fprintf(w, "%s %s: %s\n", mark, c.Name, c.Message)
	}
	global := "✅ SAIN"
	if !r.Healthy() {
		global = "❌ PROBLÈMES DÉTECTÉS"
	}
	fmt.Fprintf(w, "\nÉtat global: %s\n", global)
}

// Alerts lists the failing checks as one line each
func (r Report) Alerts() []string {
	var alerts []string
	for _, c := range r.Checks {
		if c.Status != StatusOK {
			alerts = append(alerts, fmt.Sprintf("⚠️ %s: %s", c.Name, c.Message))
		}
	}
	return alerts
}

// WriteJSON writes the report as indented JSON
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ProcessStatus reports the state of a supervised adapter
type ProcessStatus interface {
	Status(adapter string) (supervisor.Status, error)
}

// Checker runs the operator health checks
type Checker struct {
	cfg      config.HealthConfig
	procs    ProcessStatus
	adapters []string
	validate func() error
	logFiles []string
	diskPath string

	disk   func(path string) (sysinfo.Usage, error)
	memory func() (sysinfo.Usage, error)
	now    func() time.Time
}

// NewChecker creates a new health checker
func NewChecker(cfg config.HealthConfig, procs ProcessStatus, adapters []string, validate func() error, logFiles []string) *Checker {
	return &Checker{
		cfg:      cfg,
		procs:    procs,
		adapters: adapters,
		validate: validate,
		logFiles: logFiles,
		diskPath: ".",
		disk:     sysinfo.Disk,
		memory:   sysinfo.Memory,
		now:      time.Now,
	}
}

// Run executes every check
func (c *Checker) Run() Report {
	report := Report{
		Timestamp:    c.now(),
		GlobalStatus: "healthy",
		Checks: []Check{
			c.checkProcesses(),
			c.checkUsage("Espace disque", func() (sysinfo.Usage, error) { return c.disk(c.diskPath) }, c.cfg.DiskWarnPercent),
			c.checkUsage("Mémoire RAM", c.memory, c.cfg.MemoryWarnPercent),
			c.checkConfig(),
			c.checkLogs(),
		},
	}
	for _, check := range report.Checks {
		if check.Status != StatusOK {
			report.GlobalStatus = "unhealthy"
		}
	}
	return report
}

// Watch runs the checks immediately and then every interval, handing each
// report to emit, until ctx is done.
func (c *Checker) Watch(ctx context.Context, interval time.Duration, emit func(Report)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		emit(c.Run())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Checker) checkProcesses() Check {
	check := Check{Name: "Processus bot", Status: StatusError}
	var parts []string
	for _, adapter := range c.adapters {
		st, err := c.procs.Status(adapter)
		switch {
		case err != nil:
			parts = append(parts, fmt.Sprintf("%s: erreur (%v)", adapter, err))
		case st.Running:
			check.Status = StatusOK
			parts = append(parts, fmt.Sprintf("%s: actif (PID: %d, depuis %s)", adapter, st.PID, sysinfo.FormatDuration(st.Uptime())))
		default:
			parts = append(parts, adapter+": arrêté")
		}
	}
	if len(parts) == 0 {
		check.Message = "Aucun adaptateur à vérifier"
		return check
	}
	check.Message = strings.Join(parts, "; ")
	return check
}

// checkUsage fails above the warn threshold and warns within ten points of it
func (c *Checker) checkUsage(name string, read func() (sysinfo.Usage, error), warnPercent float64) Check {
	usage, err := read()
	if err != nil {
		return Check{Name: name, Status: StatusError, Message: fmt.Sprintf("Erreur de vérification: %v", err)}
	}
	pct := usage.Percent()
	switch {
	case warnPercent > 0 && pct > warnPercent:
		return Check{Name: name, Status: StatusError, Message: fmt.Sprintf("Critique: %.1f%% utilisé", pct)}
	case warnPercent > 0 && pct > warnPercent-10:
		return Check{Name: name, Status: StatusOK, Message: fmt.Sprintf("Avertissement: %.1f%% utilisé (%s)", pct, sysinfo.FormatUsage(usage))}
	default:
		return Check{Name: name, Status: StatusOK, Message: "OK: " + sysinfo.FormatUsage(usage)}
	}
}

func (c *Checker) checkConfig() Check {
	if c.validate == nil {
		return Check{Name: "Configuration", Status: StatusOK, Message: "Non vérifiée"}
	}
	if err := c.validate(); err != nil {
		return Check{Name: "Configuration", Status: StatusError, Message: err.Error()}
	}
	return Check{Name: "Configuration", Status: StatusOK, Message: "Configuration OK"}
}

func (c *Checker) checkLogs() Check {
	check := Check{Name: "Fichier log", Status: StatusOK}
	limit := int64(c.cfg.MaxLogSizeMB) * 1024 * 1024

	var parts []string
	for _, path := range c.logFiles {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			parts = append(parts, path+": absent")
			continue
		}
		if err != nil {
			check.Status = StatusError
			parts = append(parts, fmt.Sprintf("%s: erreur (%v)", path, err))
			continue
		}
		sizeMB := float64(info.Size()) / (1024 * 1024)
		if limit > 0 && info.Size() > limit {
			check.Status = StatusError
			parts = append(parts, fmt.Sprintf("%s: volumineux (%.1fMB)", path, sizeMB))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %.1fMB", path, sizeMB))
	}
	if len(parts) == 0 {
		check.Message = "Pas de fichier log"
	} else {
		check.Message = strings.Join(parts, "; ")
	}
	return check
}
