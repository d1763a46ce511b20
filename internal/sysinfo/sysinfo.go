package sysinfo

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrUnsupported is returned for figures the platform cannot provide
var ErrUnsupported = errors.New("not supported on this platform")

// Usage is a used/total pair in bytes
type Usage struct {
	Total uint64
	Used  uint64
}

// Percent returns the used share in percent
func (u Usage) Percent() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Used) * 100 / float64(u.Total)
}

// LoadAverage holds the 1, 5 and 15 minute load averages
type LoadAverage struct {
	One, Five, Fifteen float64
}

// Report is a host snapshot. Each figure is gathered independently and
// carries its own error.
type Report struct {
	CPUs      int
	Load      LoadAverage
	LoadErr   error
	Memory    Usage
	MemoryErr error
	Disk      Usage
	DiskErr   error
	Uptime    time.Duration
	UptimeErr error
}

// Collect gathers every figure; diskPath selects the filesystem
func Collect(diskPath string) Report {
	r := Report{CPUs: runtime.NumCPU()}
	r.Load, r.LoadErr = Load()
	r.Memory, r.MemoryErr = Memory()
	r.Disk, r.DiskErr = Disk(diskPath)
	r.Uptime, r.UptimeErr = Uptime()
	return r
}

// FormatUsage renders "42.0% (3.1 GiB / 7.5 GiB)"
func FormatUsage(u Usage) string {
	return fmt.Sprintf("%.1f%% (%s / %s)", u.Percent(), humanize.IBytes(u.Used), humanize.IBytes(u.Total))
}

// FormatDuration renders an uptime as "3j 4h 5m"
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dj", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}
