//go:build !linux

package sysinfo

import "time"

// Load returns the system load averages
func Load() (LoadAverage, error) { return LoadAverage{}, ErrUnsupported }

// Memory returns RAM usage
func Memory() (Usage, error) { return Usage{}, ErrUnsupported }

// Uptime returns the time since boot
func Uptime() (time.Duration, error) { return 0, ErrUnsupported }

// Disk returns usage of the filesystem holding path
func Disk(path string) (Usage, error) { return Usage{}, ErrUnsupported }
