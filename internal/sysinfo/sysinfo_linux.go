//go:build linux

package sysinfo

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// loadScale is the fixed-point shift of sysinfo(2) load averages
const loadScale = 1 << 16

func sysinfo() (*unix.Sysinfo_t, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return nil, fmt.Errorf("sysinfo: %w", err)
	}
	return &info, nil
}

// Load returns the system load averages
func Load() (LoadAverage, error) {
	info, err := sysinfo()
	if err != nil {
		return LoadAverage{}, err
	}
	return LoadAverage{
		One:     float64(info.Loads[0]) / loadScale,
		Five:    float64(info.Loads[1]) / loadScale,
		Fifteen: float64(info.Loads[2]) / loadScale,
	}, nil
}

// Memory returns RAM usage, counting buffers as free
func Memory() (Usage, error) {
	info, err := sysinfo()
	if err != nil {
		return Usage{}, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	if free > total {
		free = total
	}
	return Usage{Total: total, Used: total - free}, nil
}

// Uptime returns the time since boot
func Uptime() (time.Duration, error) {
	info, err := sysinfo()
	if err != nil {
		return 0, err
	}
	return time.Duration(info.Uptime) * time.Second, nil
}

// Disk returns usage of the filesystem holding path
func Disk(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	used := (st.Blocks - st.Bfree) * bsize
	return Usage{Total: total, Used: used}, nil
}
