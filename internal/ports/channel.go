package ports

import "context"

// Channel is a long-running messaging adapter
type Channel interface {
	// Name returns the channel name used in logs and PID files
	Name() string

	// Run serves the channel until ctx is cancelled
	Run(ctx context.Context) error
}
