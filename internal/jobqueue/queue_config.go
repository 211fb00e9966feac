package jobqueue

import (
	"github.com/riverqueue/river"
)

// Config holds the tunables for the River queue.
// Requires PostgreSQL with the River schema migrations applied.
type Config struct {
	// MaxWorkers is the number of concurrent status updates
	MaxWorkers int
	// MaxAttempts bounds retries of a failed status update
	MaxAttempts int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxWorkers:  5,
		MaxAttempts: 5,
	}
}

// ConfigFromWorkers builds a config with a custom worker count
func ConfigFromWorkers(maxWorkers int) Config {
	c := DefaultConfig()
	if maxWorkers > 0 {
		c.MaxWorkers = maxWorkers
	}
	return c
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c Config) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
