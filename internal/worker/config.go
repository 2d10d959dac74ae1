package worker

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes the worker. Geocoding jobs are throttled by the geocoder, so
// a small concurrency is enough.
type Config struct {
	Concurrency  int
	PollInterval time.Duration
	JobTimeout   time.Duration

	// ShutdownTimeout bounds how long Stop waits for running jobs.
	ShutdownTimeout time.Duration

	// Jobs running longer than this at startup were abandoned by a crashed
	// process and are put back into the queue.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns the settings used when the environment sets none.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate reports every out of range setting.
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 || c.Concurrency > 100 {
		errs = append(errs, fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency))
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval))
	}
	if c.JobTimeout < time.Second {
		errs = append(errs, fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout))
	}
	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout))
	}
	// a geocoding batch of a large import can take several minutes
	if c.StaleJobThreshold < c.JobTimeout {
		errs = append(errs, fmt.Errorf("stale job threshold %v is shorter than the job timeout %v", c.StaleJobThreshold, c.JobTimeout))
	}
	return errors.Join(errs...)
}
