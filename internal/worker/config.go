// Package worker runs background jobs: periodic re-evaluation of every
// subject (which raises alerts) and redelivery of notifications parked in
// the fallback store. Jobs arrive over Pub/Sub or from the local scheduler.
package worker

import (
	"time"
)

// Job types accepted on the job subscription.
const (
	JobEvaluateSubjects  = "evaluate_subjects"
	JobRedeliverFallback = "redeliver_fallback"
)

// Config holds job tuning.
type Config struct {
	// Concurrency bounds parallel subject evaluations.
	// Default: 4
	Concurrency int

	// SubjectTimeout bounds a single subject evaluation.
	// Default: 30 seconds
	SubjectTimeout time.Duration

	// RedeliveryInterval is how often the scheduler drains the fallback
	// store. Zero disables the schedule.
	RedeliveryInterval time.Duration

	// SweepInterval is how often the scheduler re-evaluates every subject.
	// Zero disables the schedule.
	SweepInterval time.Duration
}

// DefaultConfig returns the default job configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:        4,
		SubjectTimeout:     30 * time.Second,
		RedeliveryInterval: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.SubjectTimeout <= 0 {
		c.SubjectTimeout = d.SubjectTimeout
	}
	return c
}
