package seeding

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// RunStats tracks cumulative statistics across seeding runs. All
// operations are thread-safe using atomic counters.
type RunStats struct {
	created int64 // relations generated
	skipped int64 // pairs skipped for idempotence
	errored int64 // pairs that failed
}

// NewRunStats creates a new RunStats instance.
func NewRunStats() *RunStats {
	return &RunStats{}
}

// RecordCreate increments the created counter.
func (s *RunStats) RecordCreate() {
	atomic.AddInt64(&s.created, 1)
}

// RecordSkip increments the skipped counter.
func (s *RunStats) RecordSkip() {
	atomic.AddInt64(&s.skipped, 1)
}

// RecordError increments the errored counter.
func (s *RunStats) RecordError() {
	atomic.AddInt64(&s.errored, 1)
}

// Created returns the total number of relations generated.
func (s *RunStats) Created() int64 {
	return atomic.LoadInt64(&s.created)
}

// Skipped returns the total number of pairs skipped for idempotence.
func (s *RunStats) Skipped() int64 {
	return atomic.LoadInt64(&s.skipped)
}

// Errored returns the total number of failed pairs.
func (s *RunStats) Errored() int64 {
	return atomic.LoadInt64(&s.errored)
}

// Reset resets all counters to zero.
func (s *RunStats) Reset() {
	atomic.StoreInt64(&s.created, 0)
	atomic.StoreInt64(&s.skipped, 0)
	atomic.StoreInt64(&s.errored, 0)
}

// String returns a human-readable summary of the statistics.
func (s *RunStats) String() string {
	return fmt.Sprintf("created=%d skipped=%d errored=%d", s.Created(), s.Skipped(), s.Errored())
}

// LogSummary logs a summary of seeding statistics at INFO level.
func (s *RunStats) LogSummary(logger *slog.Logger) {
	logger.Info("seeding statistics",
		"created", s.Created(),
		"skipped", s.Skipped(),
		"errored", s.Errored(),
	)
}
