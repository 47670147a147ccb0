package scoring

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobMetrics provides centralized background job metrics tracking.
// This interface allows the job to report to the centralized job metrics system.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// RecomputeJobConfig configures the score recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for performance tracking.
	Metrics *Metrics
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
	// Timeout for each recompute cycle.
	Timeout time.Duration
}

// DefaultRecomputeInterval is the default interval between recompute cycles.
const DefaultRecomputeInterval = 30 * time.Second

// DefaultRecomputeTimeout is the default timeout for a single recompute cycle.
const DefaultRecomputeTimeout = 30 * time.Second

const jobTypeScoreRecompute = "score_recompute"

// RecomputeJob periodically recalculates scores for people marked dirty.
type RecomputeJob struct {
	config       RecomputeJobConfig
	dirtyTracker *DirtyTracker
	orchestrator *Orchestrator

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeJob creates a new score recompute job.
func NewRecomputeJob(config RecomputeJobConfig, dirtyTracker *DirtyTracker, orchestrator *Orchestrator) *RecomputeJob {
	if config.Interval == 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRecomputeTimeout
	}

	return &RecomputeJob{
		config:       config,
		dirtyTracker: dirtyTracker,
		orchestrator: orchestrator,
	}
}

// Start begins the periodic recompute job.
// Returns immediately; the job runs in a background goroutine.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the recompute job to stop and waits for it to finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the recompute job.
func (j *RecomputeJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("score recompute job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("score recompute job stopping due to stop signal")
			return
		case <-ticker.C:
			j.recomputeDirtyPeople(ctx)
		}
	}
}

// recomputeDirtyPeople processes all dirty people and updates their scores.
func (j *RecomputeJob) recomputeDirtyPeople(parentCtx context.Context) {
	dirtyPeople := j.dirtyTracker.GetDirtyPeople()
	if len(dirtyPeople) == 0 {
		return
	}

	// Create context with timeout derived from parent
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	personCount := len(dirtyPeople)
	var successCount int

	j.config.Logger.Info("recomputing scores for dirty people",
		"dirty_count", personCount)

	for i, personID := range dirtyPeople {
		// Check timeout
		select {
		case <-ctx.Done():
			j.config.Logger.Error("score recompute timeout exceeded",
				"processed", i,
				"total", personCount,
				"timeout", j.config.Timeout)
			if j.config.Metrics != nil {
				j.config.Metrics.IncRecomputeErrors()
			}
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobErrors(jobTypeScoreRecompute, "timeout")
			}

			// Record job completion metrics even for timeout
			duration := time.Since(startTime).Seconds()
			if j.config.Metrics != nil {
				j.config.Metrics.ObserveRecomputeDuration(duration)
			}
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobsTotal(jobTypeScoreRecompute, "failure")
				j.config.JobMetrics.ObserveJobDuration(jobTypeScoreRecompute, duration)
			}
			return
		default:
		}

		if err := j.orchestrator.RecalculatePersonScores(ctx, personID); err != nil {
			j.config.Logger.Error("failed to recompute scores",
				"person_id", personID,
				"error", err)
			if j.config.Metrics != nil {
				j.config.Metrics.IncRecomputeErrors()
			}
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobErrors(jobTypeScoreRecompute, "recompute_error")
			}
			continue
		}

		j.dirtyTracker.ClearDirty(personID)
		successCount++

		// Log batch progress every 10 people
		if (i+1)%10 == 0 {
			j.config.Logger.Debug("recompute progress",
				"processed", i+1,
				"total", personCount)
		}
	}

	duration := time.Since(startTime).Seconds()

	status := "success"
	if successCount < personCount {
		status = "failure"
	}

	if j.config.Metrics != nil {
		j.config.Metrics.IncRecomputeTotal()
		j.config.Metrics.ObserveRecomputeDuration(duration)
		j.config.Metrics.SetLastRecomputeTimestamp(float64(time.Now().Unix()))
		j.config.Metrics.SetLastRecomputePersonCount(float64(successCount))
	}

	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal(jobTypeScoreRecompute, status)
		j.config.JobMetrics.ObserveJobDuration(jobTypeScoreRecompute, duration)
	}

	j.config.Logger.Info("score recompute completed",
		"duration_seconds", duration,
		"people_processed", successCount,
		"people_failed", personCount-successCount)
}

// RecomputeNow immediately recomputes all dirty people without waiting for the ticker.
// This is useful for testing or forcing immediate updates.
func (j *RecomputeJob) RecomputeNow() {
	j.recomputeDirtyPeople(context.Background())
}
