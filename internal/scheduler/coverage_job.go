package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/coverage"
	"trade-signal-lab/internal/observability"
)

// CoverageJob refreshes the coverage gauges from a fresh snapshot.
type CoverageJob struct {
	monitor *coverage.Monitor
	metrics *observability.Metrics
	timeout time.Duration
	log     zerolog.Logger
}

// NewCoverageJob creates the coverage job.
func NewCoverageJob(monitor *coverage.Monitor, metrics *observability.Metrics, timeout time.Duration, log zerolog.Logger) *CoverageJob {
	return &CoverageJob{
		monitor: monitor,
		metrics: metrics,
		timeout: timeout,
		log:     log.With().Str("job", "coverage").Logger(),
	}
}

// Name returns the job name.
func (j *CoverageJob) Name() string {
	return "coverage"
}

// Run takes one snapshot across all symbols and publishes the gauges.
func (j *CoverageJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report, err := j.monitor.Snapshot(ctx, "")
	if err != nil {
		return err
	}

	if j.metrics != nil {
		j.metrics.ActiveTrades.Set(float64(report.TotalActive))
		j.metrics.OrphanedTrades.Set(float64(report.Orphaned))
		j.metrics.SetCoverageHealth(report.Health)
	}

	return nil
}
