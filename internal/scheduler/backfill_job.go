package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/excursion"
	"trade-signal-lab/internal/observability"
)

// BackfillJob runs the excursion backfill pass over EXITED trades.
type BackfillJob struct {
	runner  *excursion.Runner
	metrics *observability.Metrics
	timeout time.Duration
	running atomic.Bool
	log     zerolog.Logger
}

// NewBackfillJob creates the backfill job. timeout <= 0 means no
// deadline.
func NewBackfillJob(runner *excursion.Runner, metrics *observability.Metrics, timeout time.Duration, log zerolog.Logger) *BackfillJob {
	return &BackfillJob{
		runner:  runner,
		metrics: metrics,
		timeout: timeout,
		log:     log.With().Str("job", "backfill").Logger(),
	}
}

// Name returns the job name.
func (j *BackfillJob) Name() string {
	return "backfill"
}

// Run executes one backfill pass. Never forces recomputation; the
// operator CLI exists for that.
func (j *BackfillJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("backfill already running")
		return nil
	}
	defer j.running.Store(false)

	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	report, err := j.runner.Run(ctx, false)
	if err != nil {
		return err
	}

	if j.metrics != nil {
		j.metrics.ExcursionsComputed.Add(float64(report.Computed))
		for reason, n := range report.Skipped {
			j.metrics.ExcursionsSkipped.WithLabelValues(string(reason)).Add(float64(n))
		}
		j.metrics.BackfillDuration.Observe(time.Since(start).Seconds())
		if report.Errors == 0 {
			j.metrics.LastSuccessfulBackfill.SetToCurrentTime()
		}
	}

	j.log.Info().
		Int("seen", report.TradesSeen).
		Int("computed", report.Computed).
		Int("up_to_date", report.UpToDate).
		Int("errors", report.Errors).
		Dur("duration", time.Since(start)).
		Msg("backfill pass completed")

	return nil
}
