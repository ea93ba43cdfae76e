package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/inference"
	"trade-signal-lab/internal/observability"
)

// InferenceJob runs the cancellation inference sweep. Overlapping runs
// are skipped; the sweep is idempotent so a skipped tick loses nothing.
type InferenceJob struct {
	engine  *inference.Engine
	metrics *observability.Metrics
	timeout time.Duration
	running atomic.Bool
	log     zerolog.Logger
}

// NewInferenceJob creates the inference job. timeout <= 0 means no
// deadline.
func NewInferenceJob(engine *inference.Engine, metrics *observability.Metrics, timeout time.Duration, log zerolog.Logger) *InferenceJob {
	return &InferenceJob{
		engine:  engine,
		metrics: metrics,
		timeout: timeout,
		log:     log.With().Str("job", "inference").Logger(),
	}
}

// Name returns the job name.
func (j *InferenceJob) Name() string {
	return "inference"
}

// Run executes one inference sweep.
func (j *InferenceJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("inference sweep already running")
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
	result, err := j.engine.InferAll(ctx)
	if err != nil {
		return err
	}

	if j.metrics != nil {
		j.metrics.CancelsInferred.Add(float64(result.Inserted))
		j.metrics.CancelsConfirmed.Add(float64(result.SkippedConfirmed))
		j.metrics.InferenceSkipped.Add(float64(result.SkippedBadRow))
		j.metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	}

	j.log.Info().
		Int("scanned", result.SignalsScanned).
		Int("inserted", result.Inserted).
		Int("deduplicated", result.Deduplicated).
		Int("confirmed", result.SkippedConfirmed).
		Dur("duration", time.Since(start)).
		Msg("inference sweep completed")

	return nil
}
