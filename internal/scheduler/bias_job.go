package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/corpus"
)

// BiasJob projects freshly ingested signals into the bias rows so
// point-in-time queries see them without waiting for a corpus build.
type BiasJob struct {
	deriver *corpus.BiasDeriver
	timeout time.Duration
	running atomic.Bool
	log     zerolog.Logger
}

// NewBiasJob creates the bias derivation job.
func NewBiasJob(deriver *corpus.BiasDeriver, timeout time.Duration, log zerolog.Logger) *BiasJob {
	return &BiasJob{
		deriver: deriver,
		timeout: timeout,
		log:     log.With().Str("job", "bias").Logger(),
	}
}

// Name returns the job name.
func (j *BiasJob) Name() string {
	return "bias"
}

// Run derives bias rows for all symbols. Re-runs are no-ops for rows
// already present.
func (j *BiasJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("bias derivation already running")
		return nil
	}
	defer j.running.Store(false)

	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	inserted, err := j.deriver.DeriveAll(ctx)
	if err != nil {
		return err
	}
	if inserted > 0 {
		j.log.Info().Int("inserted", inserted).Msg("bias rows derived")
	}
	return nil
}
