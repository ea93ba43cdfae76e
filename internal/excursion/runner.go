package excursion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// DefaultTradeTimeout bounds one trade's replay. A pathological window
// must not stall the whole batch.
const DefaultTradeTimeout = 10 * time.Second

// RunReport summarizes one backfill pass.
type RunReport struct {
	TradesSeen int
	Computed   int
	UpToDate   int // already computed, not forced
	Skipped    map[domain.SkipReason]int
	Errors     int
}

// Runner is the batch excursion-backfill job. It replays bars for every
// EXITED trade lacking a current result and upserts the computation.
type Runner struct {
	events       storage.EventStore
	bars         storage.BarStore
	excursions   storage.ExcursionStore
	tradeTimeout time.Duration
	log          zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	EventStore     storage.EventStore
	BarStore       storage.BarStore
	ExcursionStore storage.ExcursionStore
	TradeTimeout   time.Duration
	Logger         zerolog.Logger
}

// NewRunner creates a backfill runner.
func NewRunner(opts RunnerOptions) *Runner {
	timeout := opts.TradeTimeout
	if timeout <= 0 {
		timeout = DefaultTradeTimeout
	}
	return &Runner{
		events:       opts.EventStore,
		bars:         opts.BarStore,
		excursions:   opts.ExcursionStore,
		tradeTimeout: timeout,
		log:          opts.Logger.With().Str("component", "backfill").Logger(),
	}
}

// Run backfills every EXITED trade. When force is false, trades with an
// existing result are left alone; when true, everything is recomputed
// (recomputation is a pure function of stored data, so overwrites are
// deterministic). One bad trade never aborts the batch.
func (r *Runner) Run(ctx context.Context, force bool) (*RunReport, error) {
	tradeIDs, err := r.events.ListTradeIDs(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list trade ids: %w", err)
	}

	report := &RunReport{Skipped: make(map[domain.SkipReason]int)}
	for _, tradeID := range tradeIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.TradesSeen++

		outcome, err := r.RunTrade(ctx, tradeID, force)
		if err != nil {
			var inel *IneligibleError
			if errors.As(err, &inel) {
				report.Skipped[inel.Reason]++
				r.log.Info().
					Str("trade_id", tradeID).
					Str("reason", string(inel.Reason)).
					Msg("trade skipped")
				continue
			}
			report.Errors++
			r.log.Error().Err(err).Str("trade_id", tradeID).Msg("backfill failed")
			continue
		}
		switch outcome {
		case tradeComputed:
			report.Computed++
		case tradeUpToDate:
			report.UpToDate++
		}
	}

	return report, nil
}

type tradeOutcome int

const (
	tradeComputed tradeOutcome = iota
	tradeUpToDate
	tradeNotExited
)

// RunTrade backfills a single trade under a per-trade deadline.
func (r *Runner) RunTrade(ctx context.Context, tradeID string, force bool) (tradeOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.tradeTimeout)
	defer cancel()

	events, err := r.events.GetByTradeID(ctx, tradeID)
	if err != nil {
		return 0, fmt.Errorf("load events: %w", err)
	}
	trade := domain.ProjectTrade(tradeID, events)
	if trade.Status != domain.StatusExited {
		return tradeNotExited, nil
	}

	if !force {
		if _, err := r.excursions.GetByTradeID(ctx, tradeID); err == nil {
			return tradeUpToDate, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("check existing result: %w", err)
		}
	}

	// Check the cheap preconditions before touching the bar store.
	if err := Eligibility(trade); err != nil {
		return 0, err
	}

	bars, err := r.bars.GetByTimeRange(ctx, trade.Symbol, trade.EntryBarOpenTs, trade.ExitBarOpenTs)
	if err != nil {
		return 0, fmt.Errorf("load bars: %w", err)
	}

	result, err := Compute(trade, bars)
	if err != nil {
		return 0, err
	}
	result.ComputedAt = time.Now().UTC()
	result.Source = domain.MetricsSourceBackfill

	if err := r.excursions.Upsert(ctx, result); err != nil {
		return 0, fmt.Errorf("upsert result: %w", err)
	}

	r.log.Debug().
		Str("trade_id", tradeID).
		Float64("no_be_mfe_r", result.NoBeMfeR).
		Float64("be_mfe_r", result.BeMfeR).
		Float64("mae_global_r", result.MaeGlobalR).
		Bool("be_triggered", result.BeTriggered).
		Msg("excursion computed")

	return tradeComputed, nil
}
