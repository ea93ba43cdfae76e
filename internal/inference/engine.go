// Package inference detects signals the source never explicitly
// cancelled. Consecutive SIGNAL_CREATED events for a symbol alternate
// direction under normal operation; a direction flip against an
// unconfirmed signal implies the earlier signal was abandoned. The rule
// is a heuristic carried over from the signal generator's observed
// behavior, not a proven invariant: two legitimate same-direction
// signals in a row will under-detect, never mis-cancel.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/storage"
)

// InferredConfidence is the confidence score recorded on synthetic
// CANCELLED events.
const InferredConfidence = 0.95

// Result summarizes one inference pass.
type Result struct {
	SignalsScanned   int
	Inserted         int
	Deduplicated     int
	SkippedConfirmed int // signals protected by an ENTRY
	SkippedBadRow    int // unparseable direction etc.
}

// Engine is the batch cancellation-inference job. Safe to re-run: the
// synthetic event's dedup key makes a second pass a no-op.
type Engine struct {
	events    storage.EventStore
	lifecycle *lifecycle.Store
	log       zerolog.Logger
}

// NewEngine creates an inference engine.
func NewEngine(events storage.EventStore, lc *lifecycle.Store, log zerolog.Logger) *Engine {
	return &Engine{
		events:    events,
		lifecycle: lc,
		log:       log.With().Str("component", "inference").Logger(),
	}
}

// InferAll runs inference for every symbol seen in the event log.
func (e *Engine) InferAll(ctx context.Context) (*Result, error) {
	symbols, err := e.events.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	total := &Result{}
	for _, symbol := range symbols {
		r, err := e.InferSymbol(ctx, symbol)
		if err != nil {
			return total, err
		}
		total.SignalsScanned += r.SignalsScanned
		total.Inserted += r.Inserted
		total.Deduplicated += r.Deduplicated
		total.SkippedConfirmed += r.SkippedConfirmed
		total.SkippedBadRow += r.SkippedBadRow
	}
	return total, nil
}

// InferSymbol scans the symbol's SIGNAL_CREATED history in occurred_at
// order and inserts synthetic CANCELLED events for unconfirmed signals
// superseded by an opposite-direction signal. A single bad row is
// logged and skipped; the batch continues.
func (e *Engine) InferSymbol(ctx context.Context, symbol string) (*Result, error) {
	signals, err := e.events.GetBySymbolAndType(ctx, symbol, domain.EventSignalCreated)
	if err != nil {
		return nil, fmt.Errorf("load signals for %s: %w", symbol, err)
	}

	result := &Result{SignalsScanned: len(signals)}

	for i := 0; i+1 < len(signals); i++ {
		current, next := signals[i], signals[i+1]

		if !current.Direction.Valid() || !next.Direction.Valid() {
			result.SkippedBadRow++
			e.log.Warn().
				Str("symbol", symbol).
				Str("trade_id", current.TradeID).
				Msg("skipping signal pair with unparseable direction")
			continue
		}
		if next.Direction == current.Direction {
			continue
		}

		inserted, err := e.cancelIfEligible(ctx, current, next)
		if err != nil {
			return result, err
		}
		switch inserted {
		case cancelInserted:
			result.Inserted++
		case cancelDeduplicated:
			result.Deduplicated++
		case cancelConfirmed:
			result.SkippedConfirmed++
		}
	}

	return result, nil
}

type cancelOutcome int

const (
	cancelInserted cancelOutcome = iota
	cancelDeduplicated
	cancelConfirmed
)

// cancelIfEligible re-checks the preconditions immediately before
// inserting: never cancel a confirmed trade, never double-insert.
func (e *Engine) cancelIfEligible(ctx context.Context, current, next *domain.Event) (cancelOutcome, error) {
	hasEntry, err := e.events.HasEventType(ctx, current.TradeID, domain.EventEntry)
	if err != nil {
		return 0, fmt.Errorf("check ENTRY for %s: %w", current.TradeID, err)
	}
	if hasEntry {
		return cancelConfirmed, nil
	}

	hasCancel, err := e.events.HasEventType(ctx, current.TradeID, domain.EventCancelled)
	if err != nil {
		return 0, fmt.Errorf("check CANCELLED for %s: %w", current.TradeID, err)
	}
	if hasCancel {
		return cancelDeduplicated, nil
	}

	// The cancellation takes effect the moment the opposite signal
	// appeared; reusing its timestamp keeps re-runs idempotent via the
	// dedup key.
	synthetic := &domain.Event{
		TradeID:         current.TradeID,
		EventType:       domain.EventCancelled,
		OccurredAt:      next.OccurredAt,
		ReceivedAt:      next.OccurredAt,
		Symbol:          current.Symbol,
		Direction:       current.Direction,
		Session:         current.Session,
		ConfidenceScore: InferredConfidence,
		DataSource:      domain.DataSourceInferred,
		TriggeredBy:     next.TradeID,
		BarOpenTs:       next.BarOpenTs,
		BarCloseTs:      next.BarCloseTs,
	}

	outcome, err := e.lifecycle.Append(ctx, synthetic)
	if err != nil {
		// An ENTRY can land between the precondition check and the
		// append; the lifecycle store is the authoritative guard.
		if errors.Is(err, domain.ErrInvariantViolation) {
			return cancelConfirmed, nil
		}
		return 0, fmt.Errorf("insert synthetic CANCELLED for %s: %w", current.TradeID, err)
	}
	if outcome == lifecycle.OutcomeDeduplicated {
		return cancelDeduplicated, nil
	}

	e.log.Info().
		Str("trade_id", current.TradeID).
		Str("triggered_by", next.TradeID).
		Str("symbol", current.Symbol).
		Msg("inferred cancellation")
	return cancelInserted, nil
}
