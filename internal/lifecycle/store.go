// Package lifecycle owns the append path for trade signal events and
// the derived per-trade state projection.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// AppendOutcome classifies a successful append call.
type AppendOutcome string

// Append outcomes. Deduplicated is not an error; retransmits are
// expected from the source.
const (
	OutcomeAccepted     AppendOutcome = "ACCEPTED"
	OutcomeDeduplicated AppendOutcome = "DEDUPLICATED"
)

// Store wraps the event store with the lifecycle rules: per-trade write
// serialization, the single-ENTRY invariant, cancellation immunity for
// confirmed trades, and carry-forward of identity fields.
type Store struct {
	events storage.EventStore
	locks  *keyedMutex
	log    zerolog.Logger
}

// NewStore creates a lifecycle store over the given event storage.
func NewStore(events storage.EventStore, log zerolog.Logger) *Store {
	return &Store{
		events: events,
		locks:  newKeyedMutex(),
		log:    log.With().Str("component", "lifecycle").Logger(),
	}
}

// Append persists a canonical event. It returns OutcomeDeduplicated for
// retransmits and duplicate ENTRY events, and ErrInvariantViolation for
// a CANCELLED write against a confirmed trade.
func (s *Store) Append(ctx context.Context, e *domain.Event) (AppendOutcome, error) {
	if e == nil || e.TradeID == "" {
		return "", storage.ErrInvalidInput
	}

	unlock := s.locks.Lock(e.TradeID)
	defer unlock()

	prior, err := s.events.GetByTradeID(ctx, e.TradeID)
	if err != nil {
		return "", fmt.Errorf("load prior events: %w", err)
	}

	if e.EventType == domain.EventEntry && hasType(prior, domain.EventEntry) {
		s.log.Debug().Str("trade_id", e.TradeID).Msg("duplicate ENTRY deduplicated")
		return OutcomeDeduplicated, nil
	}

	if e.EventType == domain.EventCancelled && hasType(prior, domain.EventEntry) {
		s.log.Error().Str("trade_id", e.TradeID).
			Msg("rejected CANCELLED write against confirmed trade")
		return "", fmt.Errorf("%w: trade %s has an ENTRY and is cancellation-immune",
			domain.ErrInvariantViolation, e.TradeID)
	}

	carryForward(e, prior)

	if err := s.events.Insert(ctx, e); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return OutcomeDeduplicated, nil
		}
		return "", fmt.Errorf("insert event: %w", err)
	}

	s.log.Debug().
		Str("trade_id", e.TradeID).
		Str("event_type", string(e.EventType)).
		Int64("occurred_at", e.OccurredAt).
		Msg("event appended")

	return OutcomeAccepted, nil
}

// LatestState recomputes the trade projection from its full event set.
// Status is never cached across writes.
func (s *Store) LatestState(ctx context.Context, tradeID string) (*domain.Trade, error) {
	events, err := s.events.GetByTradeID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return domain.ProjectTrade(tradeID, events), nil
}

// carryForward copies symbol, direction, entry price and stop loss from
// the most recent prior event when the incoming event omits them. Prior
// events arrive ordered occurred_at ASC.
func carryForward(e *domain.Event, prior []*domain.Event) {
	for i := len(prior) - 1; i >= 0; i-- {
		p := prior[i]
		if e.Symbol == "" && p.Symbol != "" {
			e.Symbol = p.Symbol
		}
		if !e.Direction.Valid() && p.Direction.Valid() {
			e.Direction = p.Direction
		}
		if e.EntryPrice == nil && p.EntryPrice != nil {
			v := *p.EntryPrice
			e.EntryPrice = &v
		}
		if e.StopLoss == nil && p.StopLoss != nil {
			v := *p.StopLoss
			e.StopLoss = &v
		}
		if e.Symbol != "" && e.Direction.Valid() && e.EntryPrice != nil && e.StopLoss != nil {
			return
		}
	}
}

func hasType(events []*domain.Event, t domain.EventType) bool {
	for _, e := range events {
		if e.EventType == t {
			return true
		}
	}
	return false
}
