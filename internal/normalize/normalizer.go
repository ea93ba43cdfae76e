// Package normalize maps loosely-shaped alert payloads onto canonical
// lifecycle events. Nothing past this boundary operates on untyped data.
package normalize

import (
	"fmt"
	"time"

	"trade-signal-lab/internal/domain"
)

// Payload is the loose inbound shape posted by the alerting tool. Field
// names follow the webhook contract; unknown fields are ignored by the
// JSON decoder.
type Payload struct {
	TradeID   string `json:"tradeId"`
	EventType string `json:"eventType"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"`
	Session   string `json:"session"`

	EntryPrice   *float64 `json:"entry_price"`
	StopLoss     *float64 `json:"stop_loss"`
	CurrentPrice *float64 `json:"current_price"`
	BeMfe        *float64 `json:"be_mfe"`
	NoBeMfe      *float64 `json:"no_be_mfe"`
	MaeGlobalR   *float64 `json:"mae_global_r"`
}

// Normalizer converts payloads to canonical events for one bar interval.
type Normalizer struct {
	interval time.Duration
	now      func() time.Time
}

// New creates a Normalizer for the given bar interval.
func New(interval time.Duration) *Normalizer {
	return &Normalizer{interval: interval, now: time.Now}
}

// NewWithClock creates a Normalizer with an injected clock, for tests.
func NewWithClock(interval time.Duration, now func() time.Time) *Normalizer {
	return &Normalizer{interval: interval, now: now}
}

// Interval returns the configured bar interval.
func (n *Normalizer) Interval() time.Duration {
	return n.interval
}

// Normalize validates a payload and returns the canonical event, or
// domain.ErrMalformedEvent when identity fields are missing or the event
// type is unknown. It has no side effects; persistence belongs to the
// lifecycle store.
func (n *Normalizer) Normalize(p *Payload) (*domain.Event, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", domain.ErrMalformedEvent)
	}
	if p.TradeID == "" {
		return nil, fmt.Errorf("%w: missing tradeId", domain.ErrMalformedEvent)
	}
	eventType := domain.EventType(p.EventType)
	if p.EventType == "" {
		return nil, fmt.Errorf("%w: missing eventType", domain.ErrMalformedEvent)
	}
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: unknown eventType %q", domain.ErrMalformedEvent, p.EventType)
	}
	if p.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: missing timestamp", domain.ErrMalformedEvent)
	}

	barOpen := domain.FloorToInterval(p.Timestamp, n.interval)
	e := &domain.Event{
		TradeID:         p.TradeID,
		EventType:       eventType,
		OccurredAt:      p.Timestamp,
		ReceivedAt:      n.now().UTC().UnixMilli(),
		Symbol:          p.Symbol,
		Direction:       NormalizeDirection(p.Direction, p.TradeID),
		Session:         p.Session,
		EntryPrice:      p.EntryPrice,
		StopLoss:        p.StopLoss,
		CurrentPrice:    p.CurrentPrice,
		BeMfe:           p.BeMfe,
		NoBeMfe:         p.NoBeMfe,
		MaeGlobalR:      p.MaeGlobalR,
		ConfidenceScore: 1.0,
		DataSource:      domain.DataSourceWebhook,
		BarOpenTs:       barOpen,
		BarCloseTs:      barOpen + n.interval.Milliseconds(),
	}

	// The entry bar opens one interval after the bar whose close
	// triggered entry.
	if eventType == domain.EventEntry {
		e.ConfirmationBarCloseTs = barOpen - n.interval.Milliseconds()
	}

	return e, nil
}
