package domain

import "time"

// EventType classifies a lifecycle event for a trade signal.
type EventType string

// Lifecycle event types as emitted by the alerting tool, plus the
// synthetic CANCELLED events inserted by the inference engine.
const (
	EventSignalCreated EventType = "SIGNAL_CREATED"
	EventEntry         EventType = "ENTRY"
	EventMFEUpdate     EventType = "MFE_UPDATE"
	EventBETriggered   EventType = "BE_TRIGGERED"
	EventExitStopLoss  EventType = "EXIT_STOP_LOSS"
	EventExitBreakEven EventType = "EXIT_BREAK_EVEN"
	EventCancelled     EventType = "CANCELLED"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventSignalCreated, EventEntry, EventMFEUpdate, EventBETriggered,
		EventExitStopLoss, EventExitBreakEven, EventCancelled:
		return true
	}
	return false
}

// IsExit reports whether t terminates a trade at the exchange.
func (t EventType) IsExit() bool {
	return t == EventExitStopLoss || t == EventExitBreakEven
}

// Direction is the trade direction of a signal.
type Direction string

// Trade directions.
const (
	DirectionBullish Direction = "Bullish"
	DirectionBearish Direction = "Bearish"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionBullish || d == DirectionBearish
}

// Data sources recorded on events.
const (
	DataSourceWebhook  = "webhook"
	DataSourceInferred = "backend_inferred"
)

// Event is one immutable fact about a trade signal's lifecycle.
// Events are insert-only; the dedup key is (TradeID, EventType,
// OccurredAt floored to the second). Corresponds to the events table.
type Event struct {
	ID         int64     // assigned by storage
	TradeID    string    // opaque, client-generated, stable per signal
	EventType  EventType // see constants above
	OccurredAt int64     // source timestamp, Unix ms
	ReceivedAt int64     // ingestion timestamp, Unix ms
	Symbol     string
	Direction  Direction // carried forward when the source omits it
	Session    string    // trading session label, optional

	// Type-specific numeric payload. Nil means the source did not send
	// the field; carry-forward fills some of these before persist.
	EntryPrice   *float64
	StopLoss     *float64
	CurrentPrice *float64
	BeMfe        *float64
	NoBeMfe      *float64
	MaeGlobalR   *float64

	// Provenance. ConfidenceScore is 1.0 for source events and below
	// 1.0 for inferred ones; TriggeredBy names the trade whose signal
	// caused a synthetic CANCELLED insert.
	ConfidenceScore float64
	DataSource      string
	TriggeredBy     string

	// Bar alignment, derived at normalization from OccurredAt.
	BarOpenTs  int64 // OccurredAt floored to the bar interval, ms
	BarCloseTs int64 // BarOpenTs + interval, ms
	// ENTRY only: close time of the bar whose close triggered entry.
	ConfirmationBarCloseTs int64

	CreatedAt time.Time // assigned by storage
}

// DedupSecond returns OccurredAt floored to the second, the granularity
// used in the dedup key. Sources retransmit with millisecond jitter.
func (e *Event) DedupSecond() int64 {
	return e.OccurredAt / 1000
}
