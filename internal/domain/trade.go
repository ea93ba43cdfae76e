package domain

// TradeStatus is the derived lifecycle status of a trade signal.
type TradeStatus string

// Trade statuses, in precedence order: CANCELLED beats EXITED beats
// ACTIVE beats PENDING.
const (
	StatusPending   TradeStatus = "PENDING"
	StatusActive    TradeStatus = "ACTIVE"
	StatusExited    TradeStatus = "EXITED"
	StatusCancelled TradeStatus = "CANCELLED"
)

// Trade is a projection over all events sharing a TradeID. It is never
// stored; status is recomputed from the event set on every read.
type Trade struct {
	TradeID   string
	Symbol    string
	Direction Direction
	Status    TradeStatus
	Session   string

	EntryPrice *float64
	StopLoss   *float64

	SignalAt int64 // occurredAt of SIGNAL_CREATED, ms (0 if absent)
	EntryAt  int64 // occurredAt of ENTRY, ms (0 if absent)
	ExitAt   int64 // occurredAt of first EXIT_* event, ms (0 if absent)

	EntryBarOpenTs int64 // bar-open ts of the ENTRY event, ms
	ExitBarOpenTs  int64 // bar-open ts of the exit event, ms
	ExitReason     EventType

	// Latest streamed excursion metrics, if any MFE_UPDATE arrived.
	LiveBeMfe      *float64
	LiveNoBeMfe    *float64
	LiveMaeGlobalR *float64
	LastUpdateAt   int64 // occurredAt of the latest MFE_UPDATE, ms

	EventCount int
}

// ProjectTrade derives a Trade from the trade's events. Events may
// arrive in any order; projection uses event types and occurredAt, not
// insertion order.
func ProjectTrade(tradeID string, events []*Event) *Trade {
	t := &Trade{TradeID: tradeID, Status: StatusPending, EventCount: len(events)}

	for _, e := range events {
		if e.Symbol != "" {
			t.Symbol = e.Symbol
		}
		if e.Direction.Valid() {
			t.Direction = e.Direction
		}
		if e.Session != "" {
			t.Session = e.Session
		}
		if e.EntryPrice != nil {
			t.EntryPrice = e.EntryPrice
		}
		if e.StopLoss != nil {
			t.StopLoss = e.StopLoss
		}

		switch e.EventType {
		case EventSignalCreated:
			if t.SignalAt == 0 || e.OccurredAt < t.SignalAt {
				t.SignalAt = e.OccurredAt
			}
		case EventEntry:
			t.EntryAt = e.OccurredAt
			t.EntryBarOpenTs = e.BarOpenTs
		case EventExitStopLoss, EventExitBreakEven:
			if t.ExitAt == 0 || e.OccurredAt < t.ExitAt {
				t.ExitAt = e.OccurredAt
				t.ExitBarOpenTs = e.BarOpenTs
				t.ExitReason = e.EventType
			}
		case EventMFEUpdate:
			if e.OccurredAt >= t.LastUpdateAt {
				t.LastUpdateAt = e.OccurredAt
				t.LiveBeMfe = e.BeMfe
				t.LiveNoBeMfe = e.NoBeMfe
				t.LiveMaeGlobalR = e.MaeGlobalR
			}
		}
	}

	t.Status = deriveStatus(events)
	return t
}

// deriveStatus applies the precedence rule from the lifecycle contract:
// CANCELLED if any CANCELLED event exists, else EXITED if any EXIT_*
// exists, else ACTIVE if an ENTRY exists, else PENDING.
func deriveStatus(events []*Event) TradeStatus {
	var hasCancel, hasExit, hasEntry bool
	for _, e := range events {
		switch {
		case e.EventType == EventCancelled:
			hasCancel = true
		case e.EventType.IsExit():
			hasExit = true
		case e.EventType == EventEntry:
			hasEntry = true
		}
	}
	switch {
	case hasCancel:
		return StatusCancelled
	case hasExit:
		return StatusExited
	case hasEntry:
		return StatusActive
	default:
		return StatusPending
	}
}

// HasEntry reports whether the trade is confirmed. Confirmed trades are
// cancellation-immune.
func (t *Trade) HasEntry() bool {
	return t.EntryAt != 0
}
