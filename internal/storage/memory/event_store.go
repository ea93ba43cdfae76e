package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Event // keyed by dedup key
	nextID int64
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data:   make(map[string]*domain.Event),
		nextID: 1,
	}
}

// eventKey generates the dedup key for an event.
func eventKey(tradeID string, eventType domain.EventType, occurredAtSec int64) string {
	return fmt.Sprintf("%s|%s|%d", tradeID, eventType, occurredAtSec)
}

// Insert adds a new event and fills e.ID. Returns ErrDuplicateKey if
// the dedup key exists.
func (s *EventStore) Insert(_ context.Context, e *domain.Event) error {
	if e == nil || e.TradeID == "" || !e.EventType.Valid() {
		return storage.ErrInvalidInput
	}

	key := eventKey(e.TradeID, e.EventType, e.DedupSecond())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	cp.ID = s.nextID
	cp.CreatedAt = time.Now().UTC()
	s.nextID++
	s.data[key] = &cp

	e.ID = cp.ID
	e.CreatedAt = cp.CreatedAt
	return nil
}

// GetByTradeID retrieves all events for a trade, ordered by occurred_at
// ASC, id ASC.
func (s *EventStore) GetByTradeID(_ context.Context, tradeID string) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.data {
		if e.TradeID == tradeID {
			cp := *e
			result = append(result, &cp)
		}
	}

	sortEvents(result)
	return result, nil
}

// GetBySymbolAndType retrieves all events of one type for a symbol,
// ordered by occurred_at ASC, id ASC.
func (s *EventStore) GetBySymbolAndType(_ context.Context, symbol string, eventType domain.EventType) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.data {
		if e.Symbol == symbol && e.EventType == eventType {
			cp := *e
			result = append(result, &cp)
		}
	}

	sortEvents(result)
	return result, nil
}

// HasEventType reports whether the trade has at least one event of the
// given type.
func (s *EventStore) HasEventType(_ context.Context, tradeID string, eventType domain.EventType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.data {
		if e.TradeID == tradeID && e.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

// ListTradeIDs returns distinct trade ids for a symbol (all symbols
// when empty), ordered by most recent event DESC.
func (s *EventStore) ListTradeIDs(_ context.Context, symbol string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]int64)
	for _, e := range s.data {
		if symbol != "" && e.Symbol != symbol {
			continue
		}
		if ts, ok := latest[e.TradeID]; !ok || e.OccurredAt > ts {
			latest[e.TradeID] = e.OccurredAt
		}
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		if latest[ids[i]] != latest[ids[j]] {
			return latest[ids[i]] > latest[ids[j]]
		}
		return ids[i] < ids[j]
	})

	return ids, nil
}

// ListSymbols returns distinct symbols seen across all events, ordered
// ascending.
func (s *EventStore) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.data {
		if e.Symbol != "" {
			seen[e.Symbol] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// sortEvents orders events by occurred_at ASC, id ASC.
func sortEvents(events []*domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].OccurredAt != events[j].OccurredAt {
			return events[i].OccurredAt < events[j].OccurredAt
		}
		return events[i].ID < events[j].ID
	})
}

var _ storage.EventStore = (*EventStore)(nil)
