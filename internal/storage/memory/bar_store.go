package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bar // keyed by (symbol, ts)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.Bar),
	}
}

// barKey generates a unique key for a bar.
func barKey(symbol string, ts int64) string {
	return fmt.Sprintf("%s|%d", symbol, ts)
}

// InsertBulk adds multiple bars. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Symbol, b.Ts)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		cp := *b
		s.data[barKey(b.Symbol, b.Ts)] = &cp
	}

	return nil
}

// GetByTs retrieves the bar opening exactly at ts.
func (s *BarStore) GetByTs(_ context.Context, symbol string, ts int64) (*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[barKey(symbol, ts)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// GetByTimeRange retrieves bars with ts in [start, end] inclusive,
// ordered by ts ASC.
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.Symbol == symbol && b.Ts >= start && b.Ts <= end {
			cp := *b
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ts < result[j].Ts
	})

	return result, nil
}

// Count returns the number of bars with ts in [start, end].
func (s *BarStore) Count(_ context.Context, symbol string, start, end int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.data {
		if b.Symbol == symbol && b.Ts >= start && b.Ts <= end {
			n++
		}
	}
	return n, nil
}

var _ storage.BarStore = (*BarStore)(nil)
