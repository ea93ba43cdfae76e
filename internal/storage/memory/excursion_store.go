package memory

import (
	"context"
	"sort"
	"sync"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// ExcursionStore is an in-memory implementation of storage.ExcursionStore.
type ExcursionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExcursionResult // keyed by trade_id
}

// NewExcursionStore creates a new in-memory excursion store.
func NewExcursionStore() *ExcursionStore {
	return &ExcursionStore{
		data: make(map[string]*domain.ExcursionResult),
	}
}

// Upsert inserts or replaces the result for r.TradeID.
func (s *ExcursionStore) Upsert(_ context.Context, r *domain.ExcursionResult) error {
	if r == nil || r.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.data[r.TradeID] = &cp
	return nil
}

// GetByTradeID retrieves the result for a trade.
func (s *ExcursionStore) GetByTradeID(_ context.Context, tradeID string) (*domain.ExcursionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[tradeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// GetBySymbol retrieves all results for a symbol (all symbols when
// empty), ordered by trade_id ASC.
func (s *ExcursionStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.ExcursionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExcursionResult
	for _, r := range s.data {
		if symbol == "" || r.Symbol == symbol {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TradeID < result[j].TradeID
	})

	return result, nil
}

var _ storage.ExcursionStore = (*ExcursionStore)(nil)
