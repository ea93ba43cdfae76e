package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// BiasStore is an in-memory implementation of storage.BiasStore.
type BiasStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BiasRow // keyed by (symbol, timeframe, ts)
}

// NewBiasStore creates a new in-memory bias store.
func NewBiasStore() *BiasStore {
	return &BiasStore{
		data: make(map[string]*domain.BiasRow),
	}
}

// biasKey generates a unique key for a bias row.
func biasKey(symbol, timeframe string, ts int64) string {
	return fmt.Sprintf("%s|%s|%d", symbol, timeframe, ts)
}

// Insert adds one bias row. Returns ErrDuplicateKey if exists.
func (s *BiasStore) Insert(_ context.Context, row *domain.BiasRow) error {
	if row == nil || row.Symbol == "" || row.Timeframe == "" {
		return storage.ErrInvalidInput
	}

	key := biasKey(row.Symbol, row.Timeframe, row.Ts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *row
	s.data[key] = &cp
	return nil
}

// InsertBulk adds multiple bias rows. Fails entire batch on any duplicate.
func (s *BiasStore) InsertBulk(_ context.Context, rows []*domain.BiasRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.Symbol == "" || r.Timeframe == "" {
			return storage.ErrInvalidInput
		}
		key := biasKey(r.Symbol, r.Timeframe, r.Ts)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		cp := *r
		s.data[biasKey(r.Symbol, r.Timeframe, r.Ts)] = &cp
	}

	return nil
}

// LatestAtOrBefore retrieves the newest bias row with row.Ts <= ts.
func (s *BiasStore) LatestAtOrBefore(_ context.Context, symbol, timeframe string, ts int64) (*domain.BiasRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.BiasRow
	for _, r := range s.data {
		if r.Symbol != symbol || r.Timeframe != timeframe || r.Ts > ts {
			continue
		}
		if best == nil || r.Ts > best.Ts {
			best = r
		}
	}

	if best == nil {
		return nil, storage.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// GetByTimeRange retrieves rows with ts in [start, end] inclusive,
// ordered by ts ASC.
func (s *BiasStore) GetByTimeRange(_ context.Context, symbol, timeframe string, start, end int64) ([]*domain.BiasRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BiasRow
	for _, r := range s.data {
		if r.Symbol == symbol && r.Timeframe == timeframe && r.Ts >= start && r.Ts <= end {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ts < result[j].Ts
	})

	return result, nil
}

var _ storage.BiasStore = (*BiasStore)(nil)
