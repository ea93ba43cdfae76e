package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// CorpusStore is an in-memory implementation of storage.CorpusStore.
type CorpusStore struct {
	mu   sync.RWMutex
	runs map[string]*domain.CorpusRun
	rows map[string][]*domain.SnapshotRow // keyed by run_id
}

// NewCorpusStore creates a new in-memory corpus store.
func NewCorpusStore() *CorpusStore {
	return &CorpusStore{
		runs: make(map[string]*domain.CorpusRun),
		rows: make(map[string][]*domain.SnapshotRow),
	}
}

// InsertRun adds a new PENDING run.
func (s *CorpusStore) InsertRun(_ context.Context, run *domain.CorpusRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *run
	if cp.Status == "" {
		cp.Status = domain.RunPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.runs[run.RunID] = &cp
	return nil
}

// GetRun retrieves a run by id.
func (s *CorpusStore) GetRun(_ context.Context, runID string) (*domain.CorpusRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

// ListRuns retrieves runs for a symbol (all symbols when empty),
// ordered by created_at DESC.
func (s *CorpusStore) ListRuns(_ context.Context, symbol string) ([]*domain.CorpusRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CorpusRun
	for _, run := range s.runs {
		if symbol == "" || run.Symbol == symbol {
			cp := *run
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// MarkComplete transitions a PENDING run to COMPLETE.
func (s *CorpusStore) MarkComplete(_ context.Context, runID, fingerprint string, rowCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Status == domain.RunLocked {
		return domain.ErrRunLocked
	}

	now := time.Now().UTC()
	run.Status = domain.RunComplete
	run.Fingerprint = fingerprint
	run.RowCount = rowCount
	run.CompletedAt = &now
	return nil
}

// MarkLocked transitions a COMPLETE run to LOCKED.
func (s *CorpusStore) MarkLocked(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Status == domain.RunLocked {
		return domain.ErrRunLocked
	}
	if run.Status != domain.RunComplete {
		return storage.ErrInvalidInput
	}

	now := time.Now().UTC()
	run.Status = domain.RunLocked
	run.LockedAt = &now
	return nil
}

// InsertSnapshotRows stores the materialized rows for a run.
func (s *CorpusStore) InsertSnapshotRows(_ context.Context, runID string, rows []*domain.SnapshotRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Status == domain.RunLocked {
		return domain.ErrRunLocked
	}

	cps := make([]*domain.SnapshotRow, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		cp := *r
		cp.RunID = runID
		if r.Bias != nil {
			cp.Bias = make(map[string]domain.Direction, len(r.Bias))
			for tf, b := range r.Bias {
				cp.Bias[tf] = b
			}
		}
		cps = append(cps, &cp)
	}
	s.rows[runID] = append(s.rows[runID], cps...)
	return nil
}

// GetSnapshotRows retrieves a run's rows ordered by ts ASC.
func (s *CorpusStore) GetSnapshotRows(_ context.Context, runID string) ([]*domain.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.rows[runID]
	result := make([]*domain.SnapshotRow, 0, len(stored))
	for _, r := range stored {
		cp := *r
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ts < result[j].Ts
	})

	return result, nil
}

var _ storage.CorpusStore = (*CorpusStore)(nil)
