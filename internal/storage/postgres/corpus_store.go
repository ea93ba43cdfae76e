package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// CorpusStore implements storage.CorpusStore using PostgreSQL.
type CorpusStore struct {
	pool *Pool
}

// NewCorpusStore creates a new CorpusStore.
func NewCorpusStore(pool *Pool) *CorpusStore {
	return &CorpusStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CorpusStore = (*CorpusStore)(nil)

// InsertRun adds a new PENDING run.
func (s *CorpusStore) InsertRun(ctx context.Context, run *domain.CorpusRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	status := run.Status
	if status == "" {
		status = domain.RunPending
	}

	query := `
		INSERT INTO corpus_runs (
			run_id, symbol, start_ts, end_ts, logic_version, status, fingerprint, row_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query,
		run.RunID,
		run.Symbol,
		run.StartTs,
		run.EndTs,
		run.LogicVersion,
		string(status),
		run.Fingerprint,
		run.RowCount,
	).Scan(&run.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert corpus run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *CorpusStore) GetRun(ctx context.Context, runID string) (*domain.CorpusRun, error) {
	query := `
		SELECT run_id, symbol, start_ts, end_ts, logic_version, status, fingerprint, row_count,
		       created_at, completed_at, locked_at
		FROM corpus_runs
		WHERE run_id = $1
	`

	var run domain.CorpusRun
	var status string
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&run.Symbol,
		&run.StartTs,
		&run.EndTs,
		&run.LogicVersion,
		&status,
		&run.Fingerprint,
		&run.RowCount,
		&run.CreatedAt,
		&run.CompletedAt,
		&run.LockedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get corpus run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	return &run, nil
}

// ListRuns retrieves runs for a symbol (all symbols when empty),
// ordered by created_at DESC.
func (s *CorpusStore) ListRuns(ctx context.Context, symbol string) ([]*domain.CorpusRun, error) {
	query := `
		SELECT run_id, symbol, start_ts, end_ts, logic_version, status, fingerprint, row_count,
		       created_at, completed_at, locked_at
		FROM corpus_runs
		WHERE $1 = '' OR symbol = $1
		ORDER BY created_at DESC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("list corpus runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.CorpusRun
	for rows.Next() {
		var run domain.CorpusRun
		var status string
		err := rows.Scan(
			&run.RunID,
			&run.Symbol,
			&run.StartTs,
			&run.EndTs,
			&run.LogicVersion,
			&status,
			&run.Fingerprint,
			&run.RowCount,
			&run.CreatedAt,
			&run.CompletedAt,
			&run.LockedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan corpus run row: %w", err)
		}
		run.Status = domain.RunStatus(status)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus run rows: %w", err)
	}
	return runs, nil
}

// MarkComplete transitions a PENDING run to COMPLETE with its
// fingerprint and row count.
func (s *CorpusStore) MarkComplete(ctx context.Context, runID, fingerprint string, rowCount int) error {
	query := `
		UPDATE corpus_runs
		SET status = $2, fingerprint = $3, row_count = $4, completed_at = now()
		WHERE run_id = $1 AND status <> $5
	`

	tag, err := s.pool.Exec(ctx, query, runID, string(domain.RunComplete), fingerprint, rowCount, string(domain.RunLocked))
	if err != nil {
		return fmt.Errorf("mark run complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMissedUpdate(ctx, runID)
	}
	return nil
}

// MarkLocked transitions a COMPLETE run to LOCKED.
func (s *CorpusStore) MarkLocked(ctx context.Context, runID string) error {
	query := `
		UPDATE corpus_runs
		SET status = $2, locked_at = now()
		WHERE run_id = $1 AND status = $3
	`

	tag, err := s.pool.Exec(ctx, query, runID, string(domain.RunLocked), string(domain.RunComplete))
	if err != nil {
		return fmt.Errorf("mark run locked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := s.classifyMissedUpdate(ctx, runID); err != nil {
			return err
		}
		// Run exists, is not locked, but is not COMPLETE either.
		return storage.ErrInvalidInput
	}
	return nil
}

// classifyMissedUpdate distinguishes a missing run from a locked one
// after a guarded UPDATE touched no rows.
func (s *CorpusStore) classifyMissedUpdate(ctx context.Context, runID string) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status == domain.RunLocked {
		return domain.ErrRunLocked
	}
	return nil
}

// InsertSnapshotRows stores the materialized rows for a run. The bias
// stack is stored as jsonb.
func (s *CorpusStore) InsertSnapshotRows(ctx context.Context, runID string, rows []*domain.SnapshotRow) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status == domain.RunLocked {
		return domain.ErrRunLocked
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO corpus_snapshot_rows (
			run_id, symbol, ts, open, high, low, close, volume, bias, row_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		bias, err := json.Marshal(r.Bias)
		if err != nil {
			return fmt.Errorf("marshal bias stack: %w", err)
		}
		_, err = tx.Exec(ctx, query,
			runID,
			r.Symbol,
			r.Ts,
			r.Open,
			r.High,
			r.Low,
			r.Close,
			r.Volume,
			bias,
			r.RowHash,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert snapshot row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSnapshotRows retrieves a run's rows ordered by ts ASC.
func (s *CorpusStore) GetSnapshotRows(ctx context.Context, runID string) ([]*domain.SnapshotRow, error) {
	query := `
		SELECT run_id, symbol, ts, open, high, low, close, volume, bias, row_hash
		FROM corpus_snapshot_rows
		WHERE run_id = $1
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot rows: %w", err)
	}
	defer rows.Close()

	var result []*domain.SnapshotRow
	for rows.Next() {
		var r domain.SnapshotRow
		var bias []byte
		err := rows.Scan(
			&r.RunID,
			&r.Symbol,
			&r.Ts,
			&r.Open,
			&r.High,
			&r.Low,
			&r.Close,
			&r.Volume,
			&bias,
			&r.RowHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if len(bias) > 0 {
			if err := json.Unmarshal(bias, &r.Bias); err != nil {
				return nil, fmt.Errorf("unmarshal bias stack: %w", err)
			}
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return result, nil
}
