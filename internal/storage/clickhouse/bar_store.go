package clickhouse

import (
	"context"
	"fmt"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse. The bars table
// is MergeTree; uniqueness of (symbol, ts) is enforced by explicit
// checks before insert, matching how the table is populated upstream.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate
// (symbol, ts).
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]struct{})
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Symbol, b.Ts}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Symbol, b.Ts)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (symbol, ts, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(b.Symbol, uint64(b.Ts), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTs retrieves the bar opening exactly at ts.
func (s *BarStore) GetByTs(ctx context.Context, symbol string, ts int64) (*domain.Bar, error) {
	query := `
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(ts))
	if err != nil {
		return nil, fmt.Errorf("query bar by ts: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, storage.ErrNotFound
	}
	return bars[0], nil
}

// GetByTimeRange retrieves bars with ts in [start, end] inclusive,
// ordered by ts ASC.
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Count returns the number of bars with ts in [start, end].
func (s *BarStore) Count(ctx context.Context, symbol string, start, end int64) (int, error) {
	query := `
		SELECT count(*) FROM bars
		WHERE symbol = ? AND ts >= ? AND ts <= ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(start), uint64(end)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return int(count), nil
}

// exists checks if a bar with the given key exists.
func (s *BarStore) exists(ctx context.Context, symbol string, ts int64) (bool, error) {
	query := `SELECT count(*) FROM bars WHERE symbol = ? AND ts = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(ts)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		var ts uint64

		err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.Ts = int64(ts)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
