package clickhouse

import (
	"context"
	"fmt"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// BiasStore implements storage.BiasStore using ClickHouse.
type BiasStore struct {
	conn *Conn
}

// NewBiasStore creates a new BiasStore.
func NewBiasStore(conn *Conn) *BiasStore {
	return &BiasStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BiasStore = (*BiasStore)(nil)

// Insert adds one bias row. Returns ErrDuplicateKey if
// (symbol, timeframe, ts) exists.
func (s *BiasStore) Insert(ctx context.Context, row *domain.BiasRow) error {
	if row == nil || row.Symbol == "" || row.Timeframe == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, row.Symbol, row.Timeframe, row.Ts)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO bias_rows (symbol, timeframe, ts, bias, trade_id)
		VALUES (?, ?, ?, ?, ?)
	`
	err = s.conn.Exec(ctx, query, row.Symbol, row.Timeframe, uint64(row.Ts), string(row.Bias), row.TradeID)
	if err != nil {
		return fmt.Errorf("insert bias row: %w", err)
	}
	return nil
}

// InsertBulk adds multiple bias rows. Fails entire batch on duplicate
// (symbol, timeframe, ts).
func (s *BiasStore) InsertBulk(ctx context.Context, rows []*domain.BiasRow) error {
	if len(rows) == 0 {
		return nil
	}

	type key struct {
		symbol    string
		timeframe string
		ts        int64
	}
	seen := make(map[key]struct{})
	for _, r := range rows {
		if r == nil || r.Symbol == "" || r.Timeframe == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.Symbol, r.Timeframe, r.Ts}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, r := range rows {
		exists, err := s.exists(ctx, r.Symbol, r.Timeframe, r.Ts)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bias_rows (symbol, timeframe, ts, bias, trade_id)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(r.Symbol, r.Timeframe, uint64(r.Ts), string(r.Bias), r.TradeID)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// LatestAtOrBefore retrieves the newest bias row with row.Ts <= ts.
func (s *BiasStore) LatestAtOrBefore(ctx context.Context, symbol, timeframe string, ts int64) (*domain.BiasRow, error) {
	query := `
		SELECT symbol, timeframe, ts, bias, trade_id
		FROM bias_rows
		WHERE symbol = ? AND timeframe = ? AND ts <= ?
		ORDER BY ts DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, symbol, timeframe, uint64(ts))
	if err != nil {
		return nil, fmt.Errorf("query latest bias row: %w", err)
	}
	defer rows.Close()

	result, err := scanBiasRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	return result[0], nil
}

// GetByTimeRange retrieves rows with ts in [start, end] inclusive,
// ordered by ts ASC.
func (s *BiasStore) GetByTimeRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]*domain.BiasRow, error) {
	query := `
		SELECT symbol, timeframe, ts, bias, trade_id
		FROM bias_rows
		WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, timeframe, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query bias rows by time range: %w", err)
	}
	defer rows.Close()

	return scanBiasRows(rows)
}

// exists checks if a bias row with the given key exists.
func (s *BiasStore) exists(ctx context.Context, symbol, timeframe string, ts int64) (bool, error) {
	query := `SELECT count(*) FROM bias_rows WHERE symbol = ? AND timeframe = ? AND ts = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, timeframe, uint64(ts)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanBiasRows scans multiple rows.
func scanBiasRows(rows chRows) ([]*domain.BiasRow, error) {
	var result []*domain.BiasRow

	for rows.Next() {
		var r domain.BiasRow
		var ts uint64
		var bias string

		err := rows.Scan(&r.Symbol, &r.Timeframe, &ts, &bias, &r.TradeID)
		if err != nil {
			return nil, fmt.Errorf("scan bias row: %w", err)
		}

		r.Ts = int64(ts)
		r.Bias = domain.Direction(bias)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bias rows: %w", err)
	}

	return result, nil
}
