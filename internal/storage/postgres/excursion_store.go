package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// ExcursionStore implements storage.ExcursionStore using PostgreSQL.
type ExcursionStore struct {
	pool *Pool
}

// NewExcursionStore creates a new ExcursionStore.
func NewExcursionStore(pool *Pool) *ExcursionStore {
	return &ExcursionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExcursionStore = (*ExcursionStore)(nil)

const excursionColumns = `
	trade_id, symbol, direction, risk_distance,
	no_be_mfe_r, be_mfe_r, mae_global_r,
	be_triggered, be_trigger_ts, highest_high, lowest_low,
	window_start_ts, window_end_ts, bars_replayed, computed_at, source
`

// Upsert inserts or replaces the result for r.TradeID. Recomputation is
// deterministic, so last write wins.
func (s *ExcursionStore) Upsert(ctx context.Context, r *domain.ExcursionResult) error {
	if r == nil || r.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO excursion_results (
			trade_id, symbol, direction, risk_distance,
			no_be_mfe_r, be_mfe_r, mae_global_r,
			be_triggered, be_trigger_ts, highest_high, lowest_low,
			window_start_ts, window_end_ts, bars_replayed, computed_at, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (trade_id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			direction = EXCLUDED.direction,
			risk_distance = EXCLUDED.risk_distance,
			no_be_mfe_r = EXCLUDED.no_be_mfe_r,
			be_mfe_r = EXCLUDED.be_mfe_r,
			mae_global_r = EXCLUDED.mae_global_r,
			be_triggered = EXCLUDED.be_triggered,
			be_trigger_ts = EXCLUDED.be_trigger_ts,
			highest_high = EXCLUDED.highest_high,
			lowest_low = EXCLUDED.lowest_low,
			window_start_ts = EXCLUDED.window_start_ts,
			window_end_ts = EXCLUDED.window_end_ts,
			bars_replayed = EXCLUDED.bars_replayed,
			computed_at = EXCLUDED.computed_at,
			source = EXCLUDED.source
	`

	_, err := s.pool.Exec(ctx, query,
		r.TradeID,
		r.Symbol,
		string(r.Direction),
		r.RiskDistance,
		r.NoBeMfeR,
		r.BeMfeR,
		r.MaeGlobalR,
		r.BeTriggered,
		r.BeTriggerTs,
		r.HighestHigh,
		r.LowestLow,
		r.WindowStartTs,
		r.WindowEndTs,
		r.BarsReplayed,
		r.ComputedAt,
		r.Source,
	)
	if err != nil {
		return fmt.Errorf("upsert excursion result: %w", err)
	}
	return nil
}

// GetByTradeID retrieves the result for a trade.
func (s *ExcursionStore) GetByTradeID(ctx context.Context, tradeID string) (*domain.ExcursionResult, error) {
	query := `
		SELECT ` + excursionColumns + `
		FROM excursion_results
		WHERE trade_id = $1
	`

	r, err := scanExcursion(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get excursion result: %w", err)
	}
	return r, nil
}

// GetBySymbol retrieves all results for a symbol (all symbols when
// empty), ordered by trade_id ASC.
func (s *ExcursionStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.ExcursionResult, error) {
	query := `
		SELECT ` + excursionColumns + `
		FROM excursion_results
		WHERE $1 = '' OR symbol = $1
		ORDER BY trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get excursion results by symbol: %w", err)
	}
	defer rows.Close()

	var results []*domain.ExcursionResult
	for rows.Next() {
		r, err := scanExcursion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan excursion row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate excursion rows: %w", err)
	}
	return results, nil
}

// scanExcursion scans one excursion row.
func scanExcursion(row pgx.Row) (*domain.ExcursionResult, error) {
	var r domain.ExcursionResult
	var direction string

	err := row.Scan(
		&r.TradeID,
		&r.Symbol,
		&direction,
		&r.RiskDistance,
		&r.NoBeMfeR,
		&r.BeMfeR,
		&r.MaeGlobalR,
		&r.BeTriggered,
		&r.BeTriggerTs,
		&r.HighestHigh,
		&r.LowestLow,
		&r.WindowStartTs,
		&r.WindowEndTs,
		&r.BarsReplayed,
		&r.ComputedAt,
		&r.Source,
	)
	if err != nil {
		return nil, err
	}

	r.Direction = domain.Direction(direction)
	return &r, nil
}
