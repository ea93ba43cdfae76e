package storage

import (
	"context"

	"trade-signal-lab/internal/domain"
)

// EventStore provides access to the append-only events table. Events
// are never updated or deleted.
type EventStore interface {
	// Insert adds a new event and fills e.ID. Returns ErrDuplicateKey
	// if (trade_id, event_type, occurred_at floored to second) exists.
	Insert(ctx context.Context, e *domain.Event) error

	// GetByTradeID retrieves all events for a trade, ordered by
	// occurred_at ASC, id ASC.
	GetByTradeID(ctx context.Context, tradeID string) ([]*domain.Event, error)

	// GetBySymbolAndType retrieves all events of one type for a symbol,
	// ordered by occurred_at ASC, id ASC.
	GetBySymbolAndType(ctx context.Context, symbol string, eventType domain.EventType) ([]*domain.Event, error)

	// HasEventType reports whether the trade has at least one event of
	// the given type.
	HasEventType(ctx context.Context, tradeID string, eventType domain.EventType) (bool, error)

	// ListTradeIDs returns distinct trade ids for a symbol (all symbols
	// when empty), ordered by most recent event DESC.
	ListTradeIDs(ctx context.Context, symbol string) ([]string, error)

	// ListSymbols returns distinct symbols seen across all events,
	// ordered ascending.
	ListSymbols(ctx context.Context) ([]string, error)
}

// BarStore provides read access to the OHLCV bars table. The table is
// populated upstream; this engine treats it as read-only, but InsertBulk
// exists for seeding and tests.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate
	// (symbol, ts).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetByTs retrieves the bar opening exactly at ts. Returns
	// ErrNotFound if absent.
	GetByTs(ctx context.Context, symbol string, ts int64) (*domain.Bar, error)

	// GetByTimeRange retrieves bars with ts in [start, end] inclusive,
	// ordered by ts ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error)

	// Count returns the number of bars with ts in [start, end].
	Count(ctx context.Context, symbol string, start, end int64) (int, error)
}

// BiasStore provides access to the derived bias_rows table.
type BiasStore interface {
	// Insert adds one bias row. Returns ErrDuplicateKey if
	// (symbol, timeframe, ts) exists.
	Insert(ctx context.Context, row *domain.BiasRow) error

	// InsertBulk adds multiple bias rows. Fails entire batch on
	// duplicate (symbol, timeframe, ts).
	InsertBulk(ctx context.Context, rows []*domain.BiasRow) error

	// LatestAtOrBefore retrieves the newest bias row with row.Ts <= ts
	// for the timeframe. Returns ErrNotFound if none exists.
	LatestAtOrBefore(ctx context.Context, symbol, timeframe string, ts int64) (*domain.BiasRow, error)

	// GetByTimeRange retrieves rows with ts in [start, end] inclusive,
	// ordered by ts ASC.
	GetByTimeRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]*domain.BiasRow, error)
}

// ExcursionStore provides access to excursion_results storage. Rows are
// upserted keyed by trade_id; recomputation overwrites deterministically.
type ExcursionStore interface {
	// Upsert inserts or replaces the result for r.TradeID.
	Upsert(ctx context.Context, r *domain.ExcursionResult) error

	// GetByTradeID retrieves the result for a trade. Returns
	// ErrNotFound if not computed yet.
	GetByTradeID(ctx context.Context, tradeID string) (*domain.ExcursionResult, error)

	// GetBySymbol retrieves all results for a symbol (all symbols when
	// empty), ordered by trade_id ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.ExcursionResult, error)
}

// CorpusStore provides access to corpus_runs and their snapshot rows.
// LOCKED runs are immutable; mutations return domain.ErrRunLocked.
type CorpusStore interface {
	// InsertRun adds a new PENDING run. Returns ErrDuplicateKey if the
	// run id exists.
	InsertRun(ctx context.Context, run *domain.CorpusRun) error

	// GetRun retrieves a run by id. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.CorpusRun, error)

	// ListRuns retrieves runs for a symbol (all symbols when empty),
	// ordered by created_at DESC.
	ListRuns(ctx context.Context, symbol string) ([]*domain.CorpusRun, error)

	// MarkComplete transitions a PENDING run to COMPLETE with its
	// fingerprint and row count.
	MarkComplete(ctx context.Context, runID, fingerprint string, rowCount int) error

	// MarkLocked transitions a COMPLETE run to LOCKED.
	MarkLocked(ctx context.Context, runID string) error

	// InsertSnapshotRows stores the materialized rows for a run. Fails
	// if the run is LOCKED.
	InsertSnapshotRows(ctx context.Context, runID string, rows []*domain.SnapshotRow) error

	// GetSnapshotRows retrieves a run's rows ordered by ts ASC.
	GetSnapshotRows(ctx context.Context, runID string) ([]*domain.SnapshotRow, error)
}
