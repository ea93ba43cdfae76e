package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL. The dedup
// key is enforced by a unique index over (trade_id, event_type,
// occurred_at_sec), where occurred_at_sec is a generated column.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	id, trade_id, event_type, occurred_at, received_at, symbol, direction, session,
	entry_price, stop_loss, current_price, be_mfe, no_be_mfe, mae_global_r,
	confidence_score, data_source, triggered_by,
	bar_open_ts, bar_close_ts, confirmation_bar_close_ts, created_at
`

// Insert adds a new event and fills e.ID. Returns ErrDuplicateKey if the
// dedup key exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.Event) error {
	if e == nil || e.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO events (
			trade_id, event_type, occurred_at, received_at, symbol, direction, session,
			entry_price, stop_loss, current_price, be_mfe, no_be_mfe, mae_global_r,
			confidence_score, data_source, triggered_by,
			bar_open_ts, bar_close_ts, confirmation_bar_close_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		e.TradeID,
		string(e.EventType),
		e.OccurredAt,
		e.ReceivedAt,
		e.Symbol,
		string(e.Direction),
		e.Session,
		e.EntryPrice,
		e.StopLoss,
		e.CurrentPrice,
		e.BeMfe,
		e.NoBeMfe,
		e.MaeGlobalR,
		e.ConfidenceScore,
		e.DataSource,
		e.TriggeredBy,
		e.BarOpenTs,
		e.BarCloseTs,
		e.ConfirmationBarCloseTs,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByTradeID retrieves all events for a trade, ordered by occurred_at
// ASC, id ASC.
func (s *EventStore) GetByTradeID(ctx context.Context, tradeID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE trade_id = $1
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("get events by trade id: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetBySymbolAndType retrieves all events of one type for a symbol,
// ordered by occurred_at ASC, id ASC.
func (s *EventStore) GetBySymbolAndType(ctx context.Context, symbol string, eventType domain.EventType) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE symbol = $1 AND event_type = $2
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("get events by symbol and type: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// HasEventType reports whether the trade has at least one event of the
// given type.
func (s *EventStore) HasEventType(ctx context.Context, tradeID string, eventType domain.EventType) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM events WHERE trade_id = $1 AND event_type = $2)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, tradeID, string(eventType)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check event type: %w", err)
	}
	return exists, nil
}

// ListTradeIDs returns distinct trade ids for a symbol (all symbols when
// empty), ordered by most recent event DESC.
func (s *EventStore) ListTradeIDs(ctx context.Context, symbol string) ([]string, error) {
	query := `
		SELECT trade_id
		FROM events
		WHERE $1 = '' OR symbol = $1
		GROUP BY trade_id
		ORDER BY MAX(occurred_at) DESC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("list trade ids: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// ListSymbols returns distinct symbols seen across all events, ordered
// ascending.
func (s *EventStore) ListSymbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT symbol FROM events WHERE symbol <> '' ORDER BY symbol ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// scanEvents scans multiple rows into a slice of Event.
func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var e domain.Event
		var eventType, direction string

		err := rows.Scan(
			&e.ID,
			&e.TradeID,
			&eventType,
			&e.OccurredAt,
			&e.ReceivedAt,
			&e.Symbol,
			&direction,
			&e.Session,
			&e.EntryPrice,
			&e.StopLoss,
			&e.CurrentPrice,
			&e.BeMfe,
			&e.NoBeMfe,
			&e.MaeGlobalR,
			&e.ConfidenceScore,
			&e.DataSource,
			&e.TriggeredBy,
			&e.BarOpenTs,
			&e.BarCloseTs,
			&e.ConfirmationBarCloseTs,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.EventType = domain.EventType(eventType)
		e.Direction = domain.Direction(direction)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// scanStrings scans a single text column.
func scanStrings(rows pgx.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan string row: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate string rows: %w", err)
	}
	return values, nil
}
