package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
	pgstore "trade-signal-lab/internal/storage/postgres"
)

func testEvent(tradeID string, eventType domain.EventType, occurredAt int64) *domain.Event {
	return &domain.Event{
		TradeID:         tradeID,
		EventType:       eventType,
		OccurredAt:      occurredAt,
		ReceivedAt:      occurredAt + 40,
		Symbol:          "EURUSD",
		Direction:       domain.DirectionBullish,
		Session:         "London",
		ConfidenceScore: 1.0,
		DataSource:      domain.DataSourceWebhook,
		BarOpenTs:       occurredAt - occurredAt%60000,
		BarCloseTs:      occurredAt - occurredAt%60000 + 60000,
	}
}

func TestEventStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewEventStore(pool)
	ctx := context.Background()

	e := testEvent("t1", domain.EventEntry, 1717243237512)
	e.EntryPrice = ptr(1.0852)
	e.StopLoss = ptr(1.0830)

	require.NoError(t, store.Insert(ctx, e))
	assert.NotZero(t, e.ID, "ID should be assigned by storage")
	assert.False(t, e.CreatedAt.IsZero(), "CreatedAt should be assigned by storage")

	events, err := store.GetByTradeID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, "t1", got.TradeID)
	assert.Equal(t, domain.EventEntry, got.EventType)
	assert.Equal(t, int64(1717243237512), got.OccurredAt)
	assert.Equal(t, domain.DirectionBullish, got.Direction)
	require.NotNil(t, got.EntryPrice)
	assert.Equal(t, 1.0852, *got.EntryPrice)
	require.NotNil(t, got.StopLoss)
	assert.Equal(t, 1.0830, *got.StopLoss)
	assert.Equal(t, int64(1717243200000), got.BarOpenTs)
}

func TestEventStore_DedupKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewEventStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testEvent("t1", domain.EventSignalCreated, 1717243237512)))

	// Same second with millisecond jitter collides.
	err := store.Insert(ctx, testEvent("t1", domain.EventSignalCreated, 1717243237900))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Next second is a distinct event.
	assert.NoError(t, store.Insert(ctx, testEvent("t1", domain.EventSignalCreated, 1717243238100)))

	// Different type in the same second is distinct.
	assert.NoError(t, store.Insert(ctx, testEvent("t1", domain.EventEntry, 1717243237600)))

	events, err := store.GetByTradeID(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestEventStore_GetBySymbolAndType(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewEventStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testEvent("t1", domain.EventSignalCreated, 1717243260000)))
	require.NoError(t, store.Insert(ctx, testEvent("t2", domain.EventSignalCreated, 1717243200000)))
	gbp := testEvent("t3", domain.EventSignalCreated, 1717243230000)
	gbp.Symbol = "GBPUSD"
	require.NoError(t, store.Insert(ctx, gbp))

	signals, err := store.GetBySymbolAndType(ctx, "EURUSD", domain.EventSignalCreated)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "t2", signals[0].TradeID, "ordered by occurred_at ASC")
	assert.Equal(t, "t1", signals[1].TradeID)
}

func TestEventStore_HasEventType(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewEventStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testEvent("t1", domain.EventEntry, 1717243200000)))

	has, err := store.HasEventType(ctx, "t1", domain.EventEntry)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasEventType(ctx, "t1", domain.EventCancelled)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestEventStore_ListTradeIDsAndSymbols(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewEventStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testEvent("older", domain.EventSignalCreated, 1717243200000)))
	require.NoError(t, store.Insert(ctx, testEvent("newer", domain.EventSignalCreated, 1717243260000)))
	gbp := testEvent("other", domain.EventSignalCreated, 1717243320000)
	gbp.Symbol = "GBPUSD"
	require.NoError(t, store.Insert(ctx, gbp))

	ids, err := store.ListTradeIDs(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids, "most recent event first")

	all, err := store.ListTradeIDs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	symbols, err := store.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, symbols)
}

func TestEventStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewEventStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.Event{EventType: domain.EventEntry}), storage.ErrInvalidInput)
}
