package memory

import (
	"context"
	"errors"
	"testing"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

func testEvent(tradeID string, eventType domain.EventType, occurredAt int64) *domain.Event {
	return &domain.Event{
		TradeID:    tradeID,
		EventType:  eventType,
		OccurredAt: occurredAt,
		Symbol:     "EURUSD",
		Direction:  domain.DirectionBullish,
	}
}

func TestEventStore_InsertAndGet(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := testEvent("t1", domain.EventSignalCreated, 1000)
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if e.ID == 0 {
		t.Error("Insert did not assign an id")
	}
	if e.CreatedAt.IsZero() {
		t.Error("Insert did not stamp created_at")
	}

	got, err := store.GetByTradeID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByTradeID failed: %v", err)
	}
	if len(got) != 1 || got[0].EventType != domain.EventSignalCreated {
		t.Errorf("unexpected events: %+v", got)
	}
}

func TestEventStore_DedupKey(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("t1", domain.EventMFEUpdate, 1500)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	// Same second, different millisecond: duplicate.
	err := store.Insert(ctx, testEvent("t1", domain.EventMFEUpdate, 1999))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Next second: distinct.
	if err := store.Insert(ctx, testEvent("t1", domain.EventMFEUpdate, 2000)); err != nil {
		t.Errorf("next-second insert failed: %v", err)
	}

	// Same second, different type: distinct.
	if err := store.Insert(ctx, testEvent("t1", domain.EventBETriggered, 1500)); err != nil {
		t.Errorf("different-type insert failed: %v", err)
	}
}

func TestEventStore_InvalidInput(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.Event{EventType: domain.EventEntry}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty trade id, got %v", err)
	}
	bad := testEvent("t1", "BOGUS", 1000)
	if err := store.Insert(ctx, bad); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown type, got %v", err)
	}
}

func TestEventStore_GetByTradeIDOrdered(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	for _, ts := range []int64{3000, 1000, 2000} {
		if err := store.Insert(ctx, testEvent("t1", domain.EventMFEUpdate, ts)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := store.GetByTradeID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByTradeID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].OccurredAt > got[i].OccurredAt {
			t.Error("events not ordered by occurred_at ASC")
		}
	}
}

func TestEventStore_GetBySymbolAndType(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	inserts := []*domain.Event{
		testEvent("t1", domain.EventSignalCreated, 1000),
		testEvent("t2", domain.EventSignalCreated, 2000),
		testEvent("t3", domain.EventEntry, 3000),
	}
	gbp := testEvent("t4", domain.EventSignalCreated, 4000)
	gbp.Symbol = "GBPUSD"
	inserts = append(inserts, gbp)

	for _, e := range inserts {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := store.GetBySymbolAndType(ctx, "EURUSD", domain.EventSignalCreated)
	if err != nil {
		t.Fatalf("GetBySymbolAndType failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 signals, got %d", len(got))
	}
}

func TestEventStore_HasEventType(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("t1", domain.EventEntry, 1000)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	has, err := store.HasEventType(ctx, "t1", domain.EventEntry)
	if err != nil || !has {
		t.Errorf("expected true, got %v/%v", has, err)
	}
	has, err = store.HasEventType(ctx, "t1", domain.EventCancelled)
	if err != nil || has {
		t.Errorf("expected false, got %v/%v", has, err)
	}
}

func TestEventStore_ListTradeIDsRecencyOrder(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("old", domain.EventSignalCreated, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, testEvent("new", domain.EventSignalCreated, 9000)); err != nil {
		t.Fatal(err)
	}

	ids, err := store.ListTradeIDs(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("ListTradeIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "new" || ids[1] != "old" {
		t.Errorf("ids: %v", ids)
	}

	none, err := store.ListTradeIDs(ctx, "USDJPY")
	if err != nil {
		t.Fatalf("ListTradeIDs failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no ids for unseen symbol, got %v", none)
	}
}

func TestEventStore_ListSymbols(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	gbp := testEvent("t2", domain.EventSignalCreated, 2000)
	gbp.Symbol = "GBPUSD"
	for _, e := range []*domain.Event{testEvent("t1", domain.EventSignalCreated, 1000), gbp} {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	symbols, err := store.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "EURUSD" || symbols[1] != "GBPUSD" {
		t.Errorf("symbols: %v", symbols)
	}
}
