package memory

import (
	"context"
	"errors"
	"testing"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

func testBar(ts int64) *domain.Bar {
	return &domain.Bar{Symbol: "EURUSD", Ts: ts, Open: 1.1, High: 1.11, Low: 1.09, Close: 1.1, Volume: 500}
}

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{testBar(60000), testBar(120000), testBar(180000)}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTs(ctx, "EURUSD", 120000)
	if err != nil {
		t.Fatalf("GetByTs failed: %v", err)
	}
	if got.Ts != 120000 {
		t.Errorf("Ts: got %d, want 120000", got.Ts)
	}

	_, err = store.GetByTs(ctx, "EURUSD", 240000)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBarStore_InsertBulkDuplicateFailsWhole(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.Bar{testBar(60000)}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Bar{testBar(120000), testBar(60000)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// All-or-nothing: the non-duplicate row must not have landed.
	if _, err := store.GetByTs(ctx, "EURUSD", 120000); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("partial insert detected: %v", err)
	}
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{testBar(180000), testBar(60000), testBar(120000), testBar(300000)}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "EURUSD", 60000, 180000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Ts >= got[i].Ts {
			t.Error("bars not ordered by ts ASC")
		}
	}
}

func TestBarStore_Count(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.Bar{testBar(60000), testBar(120000)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	n, err := store.Count(ctx, "EURUSD", 0, 120000)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}
