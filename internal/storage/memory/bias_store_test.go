package memory

import (
	"context"
	"errors"
	"testing"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

func testBiasRow(timeframe string, ts int64) *domain.BiasRow {
	return &domain.BiasRow{
		Symbol: "EURUSD", Timeframe: timeframe, Ts: ts,
		Bias: domain.DirectionBullish, TradeID: "sig",
	}
}

func TestBiasStore_InsertAndDuplicate(t *testing.T) {
	store := NewBiasStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testBiasRow(domain.Timeframe1m, 60000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := store.Insert(ctx, testBiasRow(domain.Timeframe1m, 60000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	// Same ts on another timeframe is distinct.
	if err := store.Insert(ctx, testBiasRow(domain.Timeframe5m, 60000)); err != nil {
		t.Errorf("cross-timeframe insert failed: %v", err)
	}
}

func TestBiasStore_LatestAtOrBefore(t *testing.T) {
	store := NewBiasStore()
	ctx := context.Background()

	early := testBiasRow(domain.Timeframe1h, 3600000)
	late := testBiasRow(domain.Timeframe1h, 7200000)
	late.Bias = domain.DirectionBearish
	for _, r := range []*domain.BiasRow{early, late} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := store.LatestAtOrBefore(ctx, "EURUSD", domain.Timeframe1h, 8000000)
	if err != nil {
		t.Fatalf("LatestAtOrBefore failed: %v", err)
	}
	if got.Ts != 7200000 || got.Bias != domain.DirectionBearish {
		t.Errorf("got %+v, want the later row", got)
	}

	// Exactly at a row's ts counts.
	got, err = store.LatestAtOrBefore(ctx, "EURUSD", domain.Timeframe1h, 3600000)
	if err != nil {
		t.Fatalf("LatestAtOrBefore failed: %v", err)
	}
	if got.Ts != 3600000 {
		t.Errorf("got ts %d, want 3600000", got.Ts)
	}

	_, err = store.LatestAtOrBefore(ctx, "EURUSD", domain.Timeframe1h, 1000)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound before first row, got %v", err)
	}
}

func TestBiasStore_GetByTimeRange(t *testing.T) {
	store := NewBiasStore()
	ctx := context.Background()

	for _, ts := range []int64{180000, 60000, 120000} {
		if err := store.Insert(ctx, testBiasRow(domain.Timeframe1m, ts)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := store.GetByTimeRange(ctx, "EURUSD", domain.Timeframe1m, 60000, 120000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Ts != 60000 || got[1].Ts != 120000 {
		t.Errorf("rows not ordered: %v, %v", got[0].Ts, got[1].Ts)
	}
}

func TestBiasStore_InsertBulkPartialDuplicate(t *testing.T) {
	store := NewBiasStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testBiasRow(domain.Timeframe1m, 60000)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.BiasRow{
		testBiasRow(domain.Timeframe1m, 120000),
		testBiasRow(domain.Timeframe1m, 60000),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// All-or-nothing: the non-duplicate row must not have landed.
	got, err := store.GetByTimeRange(ctx, "EURUSD", domain.Timeframe1m, 120000, 120000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 0 {
		t.Error("partial insert detected")
	}
}
