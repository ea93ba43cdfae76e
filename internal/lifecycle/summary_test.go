package lifecycle

import (
	"context"
	"testing"
	"time"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage/memory"
)

func seedTrade(t *testing.T, store *Store, tradeID string, occurredAt int64, types ...domain.EventType) {
	t.Helper()
	ctx := context.Background()
	for i, et := range types {
		e := &domain.Event{
			TradeID:    tradeID,
			EventType:  et,
			OccurredAt: occurredAt + int64(i)*60000,
			Symbol:     "EURUSD",
			Direction:  domain.DirectionBullish,
		}
		if _, err := store.Append(ctx, e); err != nil {
			t.Fatalf("seed %s/%s failed: %v", tradeID, et, err)
		}
	}
}

func TestSummary_StatusFilterAndPagination(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	seedTrade(t, store, "t1", base, domain.EventSignalCreated)
	seedTrade(t, store, "t2", base+3600000, domain.EventSignalCreated, domain.EventEntry)
	seedTrade(t, store, "t3", base+7200000, domain.EventSignalCreated, domain.EventEntry, domain.EventExitStopLoss)
	seedTrade(t, store, "t4", base+10800000, domain.EventSignalCreated, domain.EventCancelled)

	page, err := store.Summary(ctx, nil, SummaryQuery{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if page.Total != 4 {
		t.Errorf("Total: got %d, want 4", page.Total)
	}
	// Ordered by most recent event DESC.
	if page.Rows[0].Trade.TradeID != "t4" {
		t.Errorf("first row: got %s, want t4", page.Rows[0].Trade.TradeID)
	}

	active, err := store.Summary(ctx, nil, SummaryQuery{Symbol: "EURUSD", StatusFilter: domain.StatusActive})
	if err != nil {
		t.Fatalf("filtered Summary failed: %v", err)
	}
	if active.Total != 1 || active.Rows[0].Trade.TradeID != "t2" {
		t.Errorf("active filter: got %d rows, first %v", active.Total, active.Rows)
	}

	paged, err := store.Summary(ctx, nil, SummaryQuery{Symbol: "EURUSD", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("paged Summary failed: %v", err)
	}
	if len(paged.Rows) != 2 || paged.Total != 4 {
		t.Errorf("pagination: got %d rows, total %d", len(paged.Rows), paged.Total)
	}
}

func TestSummary_MetricsJoinPrefersBackfill(t *testing.T) {
	store := newTestStore()
	excursions := memory.NewExcursionStore()
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	// Trade with streamed metrics only.
	seedTrade(t, store, "stream-only", base, domain.EventSignalCreated, domain.EventEntry)
	update := &domain.Event{
		TradeID:    "stream-only",
		EventType:  domain.EventMFEUpdate,
		OccurredAt: base + 120000,
		Symbol:     "EURUSD",
		NoBeMfe:    fptr(0.8),
		BeMfe:      fptr(0.7),
	}
	if _, err := store.Append(ctx, update); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Trade with a computed result.
	seedTrade(t, store, "backfilled", base+3600000,
		domain.EventSignalCreated, domain.EventEntry, domain.EventExitStopLoss)
	err := excursions.Upsert(ctx, &domain.ExcursionResult{
		TradeID:    "backfilled",
		Symbol:     "EURUSD",
		NoBeMfeR:   2.1,
		BeMfeR:     1.9,
		MaeGlobalR: -0.4,
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	page, err := store.Summary(ctx, excursions, SummaryQuery{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	byID := make(map[string]*SummaryRow)
	for _, row := range page.Rows {
		byID[row.Trade.TradeID] = row
	}

	bf := byID["backfilled"]
	if bf.MetricsSource != domain.MetricsSourceBackfill {
		t.Errorf("backfilled source: got %q, want %q", bf.MetricsSource, domain.MetricsSourceBackfill)
	}
	if bf.NoBeMfeR == nil || *bf.NoBeMfeR != 2.1 {
		t.Errorf("backfilled NoBeMfeR: got %v, want 2.1", bf.NoBeMfeR)
	}

	so := byID["stream-only"]
	if so.MetricsSource != domain.MetricsSourceLiveStream {
		t.Errorf("stream-only source: got %q, want %q", so.MetricsSource, domain.MetricsSourceLiveStream)
	}
	if so.NoBeMfeR == nil || *so.NoBeMfeR != 0.8 {
		t.Errorf("stream-only NoBeMfeR: got %v, want 0.8", so.NoBeMfeR)
	}
}
