package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/inference"
	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/storage/memory"
)

func TestInferenceJob_RunSweep(t *testing.T) {
	events := memory.NewEventStore()
	lc := lifecycle.NewStore(events, zerolog.Nop())
	engine := inference.NewEngine(events, lc, zerolog.Nop())

	ctx := context.Background()
	signals := []*domain.Event{
		{TradeID: "sig-a", EventType: domain.EventSignalCreated, OccurredAt: 1717237200000,
			Symbol: "EURUSD", Direction: domain.DirectionBullish, BarOpenTs: 1717237200000},
		{TradeID: "sig-b", EventType: domain.EventSignalCreated, OccurredAt: 1717237800000,
			Symbol: "EURUSD", Direction: domain.DirectionBearish, BarOpenTs: 1717237800000},
	}
	for _, e := range signals {
		if err := events.Insert(ctx, e); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	job := NewInferenceJob(engine, nil, 0, zerolog.Nop())
	if job.Name() != "inference" {
		t.Errorf("name: %s", job.Name())
	}
	if err := job.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The direction flip cancels the unconfirmed first signal.
	state, err := lc.LatestState(ctx, "sig-a")
	if err != nil {
		t.Fatalf("LatestState failed: %v", err)
	}
	if state.Status != domain.StatusCancelled {
		t.Errorf("status: got %s, want CANCELLED", state.Status)
	}

	// A second run is a no-op.
	if err := job.Run(); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := NewInferenceJob(nil, nil, 0, zerolog.Nop())

	if err := s.AddJob("not a schedule", job); err == nil {
		t.Error("expected an error for a malformed schedule")
	}
	if err := s.AddJob("@every 30s", job); err != nil {
		t.Errorf("AddJob failed: %v", err)
	}
}
