package corpus

import (
	"context"
	"errors"
	"testing"

	"trade-signal-lab/internal/domain"
)

func TestBuildRun_CompletesWhenGatesPass(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()
	env.seedBars(t, windowStart, 5)
	env.seedBias(t, domain.Timeframe1m, windowStart, domain.DirectionBullish)

	result, err := env.service.BuildRun(ctx, "EURUSD", windowStart, windowStart+240000)
	if err != nil {
		t.Fatalf("BuildRun failed: %v", err)
	}

	if result.Run.Status != domain.RunComplete {
		t.Errorf("status: got %s, want COMPLETE", result.Run.Status)
	}
	if result.Run.RowCount != 5 {
		t.Errorf("RowCount: got %d, want 5", result.Run.RowCount)
	}
	if result.Run.Fingerprint == "" {
		t.Error("fingerprint not set on complete run")
	}
	if len(result.Gates) != 3 {
		t.Fatalf("gates evaluated: got %d, want 3", len(result.Gates))
	}
	for _, gate := range result.Gates {
		if !gate.Passed {
			t.Errorf("gate %s failed: %s", gate.Gate, gate.Detail)
		}
	}

	// Row count identity: stored snapshot rows match the run's count.
	rows, err := env.service.RunRows(ctx, result.Run.RunID)
	if err != nil {
		t.Fatalf("RunRows failed: %v", err)
	}
	if len(rows) != result.Run.RowCount {
		t.Errorf("stored rows: got %d, want %d", len(rows), result.Run.RowCount)
	}
}

func TestBuildRun_FailingGateKeepsPending(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()

	// One bar missing in the middle fails the coverage gate.
	for _, i := range []int64{0, 1, 3, 4} {
		err := env.bars.InsertBulk(ctx, []*domain.Bar{{
			Symbol: "EURUSD", Ts: windowStart + i*60000,
			Open: 1.1, High: 1.11, Low: 1.09, Close: 1.1, Volume: 100,
		}})
		if err != nil {
			t.Fatalf("seed bar failed: %v", err)
		}
	}

	result, err := env.service.BuildRun(ctx, "EURUSD", windowStart, windowStart+240000)
	if !errors.Is(err, domain.ErrGateFailure) {
		t.Fatalf("expected ErrGateFailure, got %v", err)
	}

	stored, err := env.corpus.GetRun(ctx, result.Run.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if stored.Status != domain.RunPending {
		t.Errorf("status: got %s, want PENDING", stored.Status)
	}

	// PENDING runs are never exposed to readers.
	if _, err := env.service.RunRows(ctx, result.Run.RunID); !errors.Is(err, domain.ErrGateFailure) {
		t.Errorf("expected ErrGateFailure reading pending run, got %v", err)
	}
}

func TestLockRun_FreezesBaseline(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()
	env.seedBars(t, windowStart, 3)

	result, err := env.service.BuildRun(ctx, "EURUSD", windowStart, windowStart+120000)
	if err != nil {
		t.Fatalf("BuildRun failed: %v", err)
	}

	if err := env.service.LockRun(ctx, result.Run.RunID); err != nil {
		t.Fatalf("LockRun failed: %v", err)
	}

	stored, _ := env.corpus.GetRun(ctx, result.Run.RunID)
	if stored.Status != domain.RunLocked {
		t.Errorf("status: got %s, want LOCKED", stored.Status)
	}

	// Locked runs reject further writes.
	err = env.corpus.InsertSnapshotRows(ctx, result.Run.RunID, []*domain.SnapshotRow{{Symbol: "EURUSD", Ts: windowStart}})
	if !errors.Is(err, domain.ErrRunLocked) {
		t.Errorf("expected ErrRunLocked, got %v", err)
	}

	// Locking twice is rejected.
	if err := env.service.LockRun(ctx, result.Run.RunID); !errors.Is(err, domain.ErrRunLocked) {
		t.Errorf("expected ErrRunLocked on double lock, got %v", err)
	}

	// Locked runs stay readable.
	rows, err := env.service.RunRows(ctx, result.Run.RunID)
	if err != nil {
		t.Fatalf("RunRows on locked run failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows: got %d, want 3", len(rows))
	}
}

func TestLockRun_RequiresComplete(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()

	run := &domain.CorpusRun{RunID: "pending-run", Symbol: "EURUSD", Status: domain.RunPending}
	if err := env.corpus.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	if err := env.service.LockRun(ctx, "pending-run"); err == nil {
		t.Error("expected error locking a PENDING run")
	}
}

func TestCompareRuns_IdenticalWindows(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()
	env.seedBars(t, windowStart, 4)

	a, err := env.service.BuildRun(ctx, "EURUSD", windowStart, windowStart+180000)
	if err != nil {
		t.Fatalf("build a failed: %v", err)
	}
	b, err := env.service.BuildRun(ctx, "EURUSD", windowStart, windowStart+180000)
	if err != nil {
		t.Fatalf("build b failed: %v", err)
	}

	cmp, err := env.service.CompareRuns(ctx, a.Run.RunID, b.Run.RunID, 20)
	if err != nil {
		t.Fatalf("CompareRuns failed: %v", err)
	}
	if !cmp.Identical {
		t.Errorf("identical windows diverged: %+v", cmp)
	}
	if a.Run.Fingerprint != b.Run.Fingerprint {
		t.Errorf("fingerprints diverged: %s vs %s", a.Run.Fingerprint, b.Run.Fingerprint)
	}
}

func TestCompareRuns_ReportsDivergence(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()
	env.seedBars(t, windowStart, 4)

	a, err := env.service.BuildRun(ctx, "EURUSD", windowStart, windowStart+180000)
	if err != nil {
		t.Fatalf("build a failed: %v", err)
	}

	// A bias signal lands between the builds; the second run's rows
	// carry it and diverge.
	env.seedBias(t, domain.Timeframe1m, windowStart+60000, domain.DirectionBearish)

	b, err := env.service.BuildRun(ctx, "EURUSD", windowStart, windowStart+180000)
	if err != nil {
		t.Fatalf("build b failed: %v", err)
	}

	cmp, err := env.service.CompareRuns(ctx, a.Run.RunID, b.Run.RunID, 20)
	if err != nil {
		t.Fatalf("CompareRuns failed: %v", err)
	}
	if cmp.Identical {
		t.Fatal("runs reported identical despite bias drift")
	}
	if cmp.TotalDiverge == 0 || len(cmp.Mismatches) == 0 {
		t.Fatalf("divergence not reported: %+v", cmp)
	}
	m := cmp.Mismatches[0]
	if m.HashA == m.HashB {
		t.Errorf("mismatch carries equal hashes: %+v", m)
	}
}
