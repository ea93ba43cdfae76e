package corpus

import (
	"context"
	"errors"
	"testing"

	"trade-signal-lab/internal/domain"
)

func TestDeterminismGate_Passes(t *testing.T) {
	env := newServiceEnv()
	env.seedBars(t, windowStart, 5)
	env.seedBias(t, domain.Timeframe1m, windowStart, domain.DirectionBullish)

	status, err := env.service.DeterminismGate(context.Background(), "EURUSD", windowStart, windowStart+240000)
	if err != nil {
		t.Fatalf("DeterminismGate failed: %v", err)
	}
	if !status.Passed {
		t.Errorf("gate failed: %s", status.Detail)
	}
	if status.Expected != 5 || status.Actual != 5 {
		t.Errorf("row counts: expected %d, actual %d", status.Expected, status.Actual)
	}
	// On a pass, Detail carries the fingerprint.
	if len(status.Detail) != 64 {
		t.Errorf("detail should carry the fingerprint, got %q", status.Detail)
	}
}

func TestAlignmentGate_MisalignedBias(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()
	env.seedBars(t, windowStart, 3)

	// Bias row between bar boundaries.
	env.seedBias(t, domain.Timeframe1m, windowStart+30000, domain.DirectionBullish)

	status, err := env.service.AlignmentGate(ctx, "EURUSD", windowStart, windowStart+120000)
	if err != nil {
		t.Fatalf("AlignmentGate failed: %v", err)
	}
	if status.Passed {
		t.Error("gate passed despite misaligned bias row")
	}
	if status.Actual != 1 {
		t.Errorf("misaligned count: got %d, want 1", status.Actual)
	}
}

func TestAlignmentGate_Passes(t *testing.T) {
	env := newServiceEnv()
	env.seedBars(t, windowStart, 3)
	env.seedBias(t, domain.Timeframe1m, windowStart+60000, domain.DirectionBullish)

	status, err := env.service.AlignmentGate(context.Background(), "EURUSD", windowStart, windowStart+120000)
	if err != nil {
		t.Fatalf("AlignmentGate failed: %v", err)
	}
	if !status.Passed {
		t.Errorf("gate failed: %s", status.Detail)
	}
}

func TestCoverageGate_FullWindow(t *testing.T) {
	env := newServiceEnv()
	env.seedBars(t, windowStart, 5)

	result, err := env.service.CoverageGate(context.Background(), "EURUSD", windowStart, windowStart+240000)
	if err != nil {
		t.Fatalf("CoverageGate failed: %v", err)
	}
	if !result.Passed {
		t.Errorf("gate failed: %s", result.Detail)
	}
	if result.Expected != 5 || result.Actual != 5 {
		t.Errorf("counts: expected %d, actual %d", result.Expected, result.Actual)
	}
	if result.MissingAsError("EURUSD") != nil {
		t.Error("passing gate produced a gap error")
	}
}

func TestCoverageGate_ReportsContiguousGaps(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()

	// Bars at minutes 0, 3 and 4; minutes 1 and 2 are one contiguous gap.
	for _, i := range []int64{0, 3, 4} {
		err := env.bars.InsertBulk(ctx, []*domain.Bar{{
			Symbol: "EURUSD", Ts: windowStart + i*60000,
			Open: 1.1, High: 1.11, Low: 1.09, Close: 1.1, Volume: 100,
		}})
		if err != nil {
			t.Fatalf("seed bar failed: %v", err)
		}
	}

	result, err := env.service.CoverageGate(ctx, "EURUSD", windowStart, windowStart+240000)
	if err != nil {
		t.Fatalf("CoverageGate failed: %v", err)
	}
	if result.Passed {
		t.Fatal("gate passed despite missing bars")
	}
	if len(result.MissingRanges) != 1 {
		t.Fatalf("MissingRanges: got %d, want 1", len(result.MissingRanges))
	}
	gap := result.MissingRanges[0]
	if gap.StartTs != windowStart+60000 || gap.EndTs != windowStart+120000 || gap.Count != 2 {
		t.Errorf("gap: %+v", gap)
	}

	gapErr := result.MissingAsError("EURUSD")
	var structured *domain.UpstreamDataGapError
	if !errors.As(gapErr, &structured) {
		t.Fatalf("expected UpstreamDataGapError, got %v", gapErr)
	}
	if structured.Missing != 2 {
		t.Errorf("Missing: got %d, want 2", structured.Missing)
	}
}
