package corpus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage/memory"
)

type serviceEnv struct {
	bars    *memory.BarStore
	bias    *memory.BiasStore
	corpus  *memory.CorpusStore
	service *Service
}

func newServiceEnv() *serviceEnv {
	env := &serviceEnv{
		bars:   memory.NewBarStore(),
		bias:   memory.NewBiasStore(),
		corpus: memory.NewCorpusStore(),
	}
	env.service = NewService(ServiceOptions{
		BarStore:     env.bars,
		BiasStore:    env.bias,
		CorpusStore:  env.corpus,
		Interval:     time.Minute,
		LogicVersion: "v1",
		Logger:       zerolog.Nop(),
	})
	return env
}

// seedBars inserts count minute bars for EURUSD starting at start.
func (env *serviceEnv) seedBars(t *testing.T, start int64, count int) {
	t.Helper()
	bars := make([]*domain.Bar, 0, count)
	for i := 0; i < count; i++ {
		ts := start + int64(i)*60000
		bars = append(bars, &domain.Bar{
			Symbol: "EURUSD", Ts: ts,
			Open: 1.1, High: 1.1 + float64(i)*0.001, Low: 1.09, Close: 1.095, Volume: 1000,
		})
	}
	if err := env.bars.InsertBulk(context.Background(), bars); err != nil {
		t.Fatalf("seed bars failed: %v", err)
	}
}

func (env *serviceEnv) seedBias(t *testing.T, timeframe string, ts int64, bias domain.Direction) {
	t.Helper()
	err := env.bias.Insert(context.Background(), &domain.BiasRow{
		Symbol: "EURUSD", Timeframe: timeframe, Ts: ts, Bias: bias, TradeID: "sig",
	})
	if err != nil {
		t.Fatalf("seed bias failed: %v", err)
	}
}

const windowStart = int64(1717243200000) // minute-aligned

func TestPointInTime_BarAndBiasStack(t *testing.T) {
	env := newServiceEnv()
	ctx := context.Background()
	env.seedBars(t, windowStart, 3)
	env.seedBias(t, domain.Timeframe1m, windowStart, domain.DirectionBullish)
	env.seedBias(t, domain.Timeframe1h, windowStart-3600000, domain.DirectionBearish)

	// Instant sits inside the second bar.
	result, err := env.service.PointInTime(ctx, "EURUSD", windowStart+90000, IncludeAll)
	if err != nil {
		t.Fatalf("PointInTime failed: %v", err)
	}
	if result.Bar == nil || result.Bar.Ts != windowStart+60000 {
		t.Errorf("bar: got %+v, want ts %d", result.Bar, windowStart+60000)
	}
	// The bias stack reads latest-at-or-before the instant.
	if result.Bias[domain.Timeframe1m] != domain.DirectionBullish {
		t.Errorf("1m bias: got %q", result.Bias[domain.Timeframe1m])
	}
	if result.Bias[domain.Timeframe1h] != domain.DirectionBearish {
		t.Errorf("1h bias: got %q", result.Bias[domain.Timeframe1h])
	}
	if _, ok := result.Bias[domain.Timeframe1d]; ok {
		t.Error("1d bias present without any preceding signal")
	}
}

func TestPointInTime_MissingBarIsGap(t *testing.T) {
	env := newServiceEnv()

	_, err := env.service.PointInTime(context.Background(), "EURUSD", windowStart, IncludeAll)
	var gap *domain.UpstreamDataGapError
	if !errors.As(err, &gap) {
		t.Fatalf("expected UpstreamDataGapError, got %v", err)
	}
	if gap.Symbol != "EURUSD" || gap.Missing != 1 {
		t.Errorf("gap: %+v", gap)
	}
}

func TestRange_RowsHashedAndCounted(t *testing.T) {
	env := newServiceEnv()
	env.seedBars(t, windowStart, 5)

	result, err := env.service.Range(context.Background(), "EURUSD", windowStart, windowStart+240000, IncludeAll)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if result.RowCount != 5 || len(result.Rows) != 5 {
		t.Fatalf("RowCount: got %d (%d rows), want 5", result.RowCount, len(result.Rows))
	}
	for i, row := range result.Rows {
		if row.RowHash == "" {
			t.Errorf("row %d missing RowHash", i)
		}
		if row.Ts != windowStart+int64(i)*60000 {
			t.Errorf("row %d ts: got %d", i, row.Ts)
		}
	}
}

func TestRange_EndBeforeStart(t *testing.T) {
	env := newServiceEnv()
	_, err := env.service.Range(context.Background(), "EURUSD", windowStart+60000, windowStart, IncludeAll)
	if err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestRange_TrianglesFromSignals(t *testing.T) {
	env := newServiceEnv()
	env.seedBars(t, windowStart, 3)
	env.seedBias(t, domain.Timeframe1m, windowStart+60000, domain.DirectionBearish)

	result, err := env.service.Range(context.Background(), "EURUSD", windowStart, windowStart+120000, IncludeAll)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(result.Triangles) != 1 {
		t.Fatalf("Triangles: got %d, want 1", len(result.Triangles))
	}
	tri := result.Triangles[0]
	if tri.Ts != windowStart+60000 || tri.Direction != domain.DirectionBearish || tri.TradeID != "sig" {
		t.Errorf("triangle: %+v", tri)
	}
}
