package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trade-signal-lab/internal/coverage"
	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	events     storage.EventStore
	excursions storage.ExcursionStore
	corpus     storage.CorpusStore
	monitor    *coverage.Monitor
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(events storage.EventStore, excursions storage.ExcursionStore, corpus storage.CorpusStore, monitor *coverage.Monitor) *Generator {
	return &Generator{
		events:     events,
		excursions: excursions,
		corpus:     corpus,
		monitor:    monitor,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for a symbol (all symbols when
// empty).
func (g *Generator) Generate(ctx context.Context, symbol string) (*Report, error) {
	report := &Report{GeneratedAt: g.now(), Symbol: symbol}

	if err := g.lifecycleSummary(ctx, symbol, report); err != nil {
		return nil, err
	}
	if err := g.excursionSection(ctx, symbol, report); err != nil {
		return nil, err
	}
	if err := g.corpusSection(ctx, symbol, report); err != nil {
		return nil, err
	}

	if g.monitor != nil {
		cov, err := g.monitor.Snapshot(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("coverage snapshot: %w", err)
		}
		report.Coverage = cov
	}

	return report, nil
}

func (g *Generator) lifecycleSummary(ctx context.Context, symbol string, report *Report) error {
	tradeIDs, err := g.events.ListTradeIDs(ctx, symbol)
	if err != nil {
		return fmt.Errorf("list trade ids: %w", err)
	}

	sum := &report.Lifecycle
	sum.TotalTrades = len(tradeIDs)
	for _, id := range tradeIDs {
		events, err := g.events.GetByTradeID(ctx, id)
		if err != nil {
			return fmt.Errorf("load events for %s: %w", id, err)
		}
		trade := domain.ProjectTrade(id, events)
		switch trade.Status {
		case domain.StatusPending:
			sum.Pending++
		case domain.StatusActive:
			sum.Active++
		case domain.StatusExited:
			sum.Exited++
		case domain.StatusCancelled:
			sum.Cancelled++
		}

		for _, e := range events {
			if e.EventType != domain.EventCancelled {
				continue
			}
			if e.DataSource == domain.DataSourceInferred {
				sum.InferredCancels++
			} else {
				sum.SourceCancels++
			}
		}
	}
	return nil
}

func (g *Generator) excursionSection(ctx context.Context, symbol string, report *Report) error {
	results, err := g.excursions.GetBySymbol(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load excursion results: %w", err)
	}

	var noBe, mae []float64
	triggered := 0
	for _, r := range results {
		report.ExcursionRows = append(report.ExcursionRows, ExcursionRow{
			TradeID:      r.TradeID,
			Symbol:       r.Symbol,
			Direction:    string(r.Direction),
			NoBeMfeR:     r.NoBeMfeR,
			BeMfeR:       r.BeMfeR,
			MaeGlobalR:   r.MaeGlobalR,
			BeTriggered:  r.BeTriggered,
			BarsReplayed: r.BarsReplayed,
			ComputedAt:   r.ComputedAt,
		})
		noBe = append(noBe, r.NoBeMfeR)
		mae = append(mae, r.MaeGlobalR)
		if r.BeTriggered {
			triggered++
		}
	}

	sum := &report.Excursions
	sum.TotalComputed = len(results)
	if len(results) > 0 {
		sum.BeTriggerRate = float64(triggered) / float64(len(results))
		sum.NoBeMfeMean = mean(noBe)
		sum.NoBeMfeMedian = percentile(noBe, 0.5)
		sum.NoBeMfeP10 = percentile(noBe, 0.1)
		sum.NoBeMfeP90 = percentile(noBe, 0.9)
		sum.MaeMean = mean(mae)
		sum.MaeMedian = percentile(mae, 0.5)
	}
	return nil
}

func (g *Generator) corpusSection(ctx context.Context, symbol string, report *Report) error {
	runs, err := g.corpus.ListRuns(ctx, symbol)
	if err != nil {
		return fmt.Errorf("list corpus runs: %w", err)
	}
	for _, run := range runs {
		report.CorpusRuns = append(report.CorpusRuns, CorpusRunRow{
			RunID:        run.RunID,
			Symbol:       run.Symbol,
			Status:       string(run.Status),
			RowCount:     run.RowCount,
			Fingerprint:  run.Fingerprint,
			LogicVersion: run.LogicVersion,
			CreatedAt:    run.CreatedAt,
		})
	}
	return nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// percentile returns the p-quantile (0..1) using nearest-rank on a
// sorted copy.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
