// Package reporting renders operator-facing summaries of lifecycle,
// excursion and corpus state as Markdown and CSV.
package reporting

import (
	"time"

	"trade-signal-lab/internal/coverage"
)

// Report is the full operator report.
type Report struct {
	GeneratedAt time.Time
	Symbol      string // empty means all symbols

	Lifecycle LifecycleSummary
	Coverage  *coverage.Report

	// Excursion rows sorted by trade_id, plus distribution stats over
	// the computed results.
	ExcursionRows []ExcursionRow
	Excursions    ExcursionSummary

	CorpusRuns []CorpusRunRow
}

// LifecycleSummary counts trades by derived status.
type LifecycleSummary struct {
	TotalTrades int
	Pending     int
	Active      int
	Exited      int
	Cancelled   int

	// Cancellations split by provenance.
	InferredCancels int
	SourceCancels   int
}

// ExcursionRow is one computed excursion result.
type ExcursionRow struct {
	TradeID      string
	Symbol       string
	Direction    string
	NoBeMfeR     float64
	BeMfeR       float64
	MaeGlobalR   float64
	BeTriggered  bool
	BarsReplayed int
	ComputedAt   time.Time
}

// ExcursionSummary holds distribution statistics over the computed
// results.
type ExcursionSummary struct {
	TotalComputed int
	BeTriggerRate float64

	NoBeMfeMean   float64
	NoBeMfeMedian float64
	NoBeMfeP10    float64
	NoBeMfeP90    float64

	MaeMean   float64
	MaeMedian float64
}

// CorpusRunRow is one corpus run in the report.
type CorpusRunRow struct {
	RunID        string
	Symbol       string
	Status       string
	RowCount     int
	Fingerprint  string
	LogicVersion string
	CreatedAt    time.Time
}
