package domain

import "time"

// SkipReason enumerates why a trade was ineligible for excursion
// backfill. Every skip is attributable to exactly one reason.
type SkipReason string

// Backfill skip reasons.
const (
	SkipMissingEntryTs      SkipReason = "missing_entry_ts"
	SkipMissingExitTs       SkipReason = "missing_exit_ts"
	SkipMissingEntryPrice   SkipReason = "missing_entry_price"
	SkipMissingStopLoss     SkipReason = "missing_stop_loss"
	SkipInvalidDirection    SkipReason = "invalid_direction"
	SkipInvalidRiskDistance SkipReason = "invalid_risk_distance"
	SkipNoBarsFound         SkipReason = "no_bars_found"
)

// Metrics sources reported on lifecycle summaries.
const (
	MetricsSourceBackfill   = "backfill"
	MetricsSourceLiveStream = "live_stream"
)

// ExcursionResult holds risk-normalized excursion metrics for one
// EXITED trade. Recomputable at any time from Trade + Bar data; upserts
// are keyed by TradeID. Corresponds to the excursion_results table.
type ExcursionResult struct {
	TradeID      string
	Symbol       string
	Direction    Direction
	RiskDistance float64 // |entryPrice - stopLoss|, always > 0

	NoBeMfeR   float64 // MFE in R, original-stop policy
	BeMfeR     float64 // MFE in R, breakeven-at-+1R policy
	MaeGlobalR float64 // worst adverse excursion in R, <= 0

	BeTriggered bool
	BeTriggerTs int64 // bar-open ts of first +1R touch, ms

	HighestHigh float64
	LowestLow   float64

	WindowStartTs int64 // replay window start (entry bar open), ms
	WindowEndTs   int64 // replay window end (exit bar open), ms
	BarsReplayed  int

	ComputedAt time.Time
	Source     string // backfill | live_stream
}
