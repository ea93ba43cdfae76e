// Package excursion computes risk-normalized forward excursion metrics
// (MFE/MAE) for exited trades by replaying historical bars.
package excursion

import (
	"fmt"
	"math"

	"trade-signal-lab/internal/domain"
)

// IneligibleError reports why a trade cannot be backfilled. Exactly one
// reason applies per skip.
type IneligibleError struct {
	TradeID string
	Reason  domain.SkipReason
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("trade %s ineligible for backfill: %s", e.TradeID, e.Reason)
}

// Eligibility checks the trade-level preconditions for replay, in the
// fixed order that makes each skip attributable to a single reason.
// The bar-level check (no_bars_found) happens in Compute once bars are
// loaded.
func Eligibility(t *domain.Trade) *IneligibleError {
	switch {
	case t.EntryBarOpenTs == 0:
		return &IneligibleError{TradeID: t.TradeID, Reason: domain.SkipMissingEntryTs}
	case t.ExitBarOpenTs == 0:
		return &IneligibleError{TradeID: t.TradeID, Reason: domain.SkipMissingExitTs}
	case t.EntryPrice == nil:
		return &IneligibleError{TradeID: t.TradeID, Reason: domain.SkipMissingEntryPrice}
	case t.StopLoss == nil:
		return &IneligibleError{TradeID: t.TradeID, Reason: domain.SkipMissingStopLoss}
	case !t.Direction.Valid():
		return &IneligibleError{TradeID: t.TradeID, Reason: domain.SkipInvalidDirection}
	case math.Abs(*t.EntryPrice-*t.StopLoss) <= 0:
		return &IneligibleError{TradeID: t.TradeID, Reason: domain.SkipInvalidRiskDistance}
	}
	return nil
}

// Compute replays bars between entry and exit and returns the excursion
// result. It is a pure function of (trade, bars): identical inputs
// yield identical output, which is what makes recomputation an
// idempotent upsert. ComputedAt and Source are left for the caller.
//
// Bars must be ordered by ts ascending. The two excursion tracks share
// one forward pass but are independent state machines: the no-breakeven
// track freezes when the original stop is touched, the breakeven track
// freezes when its policy would have exited. Neither value is ever
// capped to the other.
func Compute(t *domain.Trade, bars []*domain.Bar) (*domain.ExcursionResult, error) {
	if err := Eligibility(t); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, &IneligibleError{TradeID: t.TradeID, Reason: domain.SkipNoBarsFound}
	}

	entry := *t.EntryPrice
	stop := *t.StopLoss
	risk := math.Abs(entry - stop)
	bullish := t.Direction == domain.DirectionBullish

	res := &domain.ExcursionResult{
		TradeID:       t.TradeID,
		Symbol:        t.Symbol,
		Direction:     t.Direction,
		RiskDistance:  risk,
		HighestHigh:   entry,
		LowestLow:     entry,
		WindowStartTs: t.EntryBarOpenTs,
		WindowEndTs:   t.ExitBarOpenTs,
		BarsReplayed:  len(bars),
	}

	var (
		stopped   bool    // original stop touched; no-BE track frozen
		beExited  bool    // breakeven policy exited; BE track frozen
		beExtreme = entry // favorable extremum of the BE track
		mae       float64
	)

	for _, bar := range bars {
		// Exit tests use state from prior bars only; an intra-bar
		// sequence of touch-then-extend is unknowable from OHLC.
		if !stopped {
			if touchedStop(bullish, bar, stop) {
				stopped = true
			}
		}
		if !beExited {
			if res.BeTriggered {
				// Stop sits at entry once +1R was reached.
				if touchedStop(bullish, bar, entry) {
					beExited = true
				}
			} else if stopped {
				// Original stop hit before the trigger; both
				// tracks freeze on the same bar.
				beExited = true
			}
		}

		if !stopped {
			if bar.High > res.HighestHigh {
				res.HighestHigh = bar.High
			}
			if bar.Low < res.LowestLow {
				res.LowestLow = bar.Low
			}
			if bullish {
				mae = math.Min(mae, (res.LowestLow-entry)/risk)
			} else {
				mae = math.Min(mae, (entry-res.HighestHigh)/risk)
			}
		}

		if !beExited {
			if bullish && bar.High > beExtreme {
				beExtreme = bar.High
			}
			if !bullish && bar.Low < beExtreme {
				beExtreme = bar.Low
			}
			if !res.BeTriggered && reachedOneR(bullish, beExtreme, entry, risk) {
				res.BeTriggered = true
				res.BeTriggerTs = bar.Ts
			}
		}
	}

	if bullish {
		res.NoBeMfeR = (res.HighestHigh - entry) / risk
		res.BeMfeR = (beExtreme - entry) / risk
	} else {
		res.NoBeMfeR = (entry - res.LowestLow) / risk
		res.BeMfeR = (entry - beExtreme) / risk
	}
	res.MaeGlobalR = mae

	return res, nil
}

// touchedStop reports whether the bar reached the stop level against
// the trade's direction.
func touchedStop(bullish bool, bar *domain.Bar, stop float64) bool {
	if bullish {
		return bar.Low <= stop
	}
	return bar.High >= stop
}

// reachedOneR reports whether the favorable extremum covers one full
// risk distance from entry.
func reachedOneR(bullish bool, extreme, entry, risk float64) bool {
	if bullish {
		return extreme >= entry+risk
	}
	return extreme <= entry-risk
}
