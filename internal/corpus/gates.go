package corpus

import (
	"context"
	"fmt"

	"trade-signal-lab/internal/contenthash"
	"trade-signal-lab/internal/domain"
)

// Gate names.
const (
	GateDeterminism = "determinism"
	GateAlignment   = "alignment"
	GateCoverage    = "coverage"
)

// CoverageGateResult extends the gate status with the concrete missing
// ranges so callers see a structured gap, not a bare failure.
type CoverageGateResult struct {
	domain.GateStatus
	MissingRanges []MissingRange `json:"missingRanges,omitempty"`
}

// MissingRange is one contiguous run of absent bars.
type MissingRange struct {
	StartTs int64 `json:"startTs"`
	EndTs   int64 `json:"endTs"`
	Count   int   `json:"count"`
}

// DeterminismGate materializes the same window twice and requires
// byte-identical fingerprints and identical row counts. Any drift is a
// hard failure; downstream backtests assume stable historical truth.
func (s *Service) DeterminismGate(ctx context.Context, symbol string, start, end int64) (*domain.GateStatus, error) {
	first, err := s.Range(ctx, symbol, start, end, Include{OHLCV: true, Bias: true})
	if err != nil {
		return nil, err
	}
	second, err := s.Range(ctx, symbol, start, end, Include{OHLCV: true, Bias: true})
	if err != nil {
		return nil, err
	}

	fpA := contenthash.Fingerprint(first.Rows, s.logicVersion)
	fpB := contenthash.Fingerprint(second.Rows, s.logicVersion)

	status := &domain.GateStatus{
		Gate:     GateDeterminism,
		Expected: first.RowCount,
		Actual:   second.RowCount,
	}
	switch {
	case first.RowCount != second.RowCount:
		status.Detail = fmt.Sprintf("row count drift: %d vs %d", first.RowCount, second.RowCount)
	case fpA != fpB:
		status.Detail = fmt.Sprintf("fingerprint drift: %s vs %s", fpA, fpB)
	default:
		status.Passed = true
		status.Detail = fpA
	}
	return status, nil
}

// AlignmentGate checks that every bar timestamp sits exactly on the
// interval boundary and that every bias row timestamp equals a bar
// timestamp. misalignedCount must be 0 for a pass.
func (s *Service) AlignmentGate(ctx context.Context, symbol string, start, end int64) (*domain.GateStatus, error) {
	result, err := s.Range(ctx, symbol, start, end, Include{OHLCV: true})
	if err != nil {
		return nil, err
	}

	intervalMs := s.interval.Milliseconds()
	barTs := make(map[int64]struct{}, len(result.Rows))
	misaligned := 0
	for _, row := range result.Rows {
		if row.Ts%intervalMs != 0 {
			misaligned++
			continue
		}
		barTs[row.Ts] = struct{}{}
	}

	for _, tf := range domain.BiasTimeframes {
		rows, err := s.bias.GetByTimeRange(ctx, symbol, tf, result.StartTs, result.EndTs)
		if err != nil {
			return nil, fmt.Errorf("load bias %s/%s: %w", symbol, tf, err)
		}
		for _, row := range rows {
			if _, ok := barTs[row.Ts]; !ok {
				misaligned++
			}
		}
	}

	status := &domain.GateStatus{
		Gate:     GateAlignment,
		Expected: 0,
		Actual:   misaligned,
		Passed:   misaligned == 0,
	}
	if !status.Passed {
		status.Detail = fmt.Sprintf("%d misaligned timestamp(s)", misaligned)
	}
	return status, nil
}

// CoverageGate checks that no bar is missing in the requested window.
func (s *Service) CoverageGate(ctx context.Context, symbol string, start, end int64) (*CoverageGateResult, error) {
	start = domain.FloorToInterval(start, s.interval)
	end = domain.FloorToInterval(end, s.interval)
	intervalMs := s.interval.Milliseconds()

	bars, err := s.bars.GetByTimeRange(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}

	present := make(map[int64]struct{}, len(bars))
	for _, bar := range bars {
		present[bar.Ts] = struct{}{}
	}

	expected := int((end-start)/intervalMs) + 1
	result := &CoverageGateResult{GateStatus: domain.GateStatus{
		Gate:     GateCoverage,
		Expected: expected,
		Actual:   len(bars),
	}}

	var missing int
	var open *MissingRange
	for ts := start; ts <= end; ts += intervalMs {
		if _, ok := present[ts]; ok {
			open = nil
			continue
		}
		missing++
		if open == nil {
			result.MissingRanges = append(result.MissingRanges, MissingRange{StartTs: ts, EndTs: ts, Count: 1})
			open = &result.MissingRanges[len(result.MissingRanges)-1]
			continue
		}
		open.EndTs = ts
		open.Count++
	}

	result.Passed = missing == 0
	if !result.Passed {
		result.Detail = fmt.Sprintf("%d missing bar(s)", missing)
	}
	return result, nil
}

// MissingAsError converts a failed coverage gate into the structured
// gap error surfaced to callers.
func (r *CoverageGateResult) MissingAsError(symbol string) error {
	if r.Passed || len(r.MissingRanges) == 0 {
		return nil
	}
	first := r.MissingRanges[0]
	missing := 0
	for _, m := range r.MissingRanges {
		missing += m.Count
	}
	return &domain.UpstreamDataGapError{
		Symbol:  symbol,
		StartTs: first.StartTs,
		EndTs:   r.MissingRanges[len(r.MissingRanges)-1].EndTs,
		Missing: missing,
	}
}
