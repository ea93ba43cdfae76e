package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trade-signal-lab/internal/contenthash"
	"trade-signal-lab/internal/domain"
)

// BuildResult reports a corpus run build: the run plus its gate
// evaluations.
type BuildResult struct {
	Run   *domain.CorpusRun
	Gates []*domain.GateStatus
}

// BuildRun materializes a new corpus run for a window. The run starts
// PENDING, its snapshot rows are persisted, and the three gates are
// evaluated; only when all pass does the run transition to COMPLETE. A
// failing run stays PENDING and the call returns ErrGateFailure — a
// failing run is never auto-promoted.
func (s *Service) BuildRun(ctx context.Context, symbol string, start, end int64) (*BuildResult, error) {
	run := &domain.CorpusRun{
		RunID:        uuid.NewString(),
		Symbol:       symbol,
		StartTs:      domain.FloorToInterval(start, s.interval),
		EndTs:        domain.FloorToInterval(end, s.interval),
		LogicVersion: s.logicVersion,
		Status:       domain.RunPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.corpus.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	rangeResult, err := s.Range(ctx, symbol, run.StartTs, run.EndTs, Include{OHLCV: true, Bias: true})
	if err != nil {
		return nil, fmt.Errorf("materialize rows: %w", err)
	}
	for _, row := range rangeResult.Rows {
		row.RunID = run.RunID
	}
	if err := s.corpus.InsertSnapshotRows(ctx, run.RunID, rangeResult.Rows); err != nil {
		return nil, fmt.Errorf("persist snapshot rows: %w", err)
	}

	result := &BuildResult{Run: run}

	determinism, err := s.DeterminismGate(ctx, symbol, run.StartTs, run.EndTs)
	if err != nil {
		return nil, err
	}
	alignment, err := s.AlignmentGate(ctx, symbol, run.StartTs, run.EndTs)
	if err != nil {
		return nil, err
	}
	cov, err := s.CoverageGate(ctx, symbol, run.StartTs, run.EndTs)
	if err != nil {
		return nil, err
	}
	result.Gates = []*domain.GateStatus{determinism, alignment, &cov.GateStatus}

	for _, gate := range result.Gates {
		if !gate.Passed {
			s.log.Warn().
				Str("run_id", run.RunID).
				Str("gate", gate.Gate).
				Str("detail", gate.Detail).
				Msg("corpus run blocked by failing gate")
			return result, fmt.Errorf("%w: %s gate: %s", domain.ErrGateFailure, gate.Gate, gate.Detail)
		}
	}

	fingerprint := contenthash.Fingerprint(rangeResult.Rows, s.logicVersion)
	if err := s.corpus.MarkComplete(ctx, run.RunID, fingerprint, rangeResult.RowCount); err != nil {
		return nil, fmt.Errorf("mark complete: %w", err)
	}

	run.Status = domain.RunComplete
	run.Fingerprint = fingerprint
	run.RowCount = rangeResult.RowCount

	s.log.Info().
		Str("run_id", run.RunID).
		Str("symbol", symbol).
		Int("rows", run.RowCount).
		Str("fingerprint", fingerprint).
		Msg("corpus run complete")

	return result, nil
}

// LockRun freezes a COMPLETE run as a reproducibility baseline. This is
// an operator action, not automatic.
func (s *Service) LockRun(ctx context.Context, runID string) error {
	if err := s.corpus.MarkLocked(ctx, runID); err != nil {
		return fmt.Errorf("lock run %s: %w", runID, err)
	}
	s.log.Info().Str("run_id", runID).Msg("corpus run locked")
	return nil
}

// RunRows returns the snapshot rows of a COMPLETE or LOCKED run.
// PENDING runs are never exposed to readers.
func (s *Service) RunRows(ctx context.Context, runID string) ([]*domain.SnapshotRow, error) {
	run, err := s.corpus.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if run.Status == domain.RunPending {
		return nil, fmt.Errorf("%w: run %s has not passed its gates", domain.ErrGateFailure, runID)
	}
	return s.corpus.GetSnapshotRows(ctx, runID)
}

// RowMismatch is one divergent position between two runs.
type RowMismatch struct {
	Position int    `json:"position"`
	Ts       int64  `json:"ts"`
	HashA    string `json:"hashA"`
	HashB    string `json:"hashB"`
}

// RunComparison reports a row-by-row comparison of two runs.
type RunComparison struct {
	RunA         string        `json:"runA"`
	RunB         string        `json:"runB"`
	RowsA        int           `json:"rowsA"`
	RowsB        int           `json:"rowsB"`
	Identical    bool          `json:"identical"`
	Mismatches   []RowMismatch `json:"mismatches,omitempty"`
	TotalDiverge int           `json:"totalDiverge"`
}

// CompareRuns compares two runs row-by-row, reporting the first
// maxMismatches divergences with full position info. Used against a
// LOCKED baseline when upstream logic changes.
func (s *Service) CompareRuns(ctx context.Context, runA, runB string, maxMismatches int) (*RunComparison, error) {
	if maxMismatches <= 0 {
		maxMismatches = 20
	}

	rowsA, err := s.RunRows(ctx, runA)
	if err != nil {
		return nil, err
	}
	rowsB, err := s.RunRows(ctx, runB)
	if err != nil {
		return nil, err
	}

	cmp := &RunComparison{RunA: runA, RunB: runB, RowsA: len(rowsA), RowsB: len(rowsB)}

	n := len(rowsA)
	if len(rowsB) < n {
		n = len(rowsB)
	}
	for i := 0; i < n; i++ {
		if rowsA[i].RowHash == rowsB[i].RowHash && rowsA[i].Ts == rowsB[i].Ts {
			continue
		}
		cmp.TotalDiverge++
		if len(cmp.Mismatches) < maxMismatches {
			cmp.Mismatches = append(cmp.Mismatches, RowMismatch{
				Position: i,
				Ts:       rowsA[i].Ts,
				HashA:    rowsA[i].RowHash,
				HashB:    rowsB[i].RowHash,
			})
		}
	}
	cmp.TotalDiverge += len(rowsA) - n + len(rowsB) - n
	cmp.Identical = cmp.TotalDiverge == 0

	return cmp, nil
}

// ListRuns lists runs for a symbol (all when empty).
func (s *Service) ListRuns(ctx context.Context, symbol string) ([]*domain.CorpusRun, error) {
	return s.corpus.ListRuns(ctx, symbol)
}
