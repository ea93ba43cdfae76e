package domain

import "time"

// RunStatus is the lifecycle status of a corpus run.
type RunStatus string

// Corpus run statuses. PENDING runs are never served to readers; LOCKED
// runs are immutable reproducibility baselines.
const (
	RunPending  RunStatus = "PENDING"
	RunComplete RunStatus = "COMPLETE"
	RunLocked   RunStatus = "LOCKED"
)

// CorpusRun is a named, versioned materialization of derived signal
// rows over a bar range, fingerprinted by the content hash of its
// snapshot rows and the logic version that produced them.
type CorpusRun struct {
	RunID        string // uuid
	Symbol       string
	StartTs      int64 // window start, Unix ms inclusive
	EndTs        int64 // window end, Unix ms inclusive
	LogicVersion string
	Status       RunStatus
	Fingerprint  string // hex sha256, set when gates pass
	RowCount     int

	CreatedAt   time.Time
	CompletedAt *time.Time
	LockedAt    *time.Time
}

// SnapshotRow is one materialized row of a corpus run: the bar plus the
// bias stack current as of the bar's open. RowHash is the content hash
// of every value column, used for run comparison and the determinism
// gate.
type SnapshotRow struct {
	RunID  string
	Symbol string
	Ts     int64 // bar-open timestamp, ms
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// Bias per timeframe; empty string when no signal preceded Ts.
	Bias map[string]Direction

	RowHash string
}

// GateStatus summarizes one quality gate evaluation.
type GateStatus struct {
	Gate     string // determinism | alignment | coverage
	Passed   bool
	Detail   string
	Expected int
	Actual   int
}
