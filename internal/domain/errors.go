package domain

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. Normalization and storage errors are recovered
// locally when they represent a known, enumerable condition; they are
// surfaced when they represent a correctness risk.
var (
	// ErrMalformedEvent is returned when a payload lacks required
	// identity fields or carries an unknown event type. Not persisted;
	// the caller should not retry without fixing the payload.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrInvariantViolation is returned when a write would break a
	// lifecycle invariant, e.g. CANCELLED on a confirmed trade. The
	// write is rejected, never silently repaired.
	ErrInvariantViolation = errors.New("lifecycle invariant violation")

	// ErrGateFailure is returned when a determinism, alignment or
	// coverage gate fails. A failing run stays PENDING.
	ErrGateFailure = errors.New("quality gate failure")

	// ErrRunLocked is returned on any attempt to modify a LOCKED run.
	ErrRunLocked = errors.New("corpus run is locked")
)

// UpstreamDataGapError reports bars missing for a requested window. It
// carries the missing range so callers get a structured answer instead
// of a generic failure.
type UpstreamDataGapError struct {
	Symbol  string
	StartTs int64
	EndTs   int64
	Missing int
}

func (e *UpstreamDataGapError) Error() string {
	return fmt.Sprintf("upstream data gap: %s missing %d bar(s) in [%d, %d]",
		e.Symbol, e.Missing, e.StartTs, e.EndTs)
}

// IsUpstreamDataGap reports whether err is an UpstreamDataGapError.
func IsUpstreamDataGap(err error) bool {
	var gap *UpstreamDataGapError
	return errors.As(err, &gap)
}
