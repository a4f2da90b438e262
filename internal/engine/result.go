package engine

import "time"

// Status tells the calling layer how a derived result was produced, so an
// empty value caused by missing data is distinguishable from one caused by an
// internal fault.
type Status string

const (
	// StatusOK means the computation ran on full inputs.
	StatusOK Status = "ok"
	// StatusEmpty means the computation ran on full inputs and legitimately
	// produced nothing.
	StatusEmpty Status = "empty"
	// StatusDegraded means part of the inputs were unavailable or a sub-engine
	// faulted; the value is well-formed but partial or defaulted.
	StatusDegraded Status = "degraded"
)

// Result wraps one derived record with its computation status. Every engine
// operation always returns a well-formed (if degraded) Result; faults never
// escape as panics or errors.
type Result[T any] struct {
	Value      T         `json:"value"`
	Status     Status    `json:"status"`
	Faults     []string  `json:"faults,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
	FromCache  bool      `json:"from_cache,omitempty"`
}

func statusFor(empty bool, faults []string) Status {
	if len(faults) > 0 {
		return StatusDegraded
	}
	if empty {
		return StatusEmpty
	}
	return StatusOK
}
