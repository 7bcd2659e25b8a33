package herdlock

import (
	"errors"
	"fmt"
)

var (
	// ErrWaitTimeout is returned when a caller that lost the recompute-lock
	// race waited MaxWait without observing a value or a stale fallback.
	ErrWaitTimeout = errors.New("herdlock: timed out waiting for value")

	// ErrNilFactory is returned when GetWithLock is called without a factory.
	ErrNilFactory = errors.New("herdlock: nil factory")
)

// InvalidateError reports a failed Invalidate. PrimaryErr is the failure
// deleting the authoritative entry; StaleErr, if set, is the failure deleting
// the stale twin. A stale-only failure is not reported as an error (the twin
// is backward-looking and gated behind UseStale), so PrimaryErr is always set.
type InvalidateError struct {
	Key        string
	PrimaryErr error
	StaleErr   error
}

func (e *InvalidateError) Error() string {
	if e.StaleErr != nil {
		return fmt.Sprintf("invalidate %q failed: primary=%v; stale=%v", e.Key, e.PrimaryErr, e.StaleErr)
	}
	return fmt.Sprintf("invalidate %q failed: %v", e.Key, e.PrimaryErr)
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.PrimaryErr != nil {
		errs = append(errs, e.PrimaryErr)
	}
	if e.StaleErr != nil {
		errs = append(errs, e.StaleErr)
	}
	return errs
}
