package types

import "errors"

var (
	ErrRideNotFound   = errors.New("ride not found")
	ErrDriverNotFound = errors.New("driver not found")
	ErrUnknownStatus  = errors.New("unknown ride status")

	// ErrInvalidTransition - the requested status is not reachable from the
	// ride's current status. State is left unchanged.
	ErrInvalidTransition = errors.New("invalid ride status transition")

	// ErrRideAlreadyTaken - another driver won the accept race. Callers may
	// immediately try a different ride.
	ErrRideAlreadyTaken = errors.New("ride already taken by another driver")

	// ErrNotRideOwner - the ride exists but belongs to a different driver.
	ErrNotRideOwner = errors.New("ride is not assigned to this driver")

	// ErrNoDriversAvailable - presence registry is empty, the ride stays requested.
	ErrNoDriversAvailable = errors.New("no drivers available")

	// ErrDependencyUnavailable - queue/cache/ledger backend unreachable.
	// The only retryable error in the taxonomy.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// IsTerminal reports whether the error must never be retried automatically.
func IsTerminal(err error) bool {
	return IsOneOf(err,
		ErrRideNotFound,
		ErrDriverNotFound,
		ErrUnknownStatus,
		ErrInvalidTransition,
		ErrRideAlreadyTaken,
		ErrNotRideOwner,
	)
}

func IsOneOf(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
