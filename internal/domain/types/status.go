package types

// RideStatus is the lifecycle state of a ride. Values are stored verbatim
// in the ledger and on the wire.
type RideStatus string

const (
	StatusRequested       RideStatus = "requested"
	StatusAssigned        RideStatus = "assigned"
	StatusAccepted        RideStatus = "accepted"
	StatusOngoing         RideStatus = "ongoing"
	StatusCompleted       RideStatus = "completed"
	StatusRiderCancelled  RideStatus = "rider_cancelled"
	StatusDriverCancelled RideStatus = "driver_cancelled"
)

// transitions is the full directed graph of allowed status changes.
// Terminal states have no outgoing edges.
var transitions = map[RideStatus][]RideStatus{
	StatusRequested: {StatusAssigned, StatusAccepted, StatusRiderCancelled},
	StatusAssigned:  {StatusAccepted, StatusOngoing, StatusRiderCancelled, StatusDriverCancelled},
	StatusAccepted:  {StatusOngoing, StatusDriverCancelled},
	StatusOngoing:   {StatusCompleted},
}

// ParseRideStatus validates a raw status string.
func ParseRideStatus(s string) (RideStatus, error) {
	switch st := RideStatus(s); st {
	case StatusRequested, StatusAssigned, StatusAccepted, StatusOngoing,
		StatusCompleted, StatusRiderCancelled, StatusDriverCancelled:
		return st, nil
	default:
		return "", ErrUnknownStatus
	}
}

func (s RideStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s RideStatus) CanTransitionTo(target RideStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s RideStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsCancelled reports whether the ride was cancelled by either party.
func (s RideStatus) IsCancelled() bool {
	return s == StatusRiderCancelled || s == StatusDriverCancelled
}

// HoldsDriver reports whether a ride in this status must carry a driver id.
// The ledger keeps driver_id NULL in every other status.
func (s RideStatus) HoldsDriver() bool {
	switch s {
	case StatusAssigned, StatusAccepted, StatusOngoing, StatusCompleted:
		return true
	default:
		return false
	}
}
