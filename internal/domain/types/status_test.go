package types

import "testing"

func TestParseRideStatus_Valid(t *testing.T) {
	for _, raw := range []string{
		"requested", "assigned", "accepted", "ongoing",
		"completed", "rider_cancelled", "driver_cancelled",
	} {
		st, err := ParseRideStatus(raw)
		if err != nil {
			t.Fatalf("ParseRideStatus(%q) returned error: %v", raw, err)
		}
		if st.String() != raw {
			t.Fatalf("ParseRideStatus(%q) = %q", raw, st)
		}
	}
}

func TestParseRideStatus_Unknown(t *testing.T) {
	for _, raw := range []string{"", "REQUESTED", "done", "cancelled"} {
		if _, err := ParseRideStatus(raw); err != ErrUnknownStatus {
			t.Fatalf("ParseRideStatus(%q): want ErrUnknownStatus, got %v", raw, err)
		}
	}
}

func TestCanTransitionTo_Graph(t *testing.T) {
	allowed := map[RideStatus][]RideStatus{
		StatusRequested: {StatusAssigned, StatusAccepted, StatusRiderCancelled},
		StatusAssigned:  {StatusAccepted, StatusOngoing, StatusRiderCancelled, StatusDriverCancelled},
		StatusAccepted:  {StatusOngoing, StatusDriverCancelled},
		StatusOngoing:   {StatusCompleted},
	}

	all := []RideStatus{
		StatusRequested, StatusAssigned, StatusAccepted, StatusOngoing,
		StatusCompleted, StatusRiderCancelled, StatusDriverCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s: got %v want %v", from, to, got, want)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []RideStatus{StatusCompleted, StatusRiderCancelled, StatusDriverCancelled}
	live := []RideStatus{StatusRequested, StatusAssigned, StatusAccepted, StatusOngoing}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range live {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestHoldsDriver(t *testing.T) {
	holding := []RideStatus{StatusAssigned, StatusAccepted, StatusOngoing, StatusCompleted}
	free := []RideStatus{StatusRequested, StatusRiderCancelled, StatusDriverCancelled}

	for _, s := range holding {
		if !s.HoldsDriver() {
			t.Fatalf("%s should hold a driver", s)
		}
	}
	for _, s := range free {
		if s.HoldsDriver() {
			t.Fatalf("%s should not hold a driver", s)
		}
	}
}
