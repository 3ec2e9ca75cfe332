package types

// ServiceMode selects which service the binary runs as.
//
// Ride Service - ride intake, ledger reads and the dispatch coordinator
// Driver Service - driver actions, presence and assignment visibility
type ServiceMode string

const (
	RideService   ServiceMode = "ride-service"
	DriverService ServiceMode = "driver-service"
)

// SelectionPolicyName picks how the coordinator matches drivers to rides.
type SelectionPolicyName string

const (
	// PolicyDirectPick - the coordinator draws one online driver at random
	// and assigns the ride to it.
	PolicyDirectPick SelectionPolicyName = "direct_pick"

	// PolicyBroadcast - the ride stays requested and visible to every online
	// driver; the first successful accept wins.
	PolicyBroadcast SelectionPolicyName = "broadcast"
)

func (p SelectionPolicyName) Valid() bool {
	return p == PolicyDirectPick || p == PolicyBroadcast
}
