package server

import (
	"net/http"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, mode types.ServiceMode) {
	// System Health
	mux.HandleFunc("/health", routes.health.HealthCheck)

	setupMetricsRoute(mux)

	switch mode {
	case types.RideService:
		setupRideRoutes(mux, routes)
	case types.DriverService:
		setupDriverRoutes(mux, routes)
	}
}

// setupRideRoutes setups routes for the ride service
func setupRideRoutes(mux *http.ServeMux, routes *handlers) {
	mux.HandleFunc("POST /rides/request", routes.ride.RequestRide)               // Enqueue a new ride request
	mux.HandleFunc("POST /rides/cancel", routes.ride.CancelRide)                 // Rider cancels a ride
	mux.HandleFunc("POST /rides/{ride_id}/status", routes.ride.UpdateStatus)     // Apply one lifecycle transition
	mux.HandleFunc("GET /rides/{ride_id}", routes.ride.GetRide)                  // Inspect one ride
	mux.HandleFunc("GET /rides/history/riders/{rider_id}", routes.ride.RiderHistory)    // Rider's ride history
	mux.HandleFunc("GET /rides/history/drivers/{driver_id}", routes.ride.DriverHistory) // Driver's ride history
}

// setupDriverRoutes setups routes for the driver service
func setupDriverRoutes(mux *http.ServeMux, routes *handlers) {
	mux.HandleFunc("POST /drivers/online", routes.driver.GoOnline)               // Driver goes online
	mux.HandleFunc("POST /drivers/offline", routes.driver.GoOffline)             // Driver goes offline
	mux.HandleFunc("GET /drivers/{driver_id}/assigned", routes.driver.GetAssigned) // Driver's current offer
	mux.HandleFunc("GET /drivers/pending", routes.driver.GetPending)             // Unmatched rides open for claims
	mux.HandleFunc("POST /drivers/accept", routes.driver.AcceptRide)             // Accept an offer or claim a ride
	mux.HandleFunc("POST /drivers/start", routes.driver.StartRide)               // Start a ride
	mux.HandleFunc("POST /drivers/complete", routes.driver.CompleteRide)         // Complete a ride
	mux.HandleFunc("POST /drivers/decline", routes.driver.DeclineRide)           // Dismiss an offer
	mux.HandleFunc("POST /drivers/cancel", routes.driver.CancelRide)             // Abandon a matched ride
	mux.HandleFunc("GET /ws/drivers/{driver_id}", routes.ws.HandleWS)            // WebSocket push channel for drivers
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
