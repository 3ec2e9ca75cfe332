package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adilzhan-b/ride-dispatch/config"
	"github.com/adilzhan-b/ride-dispatch/internal/adapter/http/handler"
	"github.com/adilzhan-b/ride-dispatch/internal/adapter/http/middleware"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/wshub"
)

const serverIPAddress = "%s:%s"

// API is the HTTP surface of one service mode. The same type serves both
// modes; only the routed handler set differs.
type API struct {
	mode   types.ServiceMode
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	log  logger.Logger
}

type handlers struct {
	health *handler.Health
	ride   *handler.Ride
	driver *handler.Driver
	ws     *handler.DriverWS
}

func New(
	cfg config.Config,
	rideService handler.RideService,
	driverGateway handler.DriverGateway,
	driverPresence handler.DriverPresence,
	hub *wshub.ConnectionHub,
	log logger.Logger,
) (*API, error) {
	var addr string
	routes := &handlers{
		health: handler.NewHealth(string(cfg.Mode), log),
	}

	switch cfg.Mode {
	case types.RideService:
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.RideService)
		routes.ride = handler.NewRide(rideService, log)
	case types.DriverService:
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.DriverService)
		routes.driver = handler.NewDriver(driverGateway, driverPresence, log)
		routes.ws = handler.NewDriverWS(hub, log)
	default:
		return nil, fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	api := &API{
		mode:   cfg.Mode,
		mux:    http.NewServeMux(),
		routes: routes,
		m:      middleware.NewMiddleware(log),
		addr:   addr,
		log:    log,
	}

	setupRoutes(api.mux, api.routes, api.mode)

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	return api, nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr, "mode", a.mode)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

// withMiddleware applies the shared middleware chain to the mux.
func (a *API) withMiddleware() http.Handler {
	chain := a.m.Metrics(string(a.mode))(a.mux)
	chain = a.m.Logging(chain)
	chain = a.m.RequestID(chain)
	return a.m.Recover(chain)
}
