package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/metrics"
	"github.com/adilzhan-b/ride-dispatch/pkg/wshub"
)

// DriverWS upgrades driver connections and parks them in the hub. The socket
// is push-only from the server side; whatever the client writes is discarded.
type DriverWS struct {
	hub *wshub.ConnectionHub
	l   logger.Logger

	upgrader websocket.Upgrader
}

func NewDriverWS(hub *wshub.ConnectionHub, l logger.Logger) *DriverWS {
	return &DriverWS{
		hub: hub,
		l:   l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *DriverWS) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_websocket")

	driverID := r.PathValue("driver_id")
	if driverID == "" {
		errorResponse(w, http.StatusBadRequest, "driver_id must be provided")
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID)

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Error(ctx, "failed to upgrade websocket connection", err)
		return
	}

	conn := wshub.NewConn(ctx, driverID, wsConn)
	if err := h.hub.Add(conn); err != nil {
		h.l.Error(ctx, "failed to register websocket connection", err)
		_ = conn.Close()
		return
	}

	metrics.WebSocketConnectionsGauge.WithLabelValues(string(types.DriverService)).Inc()
	h.l.Info(ctx, "driver websocket connected")

	// Block on the read loop to notice the peer going away; returning from
	// the handler would cancel the request context the connection lives on.
	// Inbound frames carry no meaning and are dropped.
	defer func() {
		_ = h.hub.Delete(driverID)
		metrics.WebSocketConnectionsGauge.WithLabelValues(string(types.DriverService)).Dec()
		h.l.Info(ctx, "driver websocket disconnected")
	}()

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			return
		}
	}
}
