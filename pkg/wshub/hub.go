package wshub

import (
	"context"
	"errors"
	"sync"

	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
)

// ConnectionHub keeps track of all active driver WebSocket connections.
// It is a best-effort push channel; polling the assignment cache remains the
// contract for clients that never connect.
type ConnectionHub struct {
	clients map[string]*Conn
	l       logger.Logger
	mu      sync.Mutex
}

func NewConnHub(l logger.Logger) *ConnectionHub {
	return &ConnectionHub{
		clients: make(map[string]*Conn),
		l:       l,
	}
}

// Add registers a new connection. An existing connection for the same driver
// is closed and replaced.
func (h *ConnectionHub) Add(newConn *Conn) error {
	if newConn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := wrap.WithAction(context.Background(), "add_ws_connection")

	if existing, ok := h.clients[newConn.driverID]; ok {
		h.l.Warn(ctx,
			"replacing existing connection",
			"driver_id", existing.driverID,
		)
		if err := existing.Close(); err != nil {
			h.l.Warn(ctx,
				"failed to close existing conn",
				"driver_id", existing.driverID,
				"err", err.Error(),
			)
		}
	}

	h.clients[newConn.driverID] = newConn

	return nil
}

// Delete removes and closes the connection for the given driver.
func (h *ConnectionHub) Delete(driverID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[driverID]
	if !ok {
		return ErrConnIsNotFound
	}

	if err := conn.Close(); err != nil {
		h.l.Warn(wrap.WithAction(context.Background(), "ws_connection_delete"),
			"failed to close conn",
			"driver_id", conn.driverID,
			"err", err.Error(),
		)
	}

	delete(h.clients, driverID)

	return nil
}

// SendTo sends a message to one driver. Returns ErrConnIsNotFound when the
// driver has no live connection.
func (h *ConnectionHub) SendTo(driverID string, msg any) error {
	h.mu.Lock()
	conn, ok := h.clients[driverID]
	h.mu.Unlock()

	if !ok {
		return ErrConnIsNotFound
	}
	return conn.Send(msg)
}

// Close closes every connection in the hub.
func (h *ConnectionHub) Close() {
	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range clients {
		_ = h.Delete(conn.driverID)
	}

	h.l.Info(wrap.WithAction(context.Background(), "hub_close"), "all websocket connections closed")
}
