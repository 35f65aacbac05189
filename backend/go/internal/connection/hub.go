package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotAttached is returned when pushing to a connection that has no socket
// on this node.
var ErrNotAttached = errors.New("connection has no attached socket")

const defaultWriteTimeout = 5 * time.Second

// Socket is the subset of *websocket.Conn the hub writes through.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type attached struct {
	socket Socket
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

// Hub manages the websocket connections attached to this process.
type Hub struct {
	mu      sync.RWMutex
	sockets map[string]*attached
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{sockets: make(map[string]*attached)}
}

// Attach registers the socket for a connection id, replacing any previous one.
func (h *Hub) Attach(id string, socket Socket) {
	h.mu.Lock()
	prev := h.sockets[id]
	h.sockets[id] = &attached{socket: socket}
	h.mu.Unlock()
	if prev != nil && prev.socket != socket {
		_ = prev.socket.Close()
	}
}

// Detach removes and closes the sockets of the given connections.
func (h *Hub) Detach(ids ...string) {
	h.mu.Lock()
	var closing []*attached
	for _, id := range ids {
		if a, ok := h.sockets[id]; ok {
			closing = append(closing, a)
			delete(h.sockets, id)
		}
	}
	h.mu.Unlock()
	for _, a := range closing {
		_ = a.socket.Close()
	}
}

// Attached reports whether a socket is registered for id.
func (h *Hub) Attached(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sockets[id]
	return ok
}

// Len returns the number of attached sockets.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sockets)
}

// Push writes a text frame to one connection. The write deadline follows the
// context deadline when there is one.
func (h *Hub) Push(ctx context.Context, id string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	a, ok := h.sockets[id]
	h.mu.RUnlock()
	if !ok {
		return ErrNotAttached
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := a.socket.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return a.socket.WriteMessage(websocket.TextMessage, payload)
}

// CloseAll detaches every socket, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sockets := h.sockets
	h.sockets = make(map[string]*attached)
	h.mu.Unlock()
	for _, a := range sockets {
		_ = a.socket.Close()
	}
}
