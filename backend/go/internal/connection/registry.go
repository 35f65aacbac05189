package connection

import (
	"context"
	"sort"
	"sync"

	"TechPulse/backend/go/internal/models"
)

// Registry stores live connection registrations. Implementations must be safe
// for concurrent use; the notifier and the websocket handlers share one.
type Registry interface {
	Put(ctx context.Context, conn models.LiveConnection) error
	// Get returns nil, nil when the connection is not registered.
	Get(ctx context.Context, id string) (*models.LiveConnection, error)
	// List returns every registration, expired ones included.
	List(ctx context.Context) ([]models.LiveConnection, error)
	Remove(ctx context.Context, ids ...string) error
	// Refresh overwrites a registration only if it still exists and reports
	// whether it did.
	Refresh(ctx context.Context, conn models.LiveConnection) (bool, error)
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]models.LiveConnection
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[string]models.LiveConnection)}
}

func (r *MemoryRegistry) Put(_ context.Context, conn models.LiveConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ConnectionID] = conn
	return nil
}

func (r *MemoryRegistry) Refresh(_ context.Context, conn models.LiveConnection) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ConnectionID]; !ok {
		return false, nil
	}
	r.conns[conn.ConnectionID] = conn
	return true, nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*models.LiveConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, nil
	}
	return &conn, nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]models.LiveConnection, error) {
	r.mu.RLock()
	out := make([]models.LiveConnection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sortConnections(out)
	return out, nil
}

func (r *MemoryRegistry) Remove(_ context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.conns, id)
	}
	return nil
}

func sortConnections(conns []models.LiveConnection) {
	sort.Slice(conns, func(i, j int) bool {
		if !conns[i].ConnectedAt.Equal(conns[j].ConnectedAt) {
			return conns[i].ConnectedAt.Before(conns[j].ConnectedAt)
		}
		return conns[i].ConnectionID < conns[j].ConnectionID
	})
}
