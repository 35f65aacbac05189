package connection

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"TechPulse/backend/go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	writeErr error
	deadline time.Time
}

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeSocket) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *fakeSocket) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := reg.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, reg.Put(ctx, models.LiveConnection{ConnectionID: "b", ConnectedAt: base.Add(time.Minute)}))
	require.NoError(t, reg.Put(ctx, models.LiveConnection{ConnectionID: "a", ConnectedAt: base}))
	require.NoError(t, reg.Put(ctx, models.LiveConnection{ConnectionID: "c", ConnectedAt: base.Add(2 * time.Minute)}))

	all, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ConnectionID)
	assert.Equal(t, "c", all[2].ConnectionID)

	require.NoError(t, reg.Remove(ctx, "a", "c", "unknown"))
	all, err = reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ConnectionID)
}

func TestDecodeListedMarksMissingValuesExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	live := models.LiveConnection{ConnectionID: "live", ConnectedAt: now, ExpiresAt: now.Add(time.Hour)}
	raw, err := json.Marshal(live)
	require.NoError(t, err)

	out := decodeListed([]string{"live", "gone", "broken"}, []interface{}{string(raw), nil, "{not json"})
	require.Len(t, out, 3)

	byID := map[string]models.LiveConnection{}
	for _, c := range out {
		byID[c.ConnectionID] = c
	}
	assert.False(t, byID["live"].Expired(now))
	assert.True(t, byID["gone"].Expired(now))
	assert.True(t, byID["broken"].Expired(now))
}

func TestHubPush(t *testing.T) {
	hub := NewHub()
	sock := &fakeSocket{}
	hub.Attach("c1", sock)
	assert.True(t, hub.Attached("c1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Push(ctx, "c1", []byte(`{"type":"x"}`)))
	require.Len(t, sock.Frames(), 1)
	assert.JSONEq(t, `{"type":"x"}`, string(sock.Frames()[0]))

	assert.ErrorIs(t, hub.Push(ctx, "c2", []byte("x")), ErrNotAttached)

	sock.writeErr = errors.New("broken pipe")
	assert.Error(t, hub.Push(ctx, "c1", []byte("x")))

	hub.Detach("c1")
	assert.True(t, sock.Closed())
	assert.Equal(t, 0, hub.Len())
}

func TestHubAttachReplacesPreviousSocket(t *testing.T) {
	hub := NewHub()
	first, second := &fakeSocket{}, &fakeSocket{}
	hub.Attach("c1", first)
	hub.Attach("c1", second)
	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.Equal(t, 1, hub.Len())
}

func TestHubConcurrentPushes(t *testing.T) {
	hub := NewHub()
	sock := &fakeSocket{}
	hub.Attach("c1", sock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = hub.Push(context.Background(), "c1", []byte("ping"))
		}()
	}
	wg.Wait()
	assert.Len(t, sock.Frames(), 20)
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewService(NewMemoryRegistry(), NewHub(), 2*time.Hour, WithClock(clock))

	sock := &fakeSocket{}
	conn, err := svc.Connect(ctx, "", sock)
	require.NoError(t, err)
	assert.NotEmpty(t, conn.ConnectionID)
	assert.NotEmpty(t, conn.SessionID, "a session id is generated when none is supplied")
	assert.Equal(t, now.Add(2*time.Hour), conn.ExpiresAt)
	assert.True(t, svc.Hub().Attached(conn.ConnectionID))

	now = now.Add(30 * time.Minute)
	touched, err := svc.Touch(ctx, conn.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, now, touched.LastSeenAt)
	assert.Equal(t, now.Add(2*time.Hour), touched.ExpiresAt)

	stored, err := svc.Registry().Get(ctx, conn.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, touched.ExpiresAt, stored.ExpiresAt)

	require.NoError(t, svc.Disconnect(ctx, conn.ConnectionID))
	assert.True(t, sock.Closed())
	stored, err = svc.Registry().Get(ctx, conn.ConnectionID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = svc.Touch(ctx, conn.ConnectionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceKeepsSuppliedSession(t *testing.T) {
	svc := NewService(NewMemoryRegistry(), NewHub(), time.Hour)
	conn, err := svc.Connect(context.Background(), "session-42", &fakeSocket{})
	require.NoError(t, err)
	assert.Equal(t, "session-42", conn.SessionID)

	var msg models.ConnectionMessage
	require.NoError(t, json.Unmarshal(Message(models.MessageTypeConnected, conn, time.Now()), &msg))
	assert.Equal(t, models.MessageTypeConnected, msg.Type)
	assert.Equal(t, conn.ConnectionID, msg.ConnectionID)
	assert.Equal(t, "session-42", msg.SessionID)
}

// pruningRegistry removes the connection right after it is read, the way a
// concurrent broadcast prune would.
type pruningRegistry struct {
	*MemoryRegistry
}

func (r pruningRegistry) Get(ctx context.Context, id string) (*models.LiveConnection, error) {
	conn, err := r.MemoryRegistry.Get(ctx, id)
	_ = r.MemoryRegistry.Remove(ctx, id)
	return conn, err
}

func TestTouchDoesNotResurrectPrunedConnection(t *testing.T) {
	ctx := context.Background()
	reg := pruningRegistry{NewMemoryRegistry()}
	svc := NewService(reg, NewHub(), time.Hour)
	conn, err := svc.Connect(ctx, "", &fakeSocket{})
	require.NoError(t, err)

	_, err = svc.Touch(ctx, conn.ConnectionID)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := reg.MemoryRegistry.Get(ctx, conn.ConnectionID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestMemoryRegistryRefreshOnlyExisting(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	ok, err := reg.Refresh(ctx, models.LiveConnection{ConnectionID: "gone"})
	require.NoError(t, err)
	assert.False(t, ok)
	conns, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, conns)

	require.NoError(t, reg.Put(ctx, models.LiveConnection{ConnectionID: "c1", SessionID: "a"}))
	ok, err = reg.Refresh(ctx, models.LiveConnection{ConnectionID: "c1", SessionID: "b"})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := reg.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.SessionID)
}
