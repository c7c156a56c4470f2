package orch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	conn    core.ConnID
	event   string
	payload any
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []emitted
	subs   map[core.ConnID]domain.RoomID
	full   map[core.ConnID]bool
	closed []core.ConnID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subs: make(map[core.ConnID]domain.RoomID),
		full: make(map[core.ConnID]bool),
	}
}

func (f *fakeTransport) Emit(conn core.ConnID, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full[conn] {
		return core.ErrBackpressure
	}
	f.sent = append(f.sent, emitted{conn: conn, event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Broadcast(conns []core.ConnID, event string, payload any) map[core.ConnID]error {
	failed := make(map[core.ConnID]error)
	for _, c := range conns {
		if err := f.Emit(c, event, payload); err != nil {
			failed[c] = err
		}
	}
	return failed
}

func (f *fakeTransport) Subscribe(conn core.ConnID, room domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[conn] = room
}

func (f *fakeTransport) Unsubscribe(conn core.ConnID, room domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[conn] == room {
		delete(f.subs, conn)
	}
}

func (f *fakeTransport) Close(conn core.ConnID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, conn)
}

// to returns what conn received, optionally filtered by event name.
func (f *fakeTransport) to(conn core.ConnID, event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.sent {
		if e.conn == conn && (event == "" || e.event == event) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type validatorFunc func(ctx context.Context, user domain.UserID, room domain.RoomID) (bool, string, error)

func (fn validatorFunc) Validate(ctx context.Context, user domain.UserID, room domain.RoomID) (bool, string, error) {
	return fn(ctx, user, room)
}

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) Save(ctx context.Context, msg domain.ChatMessage) error {
	return m.Called(ctx, msg).Error(0)
}

var fixedNow = time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)

func newTestOrchestrator(v core.MembershipValidator) (*Orchestrator, *fakeTransport) {
	if v == nil {
		v = app.AllowAll{}
	}
	ft := newFakeTransport()
	o := &Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewRoomIndex(),
		Gate:      app.NewGate(v, nil),
		Policy:    app.SimplePolicy{},
		Transport: ft,
		Now:       func() time.Time { return fixedNow },
	}
	return o, ft
}

func join(t *testing.T, o *Orchestrator, conn core.ConnID, user domain.UserID, room domain.RoomID) {
	t.Helper()
	require.NoError(t, o.Join(context.Background(), conn, user, room))
}

func users(t *testing.T, e emitted) []domain.UserID {
	t.Helper()
	list, ok := e.payload.(domain.UserList)
	require.True(t, ok, "payload is %T", e.payload)
	return list.Users
}

func notice(t *testing.T, e emitted) domain.Notice {
	t.Helper()
	n, ok := e.payload.(domain.Notice)
	require.True(t, ok, "payload is %T", e.payload)
	return n
}

// requireConsistent checks that registry and room index describe the same
// membership in both directions.
func requireConsistent(t *testing.T, o *Orchestrator) {
	t.Helper()
	snap := o.Registry.Snapshot()
	for c, m := range snap {
		require.True(t, o.Rooms.Has(m.Room, c), "registry has %s in %s, index does not", c, m.Room)
	}
	total := 0
	for _, info := range o.Rooms.Rooms() {
		require.Positive(t, info.MemberCount, "empty room %s kept", info.ID)
		for _, c := range o.Rooms.MembersOf(info.ID) {
			m, ok := snap[c]
			require.True(t, ok, "index has %s in %s, registry does not", c, info.ID)
			require.Equal(t, info.ID, m.Room)
		}
		total += info.MemberCount
	}
	require.Equal(t, len(snap), total)
}
