package app

import (
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry maps a connection to its current membership.
// Entries are values and are replaced whole, so a reader never sees a user
// paired with a stale room.
type Registry struct {
	mu      sync.RWMutex
	members map[core.ConnID]domain.Member
	seq     uint64
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[core.ConnID]domain.Member),
	}
}

// Set stores (user, room) for conn and returns the stored entry.
// A connection that was already registered keeps its join order.
func (r *Registry) Set(conn core.ConnID, user domain.UserID, room domain.RoomID) domain.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := domain.Member{User: user, Room: room}
	if prev, ok := r.members[conn]; ok {
		m.Seq = prev.Seq
	} else {
		r.seq++
		m.Seq = r.seq
	}
	r.members[conn] = m
	log.Debug().Str("module", "app.registry").Str("conn", string(conn)).Str("user", string(user)).Str("room", string(room)).Msg("set membership")
	return m
}

func (r *Registry) Get(conn core.ConnID) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[conn]
	return m, ok
}

// Remove deletes the entry for conn and returns what was removed.
func (r *Registry) Remove(conn core.ConnID) (domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[conn]
	if !ok {
		return domain.Member{}, false
	}
	delete(r.members, conn)
	log.Debug().Str("module", "app.registry").Str("conn", string(conn)).Str("room", string(m.Room)).Msg("removed membership")
	return m, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Snapshot copies the whole table.
func (r *Registry) Snapshot() map[core.ConnID]domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[core.ConnID]domain.Member, len(r.members))
	for c, m := range r.members {
		out[c] = m
	}
	return out
}
