package app

import (
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/samber/lo"
)

type connSet = map[core.ConnID]struct{}

// RoomIndex is the room -> members view used for fan-out.
// A room is present only while it has at least one member.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]connSet
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[domain.RoomID]connSet)}
}

// MembersOf returns a copy of the member set, empty for an unknown room.
func (x *RoomIndex) MembersOf(room domain.RoomID) []core.ConnID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return lo.Keys(x.rooms[room])
}

func (x *RoomIndex) Add(room domain.RoomID, conn core.ConnID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	set, ok := x.rooms[room]
	if !ok {
		set = make(connSet)
		x.rooms[room] = set
	}
	set[conn] = struct{}{}
}

// Remove drops conn from room and prunes the room once it is empty.
func (x *RoomIndex) Remove(room domain.RoomID, conn core.ConnID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	set, ok := x.rooms[room]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(x.rooms, room)
	}
}

func (x *RoomIndex) Has(room domain.RoomID, conn core.ConnID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.rooms[room][conn]
	return ok
}

func (x *RoomIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rooms)
}

func (x *RoomIndex) Rooms() []domain.RoomInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(x.rooms))
	for id, set := range x.rooms {
		out = append(out, domain.RoomInfo{ID: id, MemberCount: len(set)})
	}
	return out
}
