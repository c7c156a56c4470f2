package orch

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Orchestrator drives membership transitions and fan-out.
//
// Registry and Rooms are only mutated under mu, and both are updated in the
// same critical section, so they agree whenever mu is free. Calls into the
// validator and the persister happen outside mu.
type Orchestrator struct {
	Registry  *app.Registry
	Rooms     *app.RoomIndex
	Gate      *app.Gate
	Policy    app.Policy
	Transport core.Transport
	// Persister is optional.
	Persister core.MessagePersister
	Now       func() time.Time

	mu sync.Mutex
}

type slowMember struct {
	conn core.ConnID
	room domain.RoomID
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// BroadcastToRoom delivers payload to every member of room except exclude
// (pass "" to exclude nobody) and returns how many members it reached.
func (o *Orchestrator) BroadcastToRoom(room domain.RoomID, event string, payload any, exclude core.ConnID) int {
	o.mu.Lock()
	sent, slow := o.fanout(room, event, payload, exclude)
	o.mu.Unlock()
	o.applyPolicy(slow)
	return sent
}

// fanout must be called with mu held.
func (o *Orchestrator) fanout(room domain.RoomID, event string, payload any, exclude core.ConnID) (int, []slowMember) {
	targets := lo.Without(o.Rooms.MembersOf(room), exclude)
	var slow []slowMember
	failed := o.Transport.Broadcast(targets, event, payload)
	for c, err := range failed {
		if errors.Is(err, core.ErrBackpressure) {
			slow = append(slow, slowMember{conn: c, room: room})
			continue
		}
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(c)).Str("event", event).Msg("emit failed")
	}
	sent := len(targets) - len(failed)
	log.Debug().Str("module", "orch").Str("room", string(room)).Str("event", event).Int("sent_to", sent).Int("slow", len(slow)).Msg("broadcast result")
	return sent, slow
}

func (o *Orchestrator) unicast(conn core.ConnID, event string, payload any) {
	if err := o.Transport.Emit(conn, event, payload); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(conn)).Str("event", event).Msg("unicast failed")
	}
}

func (o *Orchestrator) applyPolicy(slow []slowMember) {
	if o.Policy == nil {
		return
	}
	for _, s := range lo.UniqBy(slow, func(s slowMember) core.ConnID { return s.conn }) {
		switch o.Policy.OnBackPressure(s.room, s.conn) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(s.conn)).Str("room", string(s.room)).Msg("kicking slow member")
			o.Transport.Close(s.conn)
		case app.DropFrame, app.NoAction:
		}
	}
}

// userList must be called with mu held. Users come out in join order.
func (o *Orchestrator) userList(room domain.RoomID) domain.UserList {
	members := lo.FilterMap(o.Rooms.MembersOf(room), func(c core.ConnID, _ int) (domain.Member, bool) {
		return o.Registry.Get(c)
	})
	slices.SortFunc(members, func(a, b domain.Member) int { return cmp.Compare(a.Seq, b.Seq) })
	return domain.UserList{Users: lo.Map(members, func(m domain.Member, _ int) domain.UserID { return m.User })}
}

// Members is the current user list of room.
func (o *Orchestrator) Members(room domain.RoomID) domain.UserList {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.userList(room)
}
