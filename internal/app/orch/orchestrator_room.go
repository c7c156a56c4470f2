package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join moves conn into room as user once the gate admits it.
// On rejection nothing changes and only conn hears about it.
func (o *Orchestrator) Join(ctx context.Context, conn core.ConnID, user domain.UserID, room domain.RoomID) error {
	verdict := o.Gate.Validate(ctx, user, room)
	if !verdict.Accepted {
		log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(user)).Str("room", string(room)).Str("reason", verdict.Reason).Msg("join rejected")
		o.unicast(conn, domain.OutError, domain.ErrorNotice{Text: verdict.Reason})
		return fmt.Errorf("%w: %s", core.ErrValidationRejected, verdict.Reason)
	}

	o.mu.Lock()
	var slow []slowMember
	add := func(_ int, s []slowMember) { slow = append(slow, s...) }

	prev, had := o.Registry.Get(conn)
	if had && prev.Room == room {
		o.Registry.Set(conn, user, room)
		if prev.User != user {
			add(o.fanout(room, domain.OutUserList, o.userList(room), ""))
		} else {
			o.unicast(conn, domain.OutUserList, o.userList(room))
		}
		o.mu.Unlock()
		o.applyPolicy(slow)
		log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(room)).Msg("rejoined same room")
		return nil
	}

	now := o.now()
	if had {
		o.Rooms.Remove(prev.Room, conn)
		o.Transport.Unsubscribe(conn, prev.Room)
		add(o.fanout(prev.Room, domain.OutJoinLeft, domain.NewNotice(prev.User, domain.SwitchedText(prev.Room), now), ""))
		add(o.fanout(prev.Room, domain.OutUserList, o.userList(prev.Room), ""))
		log.Info().Str("module", "orch").Str("conn", string(conn)).Str("from_room", string(prev.Room)).Msg("left room")
	}

	o.Registry.Set(conn, user, room)
	o.Rooms.Add(room, conn)
	o.Transport.Subscribe(conn, room)
	add(o.fanout(room, domain.OutJoinLeft, domain.NewNotice(user, domain.JoinedText(room), now), ""))
	add(o.fanout(room, domain.OutUserList, o.userList(room), ""))
	o.mu.Unlock()

	o.applyPolicy(slow)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(user)).Str("room", string(room)).Msg("joined room")
	return nil
}

// Disconnect forgets conn. Unknown connections are ignored.
func (o *Orchestrator) Disconnect(conn core.ConnID) {
	o.mu.Lock()
	m, ok := o.Registry.Remove(conn)
	if !ok {
		o.mu.Unlock()
		return
	}
	o.Rooms.Remove(m.Room, conn)
	o.Transport.Unsubscribe(conn, m.Room)

	var slow []slowMember
	add := func(_ int, s []slowMember) { slow = append(slow, s...) }
	add(o.fanout(m.Room, domain.OutJoinLeft, domain.NewNotice(m.User, domain.LeftText, o.now()), ""))
	add(o.fanout(m.Room, domain.OutUserList, o.userList(m.Room), ""))
	o.mu.Unlock()

	o.applyPolicy(slow)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(m.User)).Str("room", string(m.Room)).Msg("disconnected")
}
