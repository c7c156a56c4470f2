package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

const failedToSend = "Failed to send the message."

// senderRoom resolves the room conn is registered in and checks it
// against the room the event claims.
func (o *Orchestrator) senderRoom(conn core.ConnID, claimed string) (domain.Member, error) {
	m, ok := o.Registry.Get(conn)
	if !ok {
		return domain.Member{}, core.ErrNotJoined
	}
	if string(m.Room) != claimed {
		return domain.Member{}, fmt.Errorf("%w: registered %q, claimed %q", core.ErrRoomMismatch, m.Room, claimed)
	}
	return m, nil
}

// Message relays a chat message to the whole room, sender included.
// Messages for a room the sender is not in are dropped without a reply.
func (o *Orchestrator) Message(ctx context.Context, conn core.ConnID, p domain.Payload) error {
	m, err := o.senderRoom(conn, p.ChatID)
	if err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(conn)).Msg("message dropped")
		return err
	}

	msg := domain.NewChatMessage(p)
	if msg.FileURL != "" {
		log.Info().Str("module", "orch").Str("user", msg.UserID).Str("room", msg.ChatID).Str("file_url", msg.FileURL).Msg("file message")
	} else {
		log.Debug().Str("module", "orch").Str("user", msg.UserID).Str("room", msg.ChatID).Msg("text message")
	}

	if o.Persister != nil {
		if err := o.Persister.Save(ctx, msg); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("conn", string(conn)).Str("room", msg.ChatID).Msg("persist message")
			o.unicast(conn, domain.OutError, domain.ErrorNotice{Text: failedToSend})
			return fmt.Errorf("%w: %w", core.ErrPersistenceFailed, err)
		}
	}

	o.mu.Lock()
	_, slow := o.fanout(m.Room, domain.OutMessage, msg, "")
	o.mu.Unlock()
	o.applyPolicy(slow)
	return nil
}

// Typing relays typing or stopTyping to everyone in the room but the sender.
func (o *Orchestrator) Typing(conn core.ConnID, kind domain.EventKind, p domain.Payload) error {
	event := domain.OutTyping
	if kind == domain.EventStopTyping {
		event = domain.OutStop
	}
	m, err := o.senderRoom(conn, p.ChatID)
	if err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(conn)).Str("event", event).Msg("typing dropped")
		return err
	}

	o.mu.Lock()
	_, slow := o.fanout(m.Room, event, domain.TypingSignal{UserID: m.User}, conn)
	o.mu.Unlock()
	o.applyPolicy(slow)
	return nil
}
