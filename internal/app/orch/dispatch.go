package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")

	validate = validator.New(validator.WithRequiredStructEnabled())
)

const invalidPayload = "Invalid payload."

// checkPayload only requires the routing ids. Message content is relayed
// as sent; the transport read limit bounds its size.
func checkPayload(p domain.Payload) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// Handle is the single entry point for inbound events. Calls for one
// connection must be made in arrival order; calls for different
// connections may run concurrently.
func (o *Orchestrator) Handle(ctx context.Context, conn core.ConnID, ev domain.Event) error {
	if ev.Kind == domain.EventDisconnect {
		o.Disconnect(conn)
		return nil
	}

	if err := checkPayload(ev.Payload); err != nil {
		if ev.Kind == domain.EventEnterRoom || ev.Kind == domain.EventMessage {
			o.unicast(conn, domain.OutError, domain.ErrorNotice{Text: invalidPayload})
		}
		return err
	}

	switch ev.Kind {
	case domain.EventEnterRoom:
		user, err := domain.NewUserID(ev.Payload.UserID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		room, err := domain.NewRoomID(ev.Payload.ChatID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return o.Join(ctx, conn, user, room)
	case domain.EventMessage:
		return o.Message(ctx, conn, ev.Payload)
	case domain.EventTyping, domain.EventStopTyping:
		return o.Typing(conn, ev.Kind, ev.Payload)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownEvent, ev.Kind)
	}
}
