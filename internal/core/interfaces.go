package core

import (
	"context"

	"github.com/dkeye/Chat/internal/domain"
)

// ConnID identifies one live transport connection. Assigned by the transport.
type ConnID string

// Transport abstracts the bidirectional messaging layer.
// Owned by the adapter; the core never closes connections directly, it asks Close.
type Transport interface {
	// Emit queues payload for conn. It must not block: a full queue
	// returns ErrBackpressure, a gone connection ErrConnClosed.
	Emit(conn ConnID, event string, payload any) error
	// Broadcast queues one payload for every conn, encoding it once.
	// Failures are reported per conn with the same errors as Emit.
	Broadcast(conns []ConnID, event string, payload any) map[ConnID]error
	// Subscribe and Unsubscribe mirror membership at transport level.
	// Logical membership lives in the room index.
	Subscribe(conn ConnID, room domain.RoomID)
	Unsubscribe(conn ConnID, room domain.RoomID)
	Close(conn ConnID)
}

// MembershipValidator answers whether user may enter room.
// A nil error with accepted=false is a rejection; reason may be empty.
type MembershipValidator interface {
	Validate(ctx context.Context, user domain.UserID, room domain.RoomID) (accepted bool, reason string, err error)
}

// MessagePersister stores a message before it is relayed.
type MessagePersister interface {
	Save(ctx context.Context, msg domain.ChatMessage) error
}
