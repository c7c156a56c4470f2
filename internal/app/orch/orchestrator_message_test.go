package orch

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMessage_RoomMismatch_Dropped(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r2")
	ft.reset()

	// When A claims a room it is not registered in
	err := o.Message(context.Background(), "A", domain.Payload{UserID: "u1", ChatID: "r2", Text: "spoof"})

	// Then nothing is delivered and no error reaches the client
	req.ErrorIs(err, core.ErrRoomMismatch)
	req.Zero(ft.count())
}

func TestMessage_NotJoined_Dropped(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)

	// When A sends before joining
	err := o.Message(context.Background(), "A", domain.Payload{UserID: "u1", ChatID: "r1", Text: "hi"})

	// Then it is dropped silently
	req.ErrorIs(err, core.ErrNotJoined)
	req.Zero(ft.count())
}

func TestMessage_FileMessage_Relayed(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	join(t, o, "A", "u1", "r1")
	ft.reset()

	// When A sends a file with no text
	p := domain.Payload{UserID: "u1", ChatID: "r1", FileURL: "https://cdn.example/x.png", FileType: "image/png"}
	req.NoError(o.Message(context.Background(), "A", p))

	// Then the sender gets it back unchanged
	msgs := ft.to("A", domain.OutMessage)
	req.Len(msgs, 1)
	req.Equal(domain.NewChatMessage(p), msgs[0].payload)
}

func TestMessage_Persisted_ThenRelayed(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	p := new(mockPersister)
	o.Persister = p
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r1")
	ft.reset()

	want := domain.ChatMessage{UserID: "u1", ChatID: "r1", Text: "hi"}
	// Given a persister that accepts the message
	p.On("Save", mock.Anything, want).Return(nil).Once()

	req.NoError(o.Message(context.Background(), "A", domain.Payload{UserID: "u1", ChatID: "r1", Text: "hi"}))

	// Then it is stored and relayed to the whole room
	p.AssertExpectations(t)
	req.Len(ft.to("A", domain.OutMessage), 1)
	req.Len(ft.to("B", domain.OutMessage), 1)
}

func TestMessage_PersistFailure_OnlySenderHears(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	p := new(mockPersister)
	o.Persister = p
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r1")
	ft.reset()

	// Given a persister that fails
	p.On("Save", mock.Anything, mock.Anything).Return(errors.New("status 500")).Once()

	err := o.Message(context.Background(), "A", domain.Payload{UserID: "u1", ChatID: "r1", Text: "hi"})

	// Then only the sender hears about it and nothing is relayed
	req.ErrorIs(err, core.ErrPersistenceFailed)
	errs := ft.to("A", domain.OutError)
	req.Len(errs, 1)
	req.Equal(domain.ErrorNotice{Text: failedToSend}, errs[0].payload)
	req.Empty(ft.to("A", domain.OutMessage))
	req.Empty(ft.to("B", ""))
}

func TestTyping_NotEchoedToSender(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r1")
	join(t, o, "C", "u3", "r1")
	join(t, o, "D", "u4", "r2")
	ft.reset()

	// When A starts and stops typing in r1
	for _, kind := range []domain.EventKind{domain.EventTyping, domain.EventStopTyping} {
		req.NoError(o.Typing("A", kind, domain.Payload{UserID: "u1", ChatID: "r1"}))
	}

	// Then only the other members of r1 see it
	req.Empty(ft.to("A", ""))
	req.Empty(ft.to("D", ""))
	for _, c := range []core.ConnID{"B", "C"} {
		typing := ft.to(c, domain.OutTyping)
		req.Len(typing, 1)
		req.Equal(domain.TypingSignal{UserID: "u1"}, typing[0].payload)
		req.Len(ft.to(c, domain.OutStop), 1)
	}
}

func TestTyping_RoomMismatch_Dropped(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r2")
	ft.reset()

	// When A signals typing into a room it is not in
	err := o.Typing("A", domain.EventTyping, domain.Payload{UserID: "u1", ChatID: "r2"})

	req.ErrorIs(err, core.ErrRoomMismatch)
	req.Zero(ft.count())
}

func TestBroadcast_Backpressure_KicksSlowMember(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r1")
	ft.reset()

	// Given B cannot keep up
	ft.full["B"] = true

	// When A sends to the room
	req.NoError(o.Message(context.Background(), "A", domain.Payload{UserID: "u1", ChatID: "r1", Text: "hi"}))

	// Then A still gets the message and B is closed once
	req.Len(ft.to("A", domain.OutMessage), 1)
	req.Equal([]core.ConnID{"B"}, ft.closed)
}

func TestBroadcast_Backpressure_DropPolicyKeepsMember(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	o.Policy = app.DropPolicy{}
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r1")
	// Given B cannot keep up under the drop policy
	ft.full["B"] = true

	// When a broadcast reaches r1
	sent := o.BroadcastToRoom("r1", domain.OutMessage, domain.ChatMessage{Text: "x"}, "")

	// Then B loses the frame but keeps its connection
	req.Equal(1, sent)
	req.Empty(ft.closed)
}

func TestBroadcastToRoom_Exclude(t *testing.T) {
	req := require.New(t)
	o, ft := newTestOrchestrator(nil)
	join(t, o, "A", "u1", "r1")
	join(t, o, "B", "u2", "r1")
	ft.reset()

	req.Equal(1, o.BroadcastToRoom("r1", domain.OutTyping, domain.TypingSignal{UserID: "u1"}, "A"))
	req.Equal(0, o.BroadcastToRoom("unknown", domain.OutTyping, domain.TypingSignal{UserID: "u1"}, ""))
	req.Empty(ft.to("A", ""))
	req.Len(ft.to("B", ""), 1)
}
