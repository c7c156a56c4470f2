package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownEvent = errors.New("unknown event")

// EventKind is the closed set of inbound events a connection can produce.
type EventKind uint8

const (
	EventEnterRoom EventKind = iota + 1
	EventMessage
	EventTyping
	EventStopTyping
	EventDisconnect
)

var eventNames = map[EventKind]string{
	EventEnterRoom:  "enterRoom",
	EventMessage:    "message",
	EventTyping:     "typing",
	EventStopTyping: "stopTyping",
	EventDisconnect: "disconnect",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

func ParseEventKind(name string) (EventKind, error) {
	for k, n := range eventNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// Payload is the body shared by all inbound events. Which fields matter
// depends on the kind.
type Payload struct {
	UserID   string `json:"user_id" validate:"required"`
	ChatID   string `json:"chat_id" validate:"required"`
	Text     string `json:"text,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileType string `json:"file_type,omitempty"`
}

type Event struct {
	Kind    EventKind
	Payload Payload
}

// Outbound event names.
const (
	OutJoinLeft = "join_leftChat"
	OutUserList = "userList"
	OutMessage  = "message"
	OutTyping   = "typing"
	OutStop     = "stopTyping"
	OutError    = "errorMessage"
)

// NoticeTimeLayout matches what chat clients print next to join/leave notices.
const NoticeTimeLayout = "3:04:05 PM"

type Notice struct {
	UserID UserID `json:"user_id"`
	Text   string `json:"text"`
	Time   string `json:"time"`
}

func NewNotice(user UserID, text string, at time.Time) Notice {
	return Notice{UserID: user, Text: text, Time: at.Format(NoticeTimeLayout)}
}

func JoinedText(room RoomID) string { return fmt.Sprintf("joined chat %s.", room) }
func SwitchedText(room RoomID) string { return fmt.Sprintf("left chat %s.", room) }

const LeftText = "left the chat."

type UserList struct {
	Users []UserID `json:"users"`
}

type ChatMessage struct {
	UserID   string `json:"user_id"`
	ChatID   string `json:"chat_id"`
	Text     string `json:"text"`
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}

func NewChatMessage(p Payload) ChatMessage {
	return ChatMessage{
		UserID:   p.UserID,
		ChatID:   p.ChatID,
		Text:     p.Text,
		FileURL:  p.FileURL,
		FileType: p.FileType,
	}
}

type TypingSignal struct {
	UserID UserID `json:"user_id"`
}

type ErrorNotice struct {
	Text string `json:"text"`
}
