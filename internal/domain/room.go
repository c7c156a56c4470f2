package domain

import "errors"

var ErrRoomIDEmpty = errors.New("room id empty")

// RoomID is the chat_id of a room, opaque to the relay. Rooms exist only while they have members.
type RoomID string

func NewRoomID(raw string) (RoomID, error) {
	if len(raw) == 0 {
		return "", ErrRoomIDEmpty
	}
	return RoomID(raw), nil
}

type RoomInfo struct {
	ID          RoomID `json:"chat_id"`
	MemberCount int    `json:"member_count"`
}
