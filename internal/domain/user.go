// Package domain contains entity without logic, just meta-data
package domain

import "errors"

var ErrUserIDEmpty = errors.New("user id empty")

// UserID is supplied by the client on join and is not authenticated here.
type UserID string

func NewUserID(raw string) (UserID, error) {
	if len(raw) == 0 {
		return "", ErrUserIDEmpty
	}
	return UserID(raw), nil
}
