// Package domain contains entity types without logic, just meta-data.
package domain

import "errors"

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 64
)

var (
	ErrUserIDEmpty = errors.New("user id empty")
)

type UserID string

// User is one voice participant. Exactly one User exists per connection
// that has joined voice; admin and overlay subscribers carry no User.
type User struct {
	ID       UserID `json:"userId"`
	Name     string `json:"userName"`
	Room     RoomID `json:"roomId"`
	Avatar   string `json:"avatar,omitempty"`
	Muted    bool   `json:"muted"`
	Deafened bool   `json:"deafened"`
}

// NewUser clamps oversized fields rather than rejecting them; the relay
// trusts client payloads and only guards its own memory.
func NewUser(id UserID, name string, room RoomID, avatar string) (User, error) {
	if id == "" {
		return User{}, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		id = id[:MaxUserIDLen]
	}
	if name == "" {
		name = "guest"
	}
	if len(name) > MaxUsernameLen {
		name = name[:MaxUsernameLen]
	}
	return User{ID: id, Name: name, Room: room, Avatar: avatar}, nil
}
