// Package presence derives the admin and overlay views from a registry
// snapshot and pushes them to subscribed connections.
package presence

import (
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/registry"
)

type AdminUser struct {
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
	Muted    bool          `json:"muted"`
	Deafened bool          `json:"deafened"`
}

type AdminRoom struct {
	ID          domain.RoomID `json:"id"`
	DisplayName string        `json:"displayName"`
	UserCount   int           `json:"userCount"`
	Users       []AdminUser   `json:"users"`
}

type AdminView struct {
	Rooms      []AdminRoom `json:"rooms"`
	TotalUsers int         `json:"totalUsers"`
}

type OverlayUser struct {
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
	RoomID   domain.RoomID `json:"roomId"`
	Muted    bool          `json:"muted"`
	Deafened bool          `json:"deafened"`
}

type OverlayView struct {
	VoiceUsers []OverlayUser `json:"voiceUsers"`
}

// BuildAdminView rebuilds the per-room roster view in full. Views are
// cheap at this scale and a full rebuild cannot drift from the registry.
func BuildAdminView(snap registry.Snapshot) AdminView {
	view := AdminView{Rooms: make([]AdminRoom, 0, len(snap.Rooms)), TotalUsers: len(snap.Users)}
	for _, room := range snap.Rooms {
		ar := AdminRoom{
			ID:          room.ID,
			DisplayName: domain.Humanize(room.ID),
			UserCount:   len(room.Members),
			Users:       make([]AdminUser, 0, len(room.Members)),
		}
		for _, u := range room.Members {
			ar.Users = append(ar.Users, AdminUser{UserID: u.ID, UserName: u.Name, Muted: u.Muted, Deafened: u.Deafened})
		}
		view.Rooms = append(view.Rooms, ar)
	}
	return view
}

// BuildOverlayView rebuilds the flat voice-connected user list.
func BuildOverlayView(snap registry.Snapshot) OverlayView {
	view := OverlayView{VoiceUsers: make([]OverlayUser, 0, len(snap.Users))}
	for _, u := range snap.Users {
		view.VoiceUsers = append(view.VoiceUsers, OverlayUser{
			UserID:   u.ID,
			UserName: u.Name,
			RoomID:   u.Room,
			Muted:    u.Muted,
			Deafened: u.Deafened,
		})
	}
	return view
}
