package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
)

type leftPayload struct {
	UserID domain.UserID `json:"userId"`
	RoomID domain.RoomID `json:"roomId"`
}

func (ctl *Controller) handleJoinVoice(conn core.SignalConn, payload []byte) {
	var p struct {
		UserID   domain.UserID `json:"userId"`
		UserName string        `json:"userName"`
		RoomID   domain.RoomID `json:"roomId"`
		Avatar   string        `json:"avatar"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_voice payload")
		return
	}
	if p.RoomID == "" {
		p.RoomID = domain.RoomLobby
	}

	user, err := domain.NewUser(p.UserID, p.UserName, p.RoomID, p.Avatar)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("invalid join_voice payload")
		return
	}

	// A re-join is a leave/join pair done in one registry operation, so
	// the connection never sits in two rooms at once and never vanishes
	// from presence views mid-switch.
	prev, hadPrev, roster := ctl.Registry.Rejoin(conn, user)
	if hadPrev {
		ctl.broadcastToRoom(prev.Room, conn, "user_left_voice", leftPayload{UserID: prev.ID, RoomID: prev.Room})
	}

	ctl.sendJSON(conn, "room_members", struct {
		RoomID  domain.RoomID `json:"roomId"`
		Members []domain.User `json:"members"`
	}{RoomID: user.Room, Members: roster})

	ctl.broadcastToRoom(user.Room, conn, "user_joined_voice", user)
	ctl.syncState(true)
}

func (ctl *Controller) handleLeaveVoice(conn core.SignalConn) {
	user, ok := ctl.Registry.LeaveVoice(conn)
	if !ok {
		return
	}
	ctl.broadcastToRoom(user.Room, conn, "user_left_voice", leftPayload{UserID: user.ID, RoomID: user.Room})
	ctl.syncState(true)
}

func (ctl *Controller) handleVoiceState(conn core.SignalConn, payload []byte) {
	var p struct {
		Muted    bool `json:"muted"`
		Deafened bool `json:"deafened"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad voice_state payload")
		return
	}
	user, ok := ctl.Registry.SetVoiceState(conn, p.Muted, p.Deafened)
	if !ok {
		log.Warn().Str("module", "signal").Msg("voice_state without a user")
		return
	}
	ctl.broadcastToRoom(user.Room, conn, "voice_state_changed", struct {
		UserID   domain.UserID `json:"userId"`
		Muted    bool          `json:"muted"`
		Deafened bool          `json:"deafened"`
	}{UserID: user.ID, Muted: user.Muted, Deafened: user.Deafened})
	ctl.syncState(false)
}
