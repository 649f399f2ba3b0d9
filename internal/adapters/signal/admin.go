package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
)

func (ctl *Controller) handleAdminConnect(conn core.SignalConn) {
	ctl.Registry.AddAdmin(conn)
	ctl.Presence.PushAdmin(conn)
}

func (ctl *Controller) handleOverlayConnect(conn core.SignalConn) {
	ctl.Registry.AddOverlay(conn)
	ctl.Presence.PushOverlay(conn)
}

// requireAdmin enforces that the sender subscribed via admin_connect.
// This is membership, not authentication: the relay trusts whoever can
// reach the socket (deliberate trust boundary).
func (ctl *Controller) requireAdmin(conn core.SignalConn, op string) bool {
	if ctl.Registry.IsAdmin(conn) {
		return true
	}
	log.Warn().Str("module", "signal").Str("op", op).Msg("admin op from non-admin connection")
	return false
}

func (ctl *Controller) handleAdminCreateRoom(conn core.SignalConn, payload []byte) {
	if !ctl.requireAdmin(conn, "admin_create_room") {
		return
	}
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Name == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad admin_create_room payload")
		return
	}
	id, ok := ctl.Registry.CreatePublicRoom(p.Name)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("room", string(id)).Msg("admin created room")
	ctl.syncState(true)
}

func (ctl *Controller) handleAdminBroadcast(conn core.SignalConn, payload []byte) {
	if !ctl.requireAdmin(conn, "admin_broadcast") {
		return
	}
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad admin_broadcast payload")
		return
	}
	frame, err := core.Encode("admin_broadcast", p)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode admin_broadcast")
		return
	}
	for _, target := range ctl.Registry.VoiceConns() {
		if !target.IsOpen() {
			continue
		}
		_ = target.TrySend(frame)
	}
}

func (ctl *Controller) handleAdminMuteAll(conn core.SignalConn) {
	if !ctl.requireAdmin(conn, "admin_mute_all") {
		return
	}
	for _, member := range ctl.Registry.MuteAll() {
		ctl.sendJSON(member.Conn, "admin_mute_toggle", struct {
			Muted bool `json:"muted"`
		}{Muted: true})
	}
	ctl.syncState(false)
}

func (ctl *Controller) handleAdminKick(conn core.SignalConn, payload []byte) {
	if !ctl.requireAdmin(conn, "admin_kick_user") {
		return
	}
	var p struct {
		UserID domain.UserID `json:"userId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad admin_kick_user payload")
		return
	}
	target, user, found := ctl.Registry.FindUserConn(p.UserID)
	if !found {
		log.Debug().Str("module", "signal").Str("user", string(p.UserID)).Msg("kick target gone")
		return
	}
	ctl.sendJSON(target, "admin_kicked", struct{}{})
	log.Info().Str("module", "signal").Str("user", string(user.ID)).Msg("admin kicked user")
	// Closing the socket runs the normal disconnect cleanup via its read
	// pump. This is the only place the server closes a connection.
	target.Close()
}

func (ctl *Controller) handleAdminCloseRoom(conn core.SignalConn, payload []byte) {
	if !ctl.requireAdmin(conn, "admin_close_room") {
		return
	}
	var p struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad admin_close_room payload")
		return
	}

	// The whole migration happens inside one registry operation; only
	// the notifications go out afterwards.
	migrations, ok := ctl.Registry.CloseRoomAndMigrate(p.RoomID, domain.RoomLobby)
	if !ok {
		// Protected room: silent no-op toward the admin, kept from the
		// source behavior.
		return
	}

	closed := struct {
		RoomID domain.RoomID `json:"roomId"`
	}{RoomID: p.RoomID}

	for _, m := range migrations {
		ctl.sendJSON(m.Conn, "room_closed", closed)
		ctl.sendJSON(m.Conn, "room_members", struct {
			RoomID  domain.RoomID `json:"roomId"`
			Members []domain.User `json:"members"`
		}{RoomID: domain.RoomLobby, Members: m.Roster})
		ctl.broadcastToRoom(domain.RoomLobby, m.Conn, "user_joined_voice", m.User)
	}
	ctl.syncState(true)
}
