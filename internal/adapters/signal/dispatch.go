package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
)

// HandleMessage parses one inbound frame and dispatches it. A panic in a
// handler is contained here: one bad message must never take down the
// process or unrelated connections.
func (ctl *Controller) HandleMessage(conn core.SignalConn, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("module", "signal").Msg("handler panic recovered")
		}
	}()

	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}
	if ctl.Metrics != nil {
		ctl.Metrics.MessagesTotal.WithLabelValues(env.Type).Inc()
	}

	switch env.Type {
	case "join_voice":
		ctl.handleJoinVoice(conn, env.Payload)
	case "leave_voice":
		ctl.handleLeaveVoice(conn)
	case "voice_state":
		ctl.handleVoiceState(conn, env.Payload)
	case "webrtc_offer", "webrtc_answer", "webrtc_ice":
		ctl.handleWebRTC(conn, env.Type, env.Payload)
	case "admin_connect":
		ctl.handleAdminConnect(conn)
	case "overlay_connect":
		ctl.handleOverlayConnect(conn)
	case "admin_create_room":
		ctl.handleAdminCreateRoom(conn, env.Payload)
	case "admin_broadcast":
		ctl.handleAdminBroadcast(conn, env.Payload)
	case "admin_mute_all":
		ctl.handleAdminMuteAll(conn)
	case "admin_kick_user":
		ctl.handleAdminKick(conn, env.Payload)
	case "admin_close_room":
		ctl.handleAdminCloseRoom(conn, env.Payload)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(conn core.SignalConn, msgType string, payload any) {
	frame, err := core.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", msgType).Msg("encode frame")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("type", msgType).Msg("send skipped")
	}
}

// broadcastToRoom delivers to every open member of the room except the
// excluded connection (which may be nil).
func (ctl *Controller) broadcastToRoom(room domain.RoomID, exclude core.SignalConn, msgType string, payload any) {
	peers := ctl.Registry.RoomPeers(room, exclude)
	if len(peers) == 0 {
		return
	}
	frame, err := core.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", msgType).Msg("encode broadcast")
		return
	}
	for _, peer := range peers {
		if !peer.IsOpen() {
			continue
		}
		if err := peer.TrySend(frame); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("type", msgType).Msg("broadcast send skipped")
		}
	}
}
