package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
)

// The relay never opens a PeerConnection: offers, answers and candidates
// are decoded into their pion types only to validate the frame, then
// forwarded to the target connection with the sender's identity attached.

type offerPayload struct {
	TargetUserID domain.UserID             `json:"targetUserId"`
	Offer        webrtc.SessionDescription `json:"offer"`
}

type answerPayload struct {
	TargetUserID domain.UserID             `json:"targetUserId"`
	Answer       webrtc.SessionDescription `json:"answer"`
}

type icePayload struct {
	TargetUserID domain.UserID           `json:"targetUserId"`
	Candidate    webrtc.ICECandidateInit `json:"candidate"`
}

func (ctl *Controller) handleWebRTC(conn core.SignalConn, msgType string, payload []byte) {
	sender, ok := ctl.Registry.UserOf(conn)
	if !ok {
		log.Warn().Str("module", "signal").Str("type", msgType).Msg("signaling from a connection without a user")
		return
	}

	var target domain.UserID
	var forward any

	switch msgType {
	case "webrtc_offer":
		var p offerPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad webrtc_offer payload")
			return
		}
		target = p.TargetUserID
		forward = struct {
			SourceUserID   domain.UserID             `json:"sourceUserId"`
			SourceUserName string                    `json:"sourceUserName"`
			Offer          webrtc.SessionDescription `json:"offer"`
		}{sender.ID, sender.Name, p.Offer}
	case "webrtc_answer":
		var p answerPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad webrtc_answer payload")
			return
		}
		target = p.TargetUserID
		forward = struct {
			SourceUserID   domain.UserID             `json:"sourceUserId"`
			SourceUserName string                    `json:"sourceUserName"`
			Answer         webrtc.SessionDescription `json:"answer"`
		}{sender.ID, sender.Name, p.Answer}
	case "webrtc_ice":
		var p icePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad webrtc_ice payload")
			return
		}
		target = p.TargetUserID
		forward = struct {
			SourceUserID   domain.UserID           `json:"sourceUserId"`
			SourceUserName string                  `json:"sourceUserName"`
			Candidate      webrtc.ICECandidateInit `json:"candidate"`
		}{sender.ID, sender.Name, p.Candidate}
	}

	targetConn, _, found := ctl.Registry.FindUserConn(target)
	if !found {
		// Target may have disconnected mid-negotiation; the sender times
		// out on its own.
		log.Debug().Str("module", "signal").Str("type", msgType).Str("target", string(target)).Msg("forward target gone")
		ctl.countForward(msgType, "dropped")
		return
	}
	ctl.sendJSON(targetConn, msgType, forward)
	ctl.countForward(msgType, "forwarded")
}

func (ctl *Controller) countForward(msgType, outcome string) {
	if ctl.Metrics != nil {
		ctl.Metrics.SignalsForwarded.WithLabelValues(msgType, outcome).Inc()
	}
}
