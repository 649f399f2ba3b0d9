package presence

import (
	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/registry"
)

// Broadcaster pushes freshly built views to the subscriber sets. Sends
// never block; a closed or backed-up subscriber is skipped and self-heals
// on its disconnect cleanup.
type Broadcaster struct {
	reg *registry.Registry
}

func NewBroadcaster(reg *registry.Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

func (b *Broadcaster) RefreshAdmin() {
	b.push("admin_update", BuildAdminView(b.reg.Snapshot()), b.reg.Admins())
}

func (b *Broadcaster) RefreshOverlay() {
	b.push("overlay_update", BuildOverlayView(b.reg.Snapshot()), b.reg.Overlays())
}

func (b *Broadcaster) RefreshAll() {
	b.RefreshAdmin()
	b.RefreshOverlay()
}

// PushAdmin sends the current admin view to a single connection, used for
// the initial refresh right after admin_connect.
func (b *Broadcaster) PushAdmin(conn core.SignalConn) {
	b.push("admin_update", BuildAdminView(b.reg.Snapshot()), []core.SignalConn{conn})
}

// PushOverlay sends the current overlay view to a single connection.
func (b *Broadcaster) PushOverlay(conn core.SignalConn) {
	b.push("overlay_update", BuildOverlayView(b.reg.Snapshot()), []core.SignalConn{conn})
}

func (b *Broadcaster) push(msgType string, view any, conns []core.SignalConn) {
	if len(conns) == 0 {
		return
	}
	frame, err := core.Encode(msgType, view)
	if err != nil {
		log.Error().Err(err).Str("module", "presence").Str("type", msgType).Msg("encode view")
		return
	}
	for _, conn := range conns {
		if !conn.IsOpen() {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			log.Debug().Err(err).Str("module", "presence").Str("type", msgType).Msg("subscriber send skipped")
		}
	}
}
