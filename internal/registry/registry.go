// Package registry holds the authoritative in-process state for
// connections, users, rooms and subscriber sets.
package registry

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
)

// Registry is guarded by a single mutex held for the duration of each
// operation, so every mutation appears atomic to observers. A concurrently
// running broadcast can never see a half-applied join or leave.
type Registry struct {
	mu          sync.Mutex
	users       map[core.SignalConn]*domain.User
	rooms       map[domain.RoomID]map[core.SignalConn]struct{}
	admins      map[core.SignalConn]struct{}
	overlays    map[core.SignalConn]struct{}
	publicRooms map[domain.RoomID]struct{}
}

func New() *Registry {
	return &Registry{
		users:       make(map[core.SignalConn]*domain.User),
		rooms:       make(map[domain.RoomID]map[core.SignalConn]struct{}),
		admins:      make(map[core.SignalConn]struct{}),
		overlays:    make(map[core.SignalConn]struct{}),
		publicRooms: make(map[domain.RoomID]struct{}),
	}
}

// JoinVoice upserts the user record for conn, adds conn to the room
// (creating it lazily) and returns the other current members as the
// roster for the joining client. A duplicate join overwrites the record;
// pairing it with a preceding leave is the caller's job.
func (r *Registry) JoinVoice(conn core.SignalConn, user domain.User) []domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinLocked(conn, user)
}

func (r *Registry) joinLocked(conn core.SignalConn, user domain.User) []domain.User {
	u := user
	r.users[conn] = &u
	members, ok := r.rooms[user.Room]
	if !ok {
		members = make(map[core.SignalConn]struct{})
		r.rooms[user.Room] = members
	}
	members[conn] = struct{}{}

	roster := make([]domain.User, 0, len(members)-1)
	for peer := range members {
		if peer == conn {
			continue
		}
		if pu, ok := r.users[peer]; ok {
			roster = append(roster, *pu)
		}
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })

	log.Info().Str("module", "registry").Str("user", string(user.ID)).Str("room", string(user.Room)).Msg("voice join")
	return roster
}

// Rejoin runs the leave/join pair of a room switch under one lock hold,
// so no concurrent snapshot or broadcast ever observes the user outside
// both rooms. Returns the previous user record when there was one.
func (r *Registry) Rejoin(conn core.SignalConn, user domain.User) (domain.User, bool, []domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, hadPrev := r.leaveLocked(conn)
	roster := r.joinLocked(conn, user)
	return prev, hadPrev, roster
}

// LeaveVoice removes conn from its room and deletes the user record.
// Empty rooms are deleted; the well-known rooms are recreated lazily on
// the next join, so deleting them here is harmless.
// No-ops silently when conn has no user (disconnect-triggered leave).
func (r *Registry) LeaveVoice(conn core.SignalConn) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(conn)
}

func (r *Registry) leaveLocked(conn core.SignalConn) (domain.User, bool) {
	u, ok := r.users[conn]
	if !ok {
		return domain.User{}, false
	}
	if members, ok := r.rooms[u.Room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.rooms, u.Room)
		}
	}
	delete(r.users, conn)
	log.Info().Str("module", "registry").Str("user", string(u.ID)).Str("room", string(u.Room)).Msg("voice leave")
	return *u, true
}

// FindUserConn resolves a user id to its connection by linear scan.
// When two connections registered the same id the first match wins; the
// relay deliberately does not de-duplicate (see DESIGN.md).
func (r *Registry) FindUserConn(id domain.UserID) (core.SignalConn, domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn, u := range r.users {
		if u.ID == id {
			return conn, *u, true
		}
	}
	return nil, domain.User{}, false
}

// UserOf returns a copy of the user record bound to conn.
func (r *Registry) UserOf(conn core.SignalConn) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[conn]; ok {
		return *u, true
	}
	return domain.User{}, false
}

// SetVoiceState mutates the user's mute flags in place. No-op without a user.
func (r *Registry) SetVoiceState(conn core.SignalConn, muted, deafened bool) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[conn]
	if !ok {
		return domain.User{}, false
	}
	u.Muted = muted
	u.Deafened = deafened
	return *u, true
}

func (r *Registry) AddAdmin(conn core.SignalConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins[conn] = struct{}{}
	log.Info().Str("module", "registry").Msg("admin subscribed")
}

func (r *Registry) AddOverlay(conn core.SignalConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlays[conn] = struct{}{}
	log.Info().Str("module", "registry").Msg("overlay subscribed")
}

func (r *Registry) IsAdmin(conn core.SignalConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.admins[conn]
	return ok
}

// RemoveOnDisconnect drops conn from the admin and overlay sets and runs a
// full voice leave if it had a user. Idempotent; safe to call on a
// connection that was already cleaned up.
func (r *Registry) RemoveOnDisconnect(conn core.SignalConn) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins, conn)
	delete(r.overlays, conn)
	return r.leaveLocked(conn)
}

// CreatePublicRoom claims a public_<slug> room id and adds it to the
// allow-list so it shows up in the admin view even while empty. Names
// that slugify to nothing are refused: the bare public_ id would
// collide for every symbol-only name.
func (r *Registry) CreatePublicRoom(name string) (domain.RoomID, bool) {
	slug := domain.Slugify(name)
	if slug == "" {
		log.Warn().Str("module", "registry").Str("name", name).Msg("room name slugifies to empty")
		return "", false
	}
	id := domain.RoomID(domain.PublicRoomPrefix + slug)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publicRooms[id] = struct{}{}
	log.Info().Str("module", "registry").Str("room", string(id)).Msg("public room created")
	return id, true
}

// MuteAll forces muted=true on every user and returns the affected
// connections with their updated records so the caller can notify them.
func (r *Registry) MuteAll() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, 0, len(r.users))
	for conn, u := range r.users {
		u.Muted = true
		out = append(out, Member{Conn: conn, User: *u})
	}
	log.Info().Str("module", "registry").Int("affected", len(out)).Msg("mute all")
	return out
}

// Migration reports one member moved by CloseRoomAndMigrate: the
// connection, its user record after the move, and the roster of the
// destination room as that member entered it.
type Migration struct {
	Conn   core.SignalConn
	User   domain.User
	Roster []domain.User
}

// CloseRoomAndMigrate deletes a room and moves every member to dest as
// a leave/join pair, all under one lock hold so a concurrent snapshot
// never sees a half-migrated room. Protected rooms are refused; the
// caller surfaces nothing back to the admin (known gap, kept from the
// source behavior).
func (r *Registry) CloseRoomAndMigrate(id, dest domain.RoomID) ([]Migration, bool) {
	if domain.IsProtectedRoom(id) {
		log.Warn().Str("module", "registry").Str("room", string(id)).Msg("refusing to close protected room")
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.publicRooms, id)

	conns := make([]core.SignalConn, 0, len(r.rooms[id]))
	for conn := range r.rooms[id] {
		conns = append(conns, conn)
	}
	out := make([]Migration, 0, len(conns))
	for _, conn := range conns {
		u, ok := r.leaveLocked(conn)
		if !ok {
			continue
		}
		u.Room = dest
		roster := r.joinLocked(conn, u)
		out = append(out, Migration{Conn: conn, User: u, Roster: roster})
	}
	log.Info().Str("module", "registry").Str("room", string(id)).Int("members", len(out)).Msg("room closed")
	return out, true
}

// Member pairs a connection handle with a copy of its user record.
type Member struct {
	Conn core.SignalConn
	User domain.User
}

// RoomPeers returns the connections in a room, minus the excluded one.
// Used for room broadcasts; exclude may be nil.
func (r *Registry) RoomPeers(id domain.RoomID, exclude core.SignalConn) []core.SignalConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.rooms[id]
	out := make([]core.SignalConn, 0, len(members))
	for conn := range members {
		if conn == exclude {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// VoiceConns returns every connection that currently has a user.
func (r *Registry) VoiceConns() []core.SignalConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.SignalConn, 0, len(r.users))
	for conn := range r.users {
		out = append(out, conn)
	}
	return out
}

func (r *Registry) Admins() []core.SignalConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return connSet(r.admins)
}

func (r *Registry) Overlays() []core.SignalConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return connSet(r.overlays)
}

func connSet(set map[core.SignalConn]struct{}) []core.SignalConn {
	out := make([]core.SignalConn, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

// RoomSnapshot is one room with copies of its members' user records.
type RoomSnapshot struct {
	ID      domain.RoomID
	Members []domain.User
}

// Snapshot is a consistent copy of rooms and users taken under the
// registry mutex. Presence views and the mesh writer derive from it
// outside the lock.
type Snapshot struct {
	Rooms []RoomSnapshot
	Users []domain.User
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make(map[domain.RoomID]struct{}, len(r.rooms)+len(r.publicRooms))
	for id := range r.rooms {
		ids[id] = struct{}{}
	}
	// Admin-created rooms stay visible while empty.
	for id := range r.publicRooms {
		ids[id] = struct{}{}
	}

	snap := Snapshot{Rooms: make([]RoomSnapshot, 0, len(ids))}
	for id := range ids {
		rs := RoomSnapshot{ID: id}
		for conn := range r.rooms[id] {
			if u, ok := r.users[conn]; ok {
				rs.Members = append(rs.Members, *u)
			}
		}
		sort.Slice(rs.Members, func(i, j int) bool { return rs.Members[i].ID < rs.Members[j].ID })
		snap.Rooms = append(snap.Rooms, rs)
	}
	sort.Slice(snap.Rooms, func(i, j int) bool { return snap.Rooms[i].ID < snap.Rooms[j].ID })

	snap.Users = make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		snap.Users = append(snap.Users, *u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	return snap
}
