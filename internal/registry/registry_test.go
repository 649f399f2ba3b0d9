package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
)

type fakeConn struct {
	name   string
	closed bool
}

func (f *fakeConn) TrySend(core.Frame) error { return nil }
func (f *fakeConn) Close()                   { f.closed = true }
func (f *fakeConn) IsOpen() bool             { return !f.closed }

func user(id, name string, room domain.RoomID) domain.User {
	return domain.User{ID: domain.UserID(id), Name: name, Room: room}
}

func TestJoinReturnsOtherMembers(t *testing.T) {
	r := New()
	a, b := &fakeConn{name: "a"}, &fakeConn{name: "b"}

	roster := r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))
	assert.Empty(t, roster)

	roster = r.JoinVoice(b, user("b1", "Bob", domain.RoomLobby))
	require.Len(t, roster, 1)
	assert.Equal(t, domain.UserID("a1"), roster[0].ID)
}

func TestJoinLeaveRoundTrip(t *testing.T) {
	r := New()
	a := &fakeConn{name: "a"}

	r.JoinVoice(a, user("a1", "Alice", "public_test"))
	left, ok := r.LeaveVoice(a)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("a1"), left.ID)

	snap := r.Snapshot()
	assert.Empty(t, snap.Users, "user record should be gone")
	assert.Empty(t, snap.Rooms, "room created solely for this join should be gone")
}

func TestLeaveWithoutUserIsSilent(t *testing.T) {
	r := New()
	_, ok := r.LeaveVoice(&fakeConn{})
	assert.False(t, ok)
}

func TestMembershipIsExclusiveAcrossRooms(t *testing.T) {
	r := New()
	a := &fakeConn{name: "a"}

	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))
	// Handlers pair leave/join on re-join; the registry keeps each pair
	// consistent.
	_, ok := r.LeaveVoice(a)
	require.True(t, ok)
	r.JoinVoice(a, user("a1", "Alice", domain.RoomMod))

	snap := r.Snapshot()
	seen := 0
	for _, room := range snap.Rooms {
		for _, m := range room.Members {
			if m.ID == "a1" {
				seen++
				assert.Equal(t, domain.RoomMod, room.ID)
			}
		}
	}
	assert.Equal(t, 1, seen, "connection must be in exactly one room")
}

func TestDisconnectImpliesLeave(t *testing.T) {
	r := New()
	a := &fakeConn{name: "a"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))
	r.AddAdmin(a)
	r.AddOverlay(a)

	u, had := r.RemoveOnDisconnect(a)
	require.True(t, had)
	assert.Equal(t, domain.UserID("a1"), u.ID)

	snap := r.Snapshot()
	assert.Empty(t, snap.Users)
	assert.Empty(t, snap.Rooms)
	assert.Empty(t, r.Admins())
	assert.Empty(t, r.Overlays())

	// Second cleanup is a no-op.
	_, had = r.RemoveOnDisconnect(a)
	assert.False(t, had)
}

func TestFindUserConn(t *testing.T) {
	r := New()
	a, b := &fakeConn{name: "a"}, &fakeConn{name: "b"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))
	r.JoinVoice(b, user("b1", "Bob", domain.RoomLobby))

	conn, u, ok := r.FindUserConn("b1")
	require.True(t, ok)
	assert.Same(t, b, conn)
	assert.Equal(t, "Bob", u.Name)

	_, _, ok = r.FindUserConn("nobody")
	assert.False(t, ok)
}

func TestFindUserConnDuplicateIDReturnsOneMatch(t *testing.T) {
	// Two connections may register the same userId; the scan returns the
	// first match rather than de-duplicating.
	r := New()
	a, b := &fakeConn{name: "a"}, &fakeConn{name: "b"}
	r.JoinVoice(a, user("dup", "First", domain.RoomLobby))
	r.JoinVoice(b, user("dup", "Second", domain.RoomMod))

	conn, u, ok := r.FindUserConn("dup")
	require.True(t, ok)
	assert.Equal(t, domain.UserID("dup"), u.ID)
	assert.Contains(t, []core.SignalConn{a, b}, conn)
}

func TestSetVoiceState(t *testing.T) {
	r := New()
	a := &fakeConn{name: "a"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))

	u, ok := r.SetVoiceState(a, true, true)
	require.True(t, ok)
	assert.True(t, u.Muted)
	assert.True(t, u.Deafened)

	_, ok = r.SetVoiceState(&fakeConn{}, true, false)
	assert.False(t, ok)
}

func TestMuteAll(t *testing.T) {
	r := New()
	a, b := &fakeConn{name: "a"}, &fakeConn{name: "b"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))
	r.JoinVoice(b, user("b1", "Bob", domain.RoomMod))

	affected := r.MuteAll()
	assert.Len(t, affected, 2)
	for _, m := range affected {
		assert.True(t, m.User.Muted)
	}
	for _, u := range r.Snapshot().Users {
		assert.True(t, u.Muted)
	}
}

func TestRejoinMovesUserInOneStep(t *testing.T) {
	r := New()
	a, b := &fakeConn{name: "a"}, &fakeConn{name: "b"}
	r.JoinVoice(b, user("b1", "Bob", domain.RoomMod))

	prev, hadPrev, roster := r.Rejoin(a, user("a1", "Alice", domain.RoomLobby))
	assert.False(t, hadPrev, "first join has no previous room")
	assert.Empty(t, roster)

	prev, hadPrev, roster = r.Rejoin(a, user("a1", "Alice", domain.RoomMod))
	require.True(t, hadPrev)
	assert.Equal(t, domain.RoomLobby, prev.Room)
	require.Len(t, roster, 1)
	assert.Equal(t, domain.UserID("b1"), roster[0].ID)

	snap := r.Snapshot()
	require.Len(t, snap.Rooms, 1)
	assert.Equal(t, domain.RoomMod, snap.Rooms[0].ID)
	assert.Len(t, snap.Rooms[0].Members, 2)
}

func TestRejoinIsAtomicUnderConcurrentSnapshots(t *testing.T) {
	// A room switch must never be observable as "user in no room" or
	// "user in two rooms": the leave/join pair runs under one lock hold.
	r := New()
	a := &fakeConn{name: "a"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))

	done := make(chan struct{})
	go func() {
		defer close(done)
		rooms := []domain.RoomID{domain.RoomMod, domain.RoomLobby}
		for i := 0; i < 500; i++ {
			r.Rejoin(a, user("a1", "Alice", rooms[i%2]))
		}
	}()

	for alive := true; alive; {
		select {
		case <-done:
			alive = false
		default:
		}
		snap := r.Snapshot()
		require.Len(t, snap.Users, 1, "user must never vanish mid-switch")
		seen := 0
		for _, room := range snap.Rooms {
			for _, m := range room.Members {
				if m.ID == "a1" {
					seen++
				}
			}
		}
		require.Equal(t, 1, seen, "user must be in exactly one room")
	}
}

func TestCloseRoomRefusesProtected(t *testing.T) {
	r := New()
	a := &fakeConn{name: "a"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))

	_, ok := r.CloseRoomAndMigrate(domain.RoomLobby, domain.RoomLobby)
	assert.False(t, ok)

	snap := r.Snapshot()
	require.Len(t, snap.Rooms, 1)
	assert.Len(t, snap.Rooms[0].Members, 1, "member set must be unchanged")
}

func TestCloseRoomMigratesMembers(t *testing.T) {
	r := New()
	a, b, c := &fakeConn{name: "a"}, &fakeConn{name: "b"}, &fakeConn{name: "c"}
	id, ok := r.CreatePublicRoom("Late Night")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("public_late_night"), id)

	r.JoinVoice(a, user("a1", "Alice", id))
	r.JoinVoice(b, user("b1", "Bob", id))
	r.JoinVoice(c, user("c1", "Cleo", domain.RoomLobby))

	migrations, ok := r.CloseRoomAndMigrate(id, domain.RoomLobby)
	require.True(t, ok)
	require.Len(t, migrations, 2)
	for _, m := range migrations {
		assert.Equal(t, domain.RoomLobby, m.User.Room)
		// Each roster includes the lobby occupant plus whoever migrated
		// before this member.
		assert.NotEmpty(t, m.Roster)
	}

	snap := r.Snapshot()
	require.Len(t, snap.Rooms, 1, "closed room must not linger in snapshots")
	assert.Equal(t, domain.RoomLobby, snap.Rooms[0].ID)
	assert.Len(t, snap.Rooms[0].Members, 3)
}

func TestCloseEmptyPublicRoomDropsAllowList(t *testing.T) {
	r := New()
	id, ok := r.CreatePublicRoom("Chill Zone")
	require.True(t, ok)

	migrations, ok := r.CloseRoomAndMigrate(id, domain.RoomLobby)
	require.True(t, ok)
	assert.Empty(t, migrations)
	assert.Empty(t, r.Snapshot().Rooms)
}

func TestPublicRoomVisibleWhileEmpty(t *testing.T) {
	r := New()
	id, ok := r.CreatePublicRoom("Chill Zone")
	require.True(t, ok)

	snap := r.Snapshot()
	require.Len(t, snap.Rooms, 1)
	assert.Equal(t, id, snap.Rooms[0].ID)
	assert.Empty(t, snap.Rooms[0].Members)
}

func TestCreatePublicRoomRejectsEmptySlug(t *testing.T) {
	r := New()
	for _, name := range []string{"!!!", "???", "  ", "---"} {
		id, ok := r.CreatePublicRoom(name)
		assert.False(t, ok, "name %q must be refused", name)
		assert.Empty(t, id)
	}
	assert.Empty(t, r.Snapshot().Rooms, "no bare public_ room may appear")
}

func TestRoomPeersExcludes(t *testing.T) {
	r := New()
	a, b, c := &fakeConn{name: "a"}, &fakeConn{name: "b"}, &fakeConn{name: "c"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))
	r.JoinVoice(b, user("b1", "Bob", domain.RoomLobby))
	r.JoinVoice(c, user("c1", "Cleo", domain.RoomMod))

	peers := r.RoomPeers(domain.RoomLobby, a)
	require.Len(t, peers, 1)
	assert.Same(t, b, peers[0])
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	a := &fakeConn{name: "a"}
	r.JoinVoice(a, user("a1", "Alice", domain.RoomLobby))

	snap := r.Snapshot()
	snap.Users[0].Muted = true

	u, _ := r.UserOf(a)
	assert.False(t, u.Muted, "mutating a snapshot must not touch registry state")
}
