package domain

import "strings"

type RoomID string

// Well-known rooms. They are always creatable and exempt from the admin
// close operation.
const (
	RoomLobby       RoomID = "lobby"
	RoomMod         RoomID = "mod_room"
	RoomSilentWatch RoomID = "silent_watch"
	RoomOnStream    RoomID = "on_stream"
)

// PublicRoomPrefix marks admin-created rooms in the room id namespace.
const PublicRoomPrefix = "public_"

func IsProtectedRoom(id RoomID) bool {
	switch id {
	case RoomLobby, RoomMod, RoomSilentWatch, RoomOnStream:
		return true
	}
	return false
}

// Humanize turns a room id into a display name: underscores become spaces
// and the first letter is upper-cased. The id itself is never mutated.
func Humanize(id RoomID) string {
	s := strings.ReplaceAll(string(id), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Slugify lowers a display name into a room id fragment: runs of
// non-alphanumeric characters collapse into single underscores.
func Slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
