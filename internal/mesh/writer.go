// Package mesh persists the shared mesh_state.json snapshot that other
// dashboard processes read from disk.
package mesh

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/domain"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/registry"
	"github.com/Mtman1987/streamweaver-v2-sub001/pkg/metrics"
)

// sourceVoice marks the user entries this writer owns inside the shared
// file. Entries with any other source belong to other producers and must
// survive a rewrite untouched.
const sourceVoice = "voice"

type meshRoom struct {
	Name string `json:"name"`
}

type meshUser struct {
	Name           string   `json:"name"`
	Room           string   `json:"room"`
	Avatar         string   `json:"avatar,omitempty"`
	Source         string   `json:"source"`
	Stars          int      `json:"stars"`
	Roles          []string `json:"roles"`
	VoiceConnected bool     `json:"voiceConnected"`
	Muted          bool     `json:"muted"`
	Deafened       bool     `json:"deafened"`
}

// Writer performs read-merge-write cycles on the snapshot file. The file
// is jointly owned with other producers, so the writer only replaces the
// entries it marked as voice-sourced and preserves everything else.
// Callers must snapshot registry state first; Write itself does file I/O
// and must not run under the registry mutex.
type Writer struct {
	mu      sync.Mutex
	path    string
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewWriter(path string, m *metrics.Metrics) *Writer {
	return &Writer{path: path, metrics: m, now: time.Now}
}

// Write merges the given snapshot into the file. Failures are logged and
// swallowed: in-memory state is authoritative and the next write starts
// over from whatever is on disk.
func (w *Writer) Write(snap registry.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc := w.readExisting()

	rooms, _ := doc["rooms"].(map[string]any)
	if rooms == nil {
		rooms = make(map[string]any)
	}
	for _, room := range snap.Rooms {
		rooms[string(room.ID)] = meshRoom{Name: domain.Humanize(room.ID)}
	}
	doc["rooms"] = rooms

	users, _ := doc["users"].(map[string]any)
	if users == nil {
		users = make(map[string]any)
	}
	for id, entry := range users {
		if m, ok := entry.(map[string]any); ok {
			if src, _ := m["source"].(string); src == sourceVoice {
				delete(users, id)
			}
		}
	}
	for _, u := range snap.Users {
		users[string(u.ID)] = meshUser{
			Name:           u.Name,
			Room:           string(u.Room),
			Avatar:         u.Avatar,
			Source:         sourceVoice,
			Stars:          0,
			Roles:          []string{"Voice User"},
			VoiceConnected: true,
			Muted:          u.Muted,
			Deafened:       u.Deafened,
		}
	}
	doc["users"] = users
	doc["timestamp"] = w.now().UnixMilli()

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Error().Err(err).Str("module", "mesh").Msg("marshal snapshot")
		w.count("error")
		return
	}
	if err := os.WriteFile(w.path, out, 0o644); err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("path", w.path).Msg("write snapshot")
		w.count("error")
		return
	}
	w.count("ok")
}

// readExisting loads the current file, falling back to an empty document
// on absence or corrupt JSON. Corruption must never crash the writer.
func (w *Writer) readExisting() map[string]any {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("module", "mesh").Str("path", w.path).Msg("read snapshot")
		}
		return make(map[string]any)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("path", w.path).Msg("corrupt snapshot, starting from empty")
		return make(map[string]any)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc
}

func (w *Writer) count(result string) {
	if w.metrics != nil {
		w.metrics.SnapshotWrites.WithLabelValues(result).Inc()
	}
}
