package app

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

type Role string

const (
	RoleNone        Role = ""
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
)

// Binding is the session metadata of one live connection.
type Binding struct {
	SID      core.SessionID
	RoomCode domain.RoomCode
	Role     Role
	Name     string
	Session  core.SignalConnection
}

type sessionEntry struct {
	Binding
	seq uint64
}

// Registry maps connections to the room they are bound to. It knows
// nothing about room state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.sessions[sid] = &sessionEntry{Binding: Binding{SID: sid, Session: sess}, seq: r.seq}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Binding(sid core.SessionID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return Binding{}, false
	}
	return e.Binding, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomCode, Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomCode == "" {
		return "", RoleNone, false
	}
	return entry.RoomCode, entry.Role, true
}

// BindRoom attaches a connection to a room with a role. It reports false
// for unknown connections.
func (r *Registry) BindRoom(sid core.SessionID, code domain.RoomCode, role Role, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.RoomCode = code
	entry.Role = role
	entry.Name = name
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(code)).Str("role", string(role)).Msg("bound room")
	return true
}

func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.RoomCode = ""
		entry.Role = RoleNone
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed room association")
}

// MembersOfRoom returns the connections bound to code in bind order.
func (r *Registry) MembersOfRoom(code domain.RoomCode) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.RoomCode == code {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b *sessionEntry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]Binding, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Binding)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
