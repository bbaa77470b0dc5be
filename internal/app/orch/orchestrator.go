package orch

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/app"
	"github.com/dkeye/Estimate/internal/clock"
	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

const DefaultGracePeriod = 10 * time.Second

var ErrUnknownSession = domain.NewError(domain.CodeNotFound, "unknown session")

// Catalog lists the templates offered to admins.
type Catalog interface {
	All() []domain.Template
}

type Deps struct {
	Registry  *app.Registry
	Rooms     core.RoomManager
	Templates Catalog
	Policy    app.Policy
	Clock     clock.Clock
	// GracePeriod is how long a room outlives its admin's connection.
	GracePeriod time.Duration
}

// Orchestrator executes every command, disconnect, grace expiry and
// sweep one at a time under mu. Notifications are queued while mu is
// still held, so each room sees its events in commit order.
type Orchestrator struct {
	Registry    *app.Registry
	Rooms       core.RoomManager
	Templates   Catalog
	Policy      app.Policy
	Grace       *app.Scheduler
	GracePeriod time.Duration

	mu sync.Mutex
}

func New(d Deps) *Orchestrator {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.GracePeriod <= 0 {
		d.GracePeriod = DefaultGracePeriod
	}
	if d.Policy == nil {
		d.Policy = app.SimplePolicy{}
	}
	o := &Orchestrator{
		Registry:    d.Registry,
		Rooms:       d.Rooms,
		Templates:   d.Templates,
		Policy:      d.Policy,
		GracePeriod: d.GracePeriod,
	}
	o.Grace = app.NewScheduler(d.Clock, &o.mu)
	return o
}

func (o *Orchestrator) OnConnect(sid core.SessionID, conn core.SignalConnection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Registry.BindSignal(sid, conn)
}

// OnDisconnect detaches the connection from its room. A participant
// leaves at once; an admin gets GracePeriod to rejoin before the room
// closes.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detachLocked(sid)
	o.Registry.Unbind(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("client disconnected")
}

// Sweep deletes stale empty rooms and returns how many went away.
func (o *Orchestrator) Sweep() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	codes := o.Rooms.Cleanup()
	for _, code := range codes {
		o.Grace.Cancel(graceKey(code))
		o.evictLocked(code)
	}
	return len(codes)
}

func (o *Orchestrator) RoomInfo(code domain.RoomCode) (core.RoomInfo, bool) {
	room, ok := o.Rooms.GetRoom(domain.ParseRoomCode(string(code)))
	if !ok {
		return core.RoomInfo{}, false
	}
	return core.RoomInfo{
		Code:             room.Code(),
		Status:           room.Status(),
		ParticipantCount: room.ParticipantCount(),
		CreatedAt:        room.CreatedAt(),
	}, true
}

// RoomRounds lists the finished rounds of a room, oldest first.
func (o *Orchestrator) RoomRounds(code domain.RoomCode) ([]domain.RoundSummary, bool) {
	room, ok := o.Rooms.GetRoom(domain.ParseRoomCode(string(code)))
	if !ok {
		return nil, false
	}
	hist := room.History()
	out := make([]domain.RoundSummary, 0, len(hist))
	for _, r := range hist {
		out = append(out, *r.Summary())
	}
	return out, true
}

// Connections is the number of live signal connections.
func (o *Orchestrator) Connections() int {
	return o.Registry.Count()
}

func (o *Orchestrator) AllTemplates() []domain.Template {
	return o.Templates.All()
}

func graceKey(code domain.RoomCode) string { return "close:" + string(code) }

// detachLocked removes sid from whatever room it is bound to, as if it
// had left.
func (o *Orchestrator) detachLocked(sid core.SessionID) {
	b, ok := o.Registry.Binding(sid)
	if !ok || b.RoomCode == "" {
		return
	}
	o.Registry.ClearRoom(sid)

	room, ok := o.Rooms.GetRoom(b.RoomCode)
	if !ok {
		return
	}
	switch b.Role {
	case app.RoleAdmin:
		if room.IsAdmin(sid) {
			o.scheduleCloseLocked(b.RoomCode)
		}
	case app.RoleParticipant:
		p, removed := room.RemoveParticipant(sid)
		if !removed {
			return
		}
		o.broadcastLocked(b.RoomCode, Event{Type: EventParticipantLeft, Data: ParticipantEvent{SocketID: sid, Name: p.Name}})
		o.broadcastLocked(b.RoomCode, Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(b.RoomCode)).Str("name", p.Name).Msg("participant left")
	}
}

func (o *Orchestrator) scheduleCloseLocked(code domain.RoomCode) {
	o.Grace.Schedule(graceKey(code), o.GracePeriod, func() { o.closeRoomLocked(code) })
	log.Info().Str("module", "orch").Str("room", string(code)).Dur("grace", o.GracePeriod).Msg("admin gone, grace period started")
}

// closeRoomLocked runs from the grace timer with mu held.
func (o *Orchestrator) closeRoomLocked(code domain.RoomCode) {
	if _, ok := o.Rooms.GetRoom(code); !ok {
		return
	}
	o.evictLocked(code)
	o.Rooms.DeleteRoom(code)
	log.Info().Str("module", "orch").Str("room", string(code)).Msg("room closed after grace period")
}

// evictLocked tells every connection bound to code that the room is gone
// and unbinds them.
func (o *Orchestrator) evictLocked(code domain.RoomCode) {
	o.broadcastLocked(code, Event{Type: EventRoomClosed, Data: RoomClosed{Code: code}})
	for _, b := range o.Registry.MembersOfRoom(code) {
		o.Registry.ClearRoom(b.SID)
	}
}

func (o *Orchestrator) broadcastLocked(code domain.RoomCode, ev Event) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(code)).Str("event", string(ev.Type)).Msg("encode event")
		return
	}
	for _, b := range o.Registry.MembersOfRoom(code) {
		o.deliverLocked(code, b, frame)
	}
}

func (o *Orchestrator) sendLocked(code domain.RoomCode, sid core.SessionID, ev Event) {
	b, ok := o.Registry.Binding(sid)
	if !ok {
		return
	}
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("event", string(ev.Type)).Msg("encode event")
		return
	}
	o.deliverLocked(code, b, frame)
}

func (o *Orchestrator) deliverLocked(code domain.RoomCode, b app.Binding, frame core.Frame) {
	if b.Session == nil {
		return
	}
	if err := b.Session.TrySend(frame); err == nil {
		return
	}
	switch o.Policy.OnBackPressure(code, b.SID) {
	case app.CloseConnection:
		log.Warn().Str("module", "orch").Str("sid", string(b.SID)).Str("room", string(code)).Msg("send buffer full, closing connection")
		b.Session.Close()
	case app.DropFrame, app.NoAction:
		log.Debug().Str("module", "orch").Str("sid", string(b.SID)).Str("room", string(code)).Msg("frame dropped")
	}
}
