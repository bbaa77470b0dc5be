package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/app"
	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

const defaultAdminName = "Admin"

type CreateRoomResult struct {
	Code       domain.RoomCode `json:"code"`
	AdminToken string          `json:"adminToken"`
}

type RejoinRoomResult struct {
	Code         domain.RoomCode      `json:"code"`
	Participants []domain.Participant `json:"participants"`
	VoteCount    int                  `json:"voteCount"`
	Status       domain.RoomStatus    `json:"status"`
	CurrentRound *RoundAnnouncement   `json:"currentRound"`
}

type RoomView struct {
	Code         domain.RoomCode     `json:"code"`
	Status       domain.RoomStatus   `json:"status"`
	CurrentRound *domain.VotingRound `json:"currentRound"`
}

type JoinRoomResult struct {
	SocketID core.SessionID `json:"socketId"`
	Room     RoomView       `json:"room"`
}

// CreateRoom opens a room with sid as its admin.
func (o *Orchestrator) CreateRoom(sid core.SessionID, adminName string) (CreateRoomResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.Registry.Binding(sid); !ok {
		return CreateRoomResult{}, ErrUnknownSession
	}
	o.detachLocked(sid)

	room, token, err := o.Rooms.CreateRoom(sid, adminName)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("create room failed")
		return CreateRoomResult{}, err
	}
	name, err := domain.NormalizeName(adminName)
	if err != nil {
		name = defaultAdminName
	}
	o.Registry.BindRoom(sid, room.Code(), app.RoleAdmin, name)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room.Code())).Str("admin", name).Msg("room created")
	return CreateRoomResult{Code: room.Code(), AdminToken: token}, nil
}

// RejoinRoom hands the admin role of an existing room to sid when token
// matches, cancelling a pending close.
func (o *Orchestrator) RejoinRoom(sid core.SessionID, code domain.RoomCode, token string) (RejoinRoomResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	code = domain.ParseRoomCode(string(code))
	if _, ok := o.Registry.Binding(sid); !ok {
		return RejoinRoomResult{}, ErrUnknownSession
	}
	room, ok := o.Rooms.GetRoom(code)
	if !ok {
		return RejoinRoomResult{}, domain.ErrRoomNotFound
	}
	if !room.VerifyToken(token) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Msg("rejoin with invalid admin token")
		return RejoinRoomResult{}, domain.ErrInvalidToken
	}
	if cur, role, bound := o.Registry.RoomOf(sid); bound && (cur != code || role != app.RoleAdmin) {
		o.detachLocked(sid)
	}
	if err := room.RebindAdmin(sid, token); err != nil {
		return RejoinRoomResult{}, err
	}
	if o.Grace.Cancel(graceKey(code)) {
		log.Info().Str("module", "orch").Str("room", string(code)).Msg("pending close cancelled")
	}
	o.Registry.BindRoom(sid, code, app.RoleAdmin, defaultAdminName)

	snap := room.Snapshot()
	res := RejoinRoomResult{
		Code:         code,
		Participants: snap.Participants,
		VoteCount:    snap.VoteCount,
		Status:       snap.Status,
	}
	if snap.CurrentRound != nil {
		a := announce(snap.CurrentRound, room.RoundTemplates()).Round
		res.CurrentRound = &a
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Msg("admin rejoined")
	o.broadcastLocked(code, Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})
	return res, nil
}

// JoinRoom adds sid to a room as a participant. Joining while a round is
// open sends the joiner the round so it can vote right away. The room's
// admin connection cannot join its own room.
func (o *Orchestrator) JoinRoom(sid core.SessionID, code domain.RoomCode, name string) (JoinRoomResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	code = domain.ParseRoomCode(string(code))
	if _, ok := o.Registry.Binding(sid); !ok {
		return JoinRoomResult{}, ErrUnknownSession
	}
	room, ok := o.Rooms.GetRoom(code)
	if !ok {
		return JoinRoomResult{}, domain.ErrRoomNotFound
	}
	name, err := domain.NormalizeName(name)
	if err != nil {
		return JoinRoomResult{}, err
	}
	// The admin connection is never also a participant.
	if room.IsAdmin(sid) {
		return JoinRoomResult{}, domain.ErrAdminCannotJoin
	}
	if cur, role, bound := o.Registry.RoomOf(sid); bound && (cur != code || role != app.RoleParticipant) {
		o.detachLocked(sid)
	}

	p := room.AddParticipant(sid, name)
	o.Registry.BindRoom(sid, code, app.RoleParticipant, p.Name)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Str("name", p.Name).Msg("participant joined")

	o.broadcastLocked(code, Event{Type: EventParticipantJoined, Data: ParticipantEvent{SocketID: sid, Name: p.Name}})
	o.broadcastLocked(code, Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})

	round := room.CurrentRound()
	if round != nil && round.CanAcceptVotes() {
		o.sendLocked(code, sid, Event{Type: EventVotingStarted, Data: announce(round, room.RoundTemplates())})
	}
	return JoinRoomResult{
		SocketID: sid,
		Room:     RoomView{Code: code, Status: room.Status(), CurrentRound: round},
	}, nil
}

// KickParticipant removes target from the admin's room.
func (o *Orchestrator) KickParticipant(sid, target core.SessionID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, err := o.adminRoomLocked(sid)
	if err != nil {
		return err
	}
	code := room.Code()
	p, ok := room.RemoveParticipant(target)
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if cur, _, bound := o.Registry.RoomOf(target); bound && cur == code {
		o.sendLocked(code, target, Event{Type: EventKicked})
		o.Registry.ClearRoom(target)
	}
	o.broadcastLocked(code, Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Str("target", string(target)).Str("name", p.Name).Msg("participant kicked")
	return nil
}

// adminRoomLocked resolves the room sid administers, or ErrNotAdmin.
func (o *Orchestrator) adminRoomLocked(sid core.SessionID) (core.RoomService, error) {
	code, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, domain.ErrNotAdmin
	}
	room, ok := o.Rooms.GetRoom(code)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !room.IsAdmin(sid) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Msg("privileged command from non-admin")
		return nil, domain.ErrNotAdmin
	}
	return room, nil
}

// participantRoomLocked resolves the room sid is bound to.
func (o *Orchestrator) participantRoomLocked(sid core.SessionID) (core.RoomService, error) {
	code, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, domain.ErrNotInRoom
	}
	room, ok := o.Rooms.GetRoom(code)
	if !ok {
		o.Registry.ClearRoom(sid)
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}
