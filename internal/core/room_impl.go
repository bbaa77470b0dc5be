package core

import (
	"crypto/subtle"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/clock"
	"github.com/dkeye/Estimate/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	mu        sync.RWMutex
	room      *domain.Room
	order     []domain.ParticipantID
	templates TemplateSource
	clock     clock.Clock
}

func NewRoomService(room *domain.Room, templates TemplateSource, clk clock.Clock) RoomService {
	return &roomImpl{room: room, templates: templates, clock: clk}
}

func (r *roomImpl) Code() domain.RoomCode { return r.room.Code }

func (r *roomImpl) CreatedAt() time.Time { return r.room.CreatedAt }

func (r *roomImpl) Status() domain.RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room.Status
}

func (r *roomImpl) Snapshot() RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomSnapshot{
		Code:         r.room.Code,
		Status:       r.room.Status,
		Participants: r.participantsLocked(),
		VoteCount:    r.voteCountLocked(),
		CurrentRound: r.room.CurrentRound.Clone(),
		RoundsPlayed: len(r.room.Rounds),
		CreatedAt:    r.room.CreatedAt,
	}
}

func (r *roomImpl) IsAdmin(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room.Admin.SID == string(sid)
}

func (r *roomImpl) VerifyToken(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokenMatchesLocked(token)
}

func (r *roomImpl) tokenMatchesLocked(token string) bool {
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(r.room.Admin.Token)) == 1
}

func (r *roomImpl) RebindAdmin(sid SessionID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tokenMatchesLocked(token) {
		return domain.ErrInvalidToken
	}
	r.room.Admin.SID = string(sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.Code)).Str("sid", string(sid)).Msg("admin rebound")
	return nil
}

// ---- membership ----

func (r *roomImpl) AddParticipant(sid SessionID, name string) domain.Participant {
	pid := domain.ParticipantID(sid)
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.room.Participants[pid]; ok {
		p.Name = name
		return *p
	}
	p := domain.NewParticipant(pid, name, r.clock.Now())
	if cur := r.room.CurrentRound; cur != nil && cur.CanAcceptVotes() {
		p.HasVoted = cur.Complete(pid)
	}
	r.room.Participants[pid] = p
	r.order = append(r.order, pid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.Code)).Str("sid", string(sid)).Str("name", name).Msg("participant added")
	return *p
}

func (r *roomImpl) RemoveParticipant(sid SessionID) (domain.Participant, bool) {
	pid := domain.ParticipantID(sid)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.room.Participants[pid]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.room.Participants, pid)
	r.order = slices.DeleteFunc(r.order, func(id domain.ParticipantID) bool { return id == pid })
	log.Info().Str("module", "core.room").Str("room", string(r.room.Code)).Str("sid", string(sid)).Msg("participant removed")
	return *p, true
}

func (r *roomImpl) Participant(sid SessionID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.room.Participants[domain.ParticipantID(sid)]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (r *roomImpl) Participants() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participantsLocked()
}

func (r *roomImpl) participantsLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, pid := range r.order {
		out = append(out, *r.room.Participants[pid])
	}
	return out
}

func (r *roomImpl) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.room.Participants)
}

func (r *roomImpl) VoteCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.voteCountLocked()
}

func (r *roomImpl) voteCountLocked() int {
	if r.room.CurrentRound == nil {
		return 0
	}
	return len(r.room.CurrentRound.Votes)
}

// ---- round state machine ----

func (r *roomImpl) StartRound(ids []domain.TemplateID, topic string, timerSeconds *int) (*domain.VotingRound, []domain.Template, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil, domain.ErrNoTemplates
	}
	defs := make([]domain.Template, 0, len(ids))
	for _, id := range ids {
		t, ok := r.templates.Get(id)
		if !ok {
			return nil, nil, domain.UnknownTemplate(id)
		}
		defs = append(defs, t)
	}
	topic, err := domain.NormalizeTopic(topic)
	if err != nil {
		return nil, nil, err
	}
	var timer *int
	if timerSeconds != nil {
		if *timerSeconds < 1 || *timerSeconds > domain.MaxTimerSeconds {
			return nil, nil, domain.ErrInvalidTimer
		}
		t := *timerSeconds
		timer = &t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	round := &domain.VotingRound{
		ID:           len(r.room.Rounds) + 1,
		TemplateIDs:  ids,
		Topic:        topic,
		TimerSeconds: timer,
		StartedAt:    r.clock.Now(),
		Status:       domain.RoundVoting,
		Votes:        make(map[domain.ParticipantID]domain.Ballot),
	}
	if prev := r.room.CurrentRound; prev != nil {
		log.Info().Str("module", "core.room").Str("room", string(r.room.Code)).Int("round", prev.ID).Msg("active round replaced")
	}
	r.room.CurrentRound = round
	r.room.Status = domain.RoomVoting
	r.resetHasVotedLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.room.Code)).Int("round", round.ID).Str("topic", topic).Msg("round started")
	return round.Clone(), defs, nil
}

func (r *roomImpl) CastVote(sid SessionID, tid domain.TemplateID, value string) (VoteOutcome, error) {
	pid := domain.ParticipantID(sid)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.room.Participants[pid]; !ok {
		return 0, domain.ErrParticipantNotFound
	}
	cur := r.room.CurrentRound
	if cur == nil || !cur.CanAcceptVotes() {
		return 0, domain.ErrNoActiveVoting
	}
	if !cur.HasTemplate(tid) {
		return 0, domain.ErrTemplateNotInRound
	}

	prev, had := cur.VoteOf(pid, tid)
	if had && prev.Value == value {
		r.removeVoteLocked(pid, tid)
		return VoteRemoved, nil
	}
	if !r.templates.ValidateVote(tid, value) {
		return 0, domain.ErrInvalidVote
	}

	ballot, ok := cur.Votes[pid]
	if !ok {
		ballot = make(domain.Ballot, len(cur.TemplateIDs))
		cur.Votes[pid] = ballot
	}
	ballot[tid] = domain.Vote{Value: value, VotedAt: r.clock.Now()}
	r.refreshHasVotedLocked(pid)

	if had {
		return VoteChanged, nil
	}
	return VoteRecorded, nil
}

func (r *roomImpl) RemoveVote(sid SessionID, tid domain.TemplateID) error {
	pid := domain.ParticipantID(sid)
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.room.CurrentRound
	if cur == nil || !cur.CanAcceptVotes() {
		return domain.ErrNoActiveVoting
	}
	if !cur.HasTemplate(tid) {
		return domain.ErrTemplateNotInRound
	}
	r.removeVoteLocked(pid, tid)
	return nil
}

func (r *roomImpl) removeVoteLocked(pid domain.ParticipantID, tid domain.TemplateID) {
	cur := r.room.CurrentRound
	if ballot, ok := cur.Votes[pid]; ok {
		delete(ballot, tid)
		if len(ballot) == 0 {
			delete(cur.Votes, pid)
		}
	}
	r.refreshHasVotedLocked(pid)
}

func (r *roomImpl) Reveal() (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.room.CurrentRound
	if cur == nil {
		return Stats{}, domain.ErrNoActiveRound
	}
	if cur.RevealedAt == nil {
		now := r.clock.Now()
		cur.RevealedAt = &now
	}
	cur.Status = domain.RoundRevealed
	r.room.Status = domain.RoomRevealed
	log.Info().Str("module", "core.room").Str("room", string(r.room.Code)).Int("round", cur.ID).Int("votes", len(cur.Votes)).Msg("results revealed")
	return ComputeStats(cur, r.order, len(r.room.Participants)), nil
}

func (r *roomImpl) EndRound() (*domain.VotingRound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.room.CurrentRound
	if cur == nil {
		return nil, domain.ErrNoActiveRound
	}
	now := r.clock.Now()
	cur.EndedAt = &now
	r.room.Rounds = append(r.room.Rounds, cur)
	r.room.CurrentRound = nil
	r.room.Status = domain.RoomWaiting
	r.resetHasVotedLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.room.Code)).Int("round", cur.ID).Msg("round ended")
	return cur.Clone(), nil
}

func (r *roomImpl) CurrentRound() *domain.VotingRound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room.CurrentRound.Clone()
}

func (r *roomImpl) RoundTemplates() []domain.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur := r.room.CurrentRound
	if cur == nil {
		return nil
	}
	out := make([]domain.Template, 0, len(cur.TemplateIDs))
	for _, id := range cur.TemplateIDs {
		if t, ok := r.templates.Get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *roomImpl) Stats() (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur := r.room.CurrentRound
	if cur == nil {
		return Stats{}, false
	}
	return ComputeStats(cur, r.order, len(r.room.Participants)), true
}

func (r *roomImpl) History() []*domain.VotingRound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.VotingRound, 0, len(r.room.Rounds))
	for _, round := range r.room.Rounds {
		out = append(out, round.Clone())
	}
	return out
}

func (r *roomImpl) resetHasVotedLocked() {
	for _, p := range r.room.Participants {
		p.HasVoted = false
	}
}

func (r *roomImpl) refreshHasVotedLocked(pid domain.ParticipantID) {
	p, ok := r.room.Participants[pid]
	if !ok {
		return
	}
	cur := r.room.CurrentRound
	p.HasVoted = cur != nil && cur.Complete(pid)
}

func dedupe(ids []domain.TemplateID) []domain.TemplateID {
	out := make([]domain.TemplateID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
