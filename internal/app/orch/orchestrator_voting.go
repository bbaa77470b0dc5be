package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

type VoteResult struct {
	Removed bool `json:"removed"`
	Changed bool `json:"changed"`
}

type RevealResult struct {
	Stats core.Stats `json:"stats"`
}

// StartVoting opens a round in the admin's room, replacing any open one.
func (o *Orchestrator) StartVoting(sid core.SessionID, ids []domain.TemplateID, topic string, timerSeconds *int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, err := o.adminRoomLocked(sid)
	if err != nil {
		return err
	}
	code := room.Code()
	round, templates, err := room.StartRound(ids, topic, timerSeconds)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Msg("start voting rejected")
		return err
	}
	o.broadcastLocked(code, Event{Type: EventVotingStarted, Data: announce(round, templates)})
	o.broadcastLocked(code, Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Int("round", round.ID).Str("topic", round.Topic).Msg("voting started")
	return nil
}

// Vote casts, changes or withdraws sid's vote for one template. Repeating
// the current value withdraws it.
func (o *Orchestrator) Vote(sid core.SessionID, tid domain.TemplateID, value string) (VoteResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, err := o.participantRoomLocked(sid)
	if err != nil {
		return VoteResult{}, err
	}
	code := room.Code()
	outcome, err := room.CastVote(sid, tid, value)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Str("template", string(tid)).Msg("vote rejected")
		return VoteResult{}, err
	}
	o.broadcastLocked(code, Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Str("template", string(tid)).Stringer("outcome", outcome).Msg("vote")
	return VoteResult{
		Removed: outcome == core.VoteRemoved,
		Changed: outcome == core.VoteChanged,
	}, nil
}

// RemoveVote withdraws sid's vote for one template. Withdrawing a vote
// that was never cast succeeds.
func (o *Orchestrator) RemoveVote(sid core.SessionID, tid domain.TemplateID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, err := o.participantRoomLocked(sid)
	if err != nil {
		return err
	}
	if err := room.RemoveVote(sid, tid); err != nil {
		return err
	}
	o.broadcastLocked(room.Code(), Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room.Code())).Str("template", string(tid)).Msg("vote removed")
	return nil
}

// RevealResults publishes the statistics and every vote with its voter's
// name.
func (o *Orchestrator) RevealResults(sid core.SessionID) (RevealResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, err := o.adminRoomLocked(sid)
	if err != nil {
		return RevealResult{}, err
	}
	code := room.Code()
	stats, err := room.Reveal()
	if err != nil {
		return RevealResult{}, err
	}
	o.broadcastLocked(code, Event{Type: EventResultsRevealed, Data: ResultsRevealed{
		Stats: stats,
		Votes: namedVotes(stats, room.Participants()),
	}})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Msg("results revealed")
	return RevealResult{Stats: stats}, nil
}

// EndRound archives the current round and returns the room to waiting.
func (o *Orchestrator) EndRound(sid core.SessionID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, err := o.adminRoomLocked(sid)
	if err != nil {
		return err
	}
	code := room.Code()
	round, err := room.EndRound()
	if err != nil {
		return err
	}
	o.broadcastLocked(code, Event{Type: EventRoundEnded})
	o.broadcastLocked(code, Event{Type: EventRoomUpdate, Data: roomUpdateOf(room)})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(code)).Int("round", round.ID).Msg("round ended")
	return nil
}
