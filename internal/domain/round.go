package domain

import (
	"slices"
	"time"
)

const MaxTimerSeconds = 3600

type RoundStatus string

const (
	RoundVoting   RoundStatus = "voting"
	RoundRevealed RoundStatus = "revealed"
)

type Vote struct {
	Value   string    `json:"value"`
	VotedAt time.Time `json:"votedAt"`
}

// Ballot is one participant's votes keyed by template.
type Ballot map[TemplateID]Vote

// VotingRound is one voting episode. Votes change only while Status is
// RoundVoting; once EndedAt is set the round is history and never mutated.
type VotingRound struct {
	ID           int                      `json:"id"`
	TemplateIDs  []TemplateID             `json:"templateIds"`
	Topic        string                   `json:"topic"`
	TimerSeconds *int                     `json:"timerSeconds"`
	StartedAt    time.Time                `json:"startedAt"`
	RevealedAt   *time.Time               `json:"revealedAt,omitempty"`
	EndedAt      *time.Time               `json:"endedAt,omitempty"`
	Status       RoundStatus              `json:"status"`
	Votes        map[ParticipantID]Ballot `json:"-"`
}

func (r *VotingRound) CanAcceptVotes() bool { return r.Status == RoundVoting }

func (r *VotingRound) IsRevealed() bool { return r.Status == RoundRevealed }

func (r *VotingRound) HasTemplate(id TemplateID) bool {
	return slices.Contains(r.TemplateIDs, id)
}

// VoteOf returns pid's vote for tid, if any.
func (r *VotingRound) VoteOf(pid ParticipantID, tid TemplateID) (Vote, bool) {
	b, ok := r.Votes[pid]
	if !ok {
		return Vote{}, false
	}
	v, ok := b[tid]
	return v, ok
}

// Complete reports whether pid has a vote for every template of the round.
func (r *VotingRound) Complete(pid ParticipantID) bool {
	return len(r.Votes[pid]) >= len(r.TemplateIDs)
}

// Clone returns a deep copy safe to hand out of the owning room.
func (r *VotingRound) Clone() *VotingRound {
	if r == nil {
		return nil
	}
	cp := *r
	cp.TemplateIDs = slices.Clone(r.TemplateIDs)
	if r.TimerSeconds != nil {
		t := *r.TimerSeconds
		cp.TimerSeconds = &t
	}
	if r.RevealedAt != nil {
		t := *r.RevealedAt
		cp.RevealedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		cp.EndedAt = &t
	}
	cp.Votes = make(map[ParticipantID]Ballot, len(r.Votes))
	for pid, b := range r.Votes {
		nb := make(Ballot, len(b))
		for tid, v := range b {
			nb[tid] = v
		}
		cp.Votes[pid] = nb
	}
	return &cp
}

// RoundSummary is the round shape carried by roomUpdate.
type RoundSummary struct {
	ID     int         `json:"id"`
	Topic  string      `json:"topic"`
	Status RoundStatus `json:"status"`
}

func (r *VotingRound) Summary() *RoundSummary {
	if r == nil {
		return nil
	}
	return &RoundSummary{ID: r.ID, Topic: r.Topic, Status: r.Status}
}
