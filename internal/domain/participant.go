package domain

import "time"

type ParticipantID string

// Participant is a voter bound to one connection. HasVoted is derived from
// the current round and is maintained by the round state machine.
type Participant struct {
	ID       ParticipantID `json:"socketId"`
	Name     string        `json:"name"`
	JoinedAt time.Time     `json:"joinedAt"`
	HasVoted bool          `json:"hasVoted"`
}

func NewParticipant(id ParticipantID, name string, now time.Time) *Participant {
	return &Participant{ID: id, Name: name, JoinedAt: now}
}
