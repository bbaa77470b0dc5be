package orch

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

type EventType string

const (
	EventRoomUpdate        EventType = "roomUpdate"
	EventParticipantJoined EventType = "participantJoined"
	EventParticipantLeft   EventType = "participantLeft"
	EventVotingStarted     EventType = "votingStarted"
	EventResultsRevealed   EventType = "resultsRevealed"
	EventRoundEnded        EventType = "roundEnded"
	EventKicked            EventType = "kicked"
	EventRoomClosed        EventType = "roomClosed"
)

// unknownVoter names votes whose participant already left.
const unknownVoter = "Unknown"

// Event is a server-initiated notification.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

func (e Event) Encode() (core.Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

type RoomUpdate struct {
	Participants     []domain.Participant `json:"participants"`
	ParticipantCount int                  `json:"participantCount"`
	VoteCount        int                  `json:"voteCount"`
	Status           domain.RoomStatus    `json:"status"`
	CurrentRound     *domain.RoundSummary `json:"currentRound"`
}

type ParticipantEvent struct {
	SocketID core.SessionID `json:"socketId"`
	Name     string         `json:"name"`
}

// RoundAnnouncement describes a round together with the full definitions
// of its templates, so clients can render the ballot.
type RoundAnnouncement struct {
	ID           int                 `json:"id"`
	TemplateIDs  []domain.TemplateID `json:"templateIds"`
	Topic        string              `json:"topic"`
	TimerSeconds *int                `json:"timerSeconds"`
	StartedAt    time.Time           `json:"startedAt"`
	Status       domain.RoundStatus  `json:"status"`
	Templates    []domain.Template   `json:"templates"`
}

type VotingStarted struct {
	Round RoundAnnouncement `json:"round"`
}

type NamedBallot struct {
	Name  string        `json:"name"`
	Votes domain.Ballot `json:"votes"`
}

type ResultsRevealed struct {
	Stats core.Stats                           `json:"stats"`
	Votes map[domain.ParticipantID]NamedBallot `json:"votes"`
}

type RoomClosed struct {
	Code domain.RoomCode `json:"code"`
}

func roomUpdateOf(room core.RoomService) RoomUpdate {
	snap := room.Snapshot()
	return RoomUpdate{
		Participants:     snap.Participants,
		ParticipantCount: len(snap.Participants),
		VoteCount:        snap.VoteCount,
		Status:           snap.Status,
		CurrentRound:     snap.CurrentRound.Summary(),
	}
}

func announce(round *domain.VotingRound, templates []domain.Template) VotingStarted {
	return VotingStarted{Round: RoundAnnouncement{
		ID:           round.ID,
		TemplateIDs:  round.TemplateIDs,
		Topic:        round.Topic,
		TimerSeconds: round.TimerSeconds,
		StartedAt:    round.StartedAt,
		Status:       round.Status,
		Templates:    templates,
	}}
}

func namedVotes(stats core.Stats, participants []domain.Participant) map[domain.ParticipantID]NamedBallot {
	names := make(map[domain.ParticipantID]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	out := make(map[domain.ParticipantID]NamedBallot, len(stats.Votes))
	for pid, ballot := range stats.Votes {
		name, ok := names[pid]
		if !ok {
			name = unknownVoter
		}
		out[pid] = NamedBallot{Name: name, Votes: ballot}
	}
	return out
}
