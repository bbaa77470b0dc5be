package core

import (
	"time"

	"github.com/dkeye/Estimate/internal/domain"
)

// TemplateSource is the read-only catalog a room validates against.
type TemplateSource interface {
	Get(id domain.TemplateID) (domain.Template, bool)
	ValidateVote(id domain.TemplateID, value string) bool
}

type VoteOutcome int

const (
	VoteRecorded VoteOutcome = iota
	VoteChanged
	VoteRemoved
)

func (o VoteOutcome) String() string {
	switch o {
	case VoteChanged:
		return "changed"
	case VoteRemoved:
		return "removed"
	default:
		return "recorded"
	}
}

// RoomSnapshot is a deep copy of a room's observable state.
type RoomSnapshot struct {
	Code         domain.RoomCode      `json:"code"`
	Status       domain.RoomStatus    `json:"status"`
	Participants []domain.Participant `json:"participants"`
	VoteCount    int                  `json:"voteCount"`
	CurrentRound *domain.VotingRound  `json:"currentRound"`
	RoundsPlayed int                  `json:"roundsPlayed"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// RoomService is the core-facing API of a room: membership plus the
// round state machine. Every method is atomic with respect to the others.
// It never touches transport resources.
type RoomService interface {
	Code() domain.RoomCode
	CreatedAt() time.Time
	Status() domain.RoomStatus
	Snapshot() RoomSnapshot

	IsAdmin(sid SessionID) bool
	VerifyToken(token string) bool
	// RebindAdmin moves the admin role to sid when token matches.
	RebindAdmin(sid SessionID, token string) error

	AddParticipant(sid SessionID, name string) domain.Participant
	RemoveParticipant(sid SessionID) (domain.Participant, bool)
	Participant(sid SessionID) (domain.Participant, bool)
	// Participants returns members in join order.
	Participants() []domain.Participant
	ParticipantCount() int
	// VoteCount is the number of voters with at least one vote in the
	// current round.
	VoteCount() int

	StartRound(ids []domain.TemplateID, topic string, timerSeconds *int) (*domain.VotingRound, []domain.Template, error)
	CastVote(sid SessionID, tid domain.TemplateID, value string) (VoteOutcome, error)
	RemoveVote(sid SessionID, tid domain.TemplateID) error
	Reveal() (Stats, error)
	EndRound() (*domain.VotingRound, error)

	CurrentRound() *domain.VotingRound
	// RoundTemplates returns the definitions of the current round's templates.
	RoundTemplates() []domain.Template
	Stats() (Stats, bool)
	// History returns copies of the finished rounds, oldest first.
	History() []*domain.VotingRound
}

type RoomInfo struct {
	Code             domain.RoomCode   `json:"code"`
	Status           domain.RoomStatus `json:"status"`
	ParticipantCount int               `json:"participantCount"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// RoomManager owns every live room.
type RoomManager interface {
	// CreateRoom returns the new room and the admin's reconnection token.
	CreateRoom(adminSID SessionID, adminName string) (RoomService, string, error)
	GetRoom(code domain.RoomCode) (RoomService, bool)
	DeleteRoom(code domain.RoomCode) bool
	List() []RoomInfo
	// Cleanup deletes rooms that are empty and older than the retention
	// window, and returns their codes.
	Cleanup() []domain.RoomCode
}
