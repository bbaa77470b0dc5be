package domain

import (
	"strings"
	"time"
)

type RoomCode string

// ParseRoomCode normalizes user input the way codes are generated:
// trimmed and upper case.
func ParseRoomCode(raw string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(raw)))
}

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomVoting   RoomStatus = "voting"
	RoomRevealed RoomStatus = "revealed"
)

// Admin identifies the connection allowed to run the room. Token is the
// secret that lets a new connection take the role over.
type Admin struct {
	SID   string
	Name  string
	Token string
}

// Room is an estimation session. Status is RoomWaiting exactly when
// CurrentRound is nil, and mirrors CurrentRound.Status otherwise.
type Room struct {
	Code         RoomCode
	Admin        Admin
	Participants map[ParticipantID]*Participant
	CurrentRound *VotingRound
	Rounds       []*VotingRound
	CreatedAt    time.Time
	Status       RoomStatus
}

func NewRoom(code RoomCode, admin Admin, now time.Time) *Room {
	return &Room{
		Code:         code,
		Admin:        admin,
		Participants: make(map[ParticipantID]*Participant),
		CreatedAt:    now,
		Status:       RoomWaiting,
	}
}
