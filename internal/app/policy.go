package app

import (
	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	CloseConnection
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomCode, sid core.SessionID) BackpressureAction
}

// SimplePolicy closes lagging connections. A client that missed a room
// notification has a stale view; reconnecting gets it a fresh one.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomCode, core.SessionID) BackpressureAction {
	return CloseConnection
}
