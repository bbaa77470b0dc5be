package signal

import (
	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

type templatesReply struct {
	Templates []domain.Template `json:"templates"`
}

func (ctl *SignalWSController) handleCreateRoom(sid core.SessionID, data []byte) (any, error) {
	p, err := decode[createRoomPayload](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.CreateRoom(sid, p.Name)
}

func (ctl *SignalWSController) handleRejoinRoom(sid core.SessionID, data []byte) (any, error) {
	p, err := decode[rejoinRoomPayload](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.RejoinRoom(sid, domain.RoomCode(p.RoomCode), p.AdminToken)
}

func (ctl *SignalWSController) handleJoinRoom(sid core.SessionID, data []byte) (any, error) {
	p, err := decode[joinRoomPayload](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.JoinRoom(sid, domain.RoomCode(p.Code), p.Name)
}

func (ctl *SignalWSController) handleKick(sid core.SessionID, data []byte) (any, error) {
	p, err := decode[kickPayload](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.KickParticipant(sid, core.SessionID(p.SocketID))
}
