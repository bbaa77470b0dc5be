package signal

import (
	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

func (ctl *SignalWSController) handleStartVoting(sid core.SessionID, data []byte) (any, error) {
	p, err := decode[startVotingPayload](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.StartVoting(sid, p.TemplateIDs.ids(), p.Topic, p.TimerSeconds)
}

func (ctl *SignalWSController) handleVote(sid core.SessionID, data []byte) (any, error) {
	p, err := decode[votePayload](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.Vote(sid, domain.TemplateID(p.TemplateID), p.Vote)
}

func (ctl *SignalWSController) handleRemoveVote(sid core.SessionID, data []byte) (any, error) {
	p, err := decode[removeVotePayload](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.RemoveVote(sid, domain.TemplateID(p.TemplateID))
}
