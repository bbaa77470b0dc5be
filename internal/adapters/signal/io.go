package signal

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

const writeWait = 5 * time.Second

var (
	errUnknownCommand = domain.NewError(domain.CodeInvalidInput, "unknown command")
	errRateLimited    = domain.NewError(domain.CodeRateLimited, "too many requests")
	errInternal       = domain.NewError(domain.CodeInternal, "internal error")
)

// Reply answers one command, to the issuing connection only.
type Reply struct {
	Type    string      `json:"type"`
	ReqID   string      `json:"reqId,omitempty"`
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Code    domain.Code `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type envelope struct {
	Type  string `json:"type"`
	ReqID string `json:"reqId"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Limiter.Forget(sid)
		ctl.Orch.OnDisconnect(sid)
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.sendJSON(c, ctl.handleSignal(sid, data))
		}
	}
}

// handleSignal runs one inbound command and builds its reply. A panic in
// a handler fails that command only.
func (ctl *SignalWSController) handleSignal(sid core.SessionID, data []byte) (r Reply) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		return failure("error", "", domain.ErrBadPayload)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Interface("panic", p).Msg("command handler panicked")
			r = failure(env.Type, env.ReqID, errInternal)
		}
	}()

	if env.Type != "ping" && !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("rate limited")
		return failure(env.Type, env.ReqID, errRateLimited)
	}

	var (
		out any
		err error
	)
	switch env.Type {
	case "createRoom":
		out, err = ctl.handleCreateRoom(sid, data)
	case "rejoinRoom":
		out, err = ctl.handleRejoinRoom(sid, data)
	case "joinRoom":
		out, err = ctl.handleJoinRoom(sid, data)
	case "kickParticipant":
		out, err = ctl.handleKick(sid, data)
	case "getTemplates":
		out = templatesReply{Templates: ctl.Orch.AllTemplates()}
	case "startVoting":
		out, err = ctl.handleStartVoting(sid, data)
	case "vote":
		out, err = ctl.handleVote(sid, data)
	case "removeVote":
		out, err = ctl.handleRemoveVote(sid, data)
	case "revealResults":
		out, err = ctl.Orch.RevealResults(sid)
	case "endRound":
		err = ctl.Orch.EndRound(sid)
	case "ping":
		return Reply{Type: "pong", ReqID: env.ReqID, Success: true}
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		return failure(env.Type, env.ReqID, errUnknownCommand)
	}
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("command failed")
		return failure(env.Type, env.ReqID, err)
	}
	return Reply{Type: env.Type, ReqID: env.ReqID, Success: true, Data: out}
}

func failure(typ, reqID string, err error) Reply {
	return Reply{
		Type:  typ,
		ReqID: reqID,
		Code:  domain.CodeOf(err),
		Error: err.Error(),
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("reply dropped")
	}
}
