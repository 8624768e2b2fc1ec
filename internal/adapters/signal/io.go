package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		ctl.Limiter.Forget(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload", "malformed message")
		return
	}

	switch env.Type {
	case protocol.TypeCreateRoom:
		ctl.handleCreateRoom(sid, c, data)
	case protocol.TypeJoinRoom:
		ctl.handleJoinRoom(sid, c, data)
	case protocol.TypeAcceptPeer:
		ctl.handleDecide(sid, c, data, true)
	case protocol.TypeRejectPeer:
		ctl.handleDecide(sid, c, data, false)
	case protocol.TypeLockRoom:
		ctl.handleLock(sid, c, data, true)
	case protocol.TypeUnlockRoom:
		ctl.handleLock(sid, c, data, false)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		ctl.handleRelay(sid, c, data)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(sid, c, data)
	case protocol.TypeJoinAsViewer:
		ctl.handleJoinAsViewer(sid, c, data)
	case protocol.TypeViewerLeave:
		ctl.handleViewerLeave(sid, c, data)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError reports a recoverable failure to the originating connection
// only. It never tears down the room or other sessions.
func (ctl *SignalWSController) sendError(c *WsSignalConn, code, msg string) {
	ctl.sendJSON(c, protocol.Error{Type: protocol.TypeError, Code: code, Error: msg})
}

func (ctl *SignalWSController) sendErr(c *WsSignalConn, err error) {
	ctl.sendError(c, core.ErrorCode(err), err.Error())
}
