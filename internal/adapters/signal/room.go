package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

func (ctl *SignalWSController) handleCreateRoom(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.CreateRoom
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create-room payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}

	resp, err := ctl.Orch.CreateRoom(sid, conn, domain.RoomID(p.RoomID), p.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.RoomID).Msg("create-room refused")
		ctl.sendErr(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Bool("new", resp.IsNew).Msg("room created")
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleJoinRoom(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.JoinRoom
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-room payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}

	// Throttle per connection so the short room code cannot be brute
	// forced through a single socket.
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		ctl.sendError(conn, "rate_limited", "too many join attempts")
		return
	}

	pendingID, err := ctl.Orch.RequestJoin(sid, conn, domain.RoomID(p.RoomID), domain.RoomCode(p.RoomCode), p.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.RoomID).Msg("join-room refused")
		ctl.sendErr(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("pending", string(pendingID)).Msg("join queued")
}

func (ctl *SignalWSController) handleDecide(sid core.SessionID, conn *WsSignalConn, data []byte, accept bool) {
	var p protocol.Decide
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad decide payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}

	if err := ctl.Orch.Decide(sid, domain.RoomID(p.RoomID), domain.ParticipantID(p.TargetID), accept); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.RoomID).Str("target", p.TargetID).Msg("decide refused")
		ctl.sendErr(conn, err)
	}
}

func (ctl *SignalWSController) handleLock(sid core.SessionID, conn *WsSignalConn, data []byte, locked bool) {
	var p protocol.Lock
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad lock payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}

	if err := ctl.Orch.SetLock(sid, domain.RoomID(p.RoomID), locked); err != nil {
		ctl.sendErr(conn, err)
		return
	}
	tag := protocol.TypeRoomLocked
	if !locked {
		tag = protocol.TypeRoomUnlocked
	}
	ctl.sendJSON(conn, protocol.LockChanged{Type: tag, RoomID: p.RoomID})
}

func (ctl *SignalWSController) handleLeave(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.LeaveRoom
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave-room payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("leave")
	ctl.Orch.Leave(sid)
}
