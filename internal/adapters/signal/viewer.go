package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

func (ctl *SignalWSController) handleJoinAsViewer(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.JoinAsViewer
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-as-viewer payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}

	info, err := ctl.Orch.SubscribeViewer(sid, conn, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("viewer", info.ViewerID).Msg("viewer subscribed")
	ctl.sendJSON(conn, info)
}

func (ctl *SignalWSController) handleViewerLeave(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.ViewerLeave
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad viewer-leave payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}
	ctl.Orch.UnsubscribeViewer(sid, domain.RoomID(p.RoomID), domain.ParticipantID(p.ViewerID))
}
