package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

// handleRelay forwards offer, answer and ice-candidate frames. The
// payload is relayed verbatim; only the routing fields are read. The
// claimed source must match the identity bound to this connection, so a
// peer cannot impersonate another endpoint's side of a handshake.
func (ctl *SignalWSController) handleRelay(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.Relay
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad relay payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}

	b, ok := ctl.Orch.Registry.BindingOf(sid)
	if !ok || string(b.ParticipantID) != p.SourceID || string(b.RoomID) != p.RoomID {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("claimed_source", p.SourceID).Msg("relay source mismatch, dropping")
		ctl.sendError(conn, "source_mismatch", "sourceId does not match this connection")
		return
	}

	if err := ctl.Orch.Route(domain.RoomID(p.RoomID), domain.ParticipantID(p.TargetID), core.Frame(data)); err != nil {
		// Best-effort delivery: report to the sender and drop. The
		// negotiation protocol above us owns retries.
		ctl.sendErr(conn, err)
	}
}
