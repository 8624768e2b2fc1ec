// Package orch coordinates room lifecycle, admission, relay and viewer
// fan-out on top of the registry. All methods are safe for concurrent
// use; room state is serialized by the room's own lock.
package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/app"
	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

type Orchestrator struct {
	Registry *app.Registry
}

func New(reg *app.Registry) *Orchestrator {
	return &Orchestrator{Registry: reg}
}

// send encodes a variant and pushes it best-effort. A full send buffer
// drops the frame; the negotiation protocol carries its own retries.
func (o *Orchestrator) send(conn core.SignalConnection, v any) {
	b, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("event dropped")
	}
}

// Route delivers a negotiation frame to its target, resolving the id
// against the admin, then active participants, then viewers. Delivery is
// strictly best-effort: an unresolvable target is logged and dropped.
func (o *Orchestrator) Route(roomID domain.RoomID, targetID domain.ParticipantID, raw core.Frame) error {
	room, ok := o.Registry.Lookup(roomID)
	if !ok {
		return core.ErrRoomNotFound
	}
	conn, ok := room.ResolveTarget(targetID)
	if !ok {
		log.Warn().Str("module", "orch").Str("room", string(roomID)).Str("target", string(targetID)).Msg("relay target not found")
		return core.ErrUnknownTarget
	}
	if err := conn.TrySend(raw); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("target", string(targetID)).Msg("relay frame dropped")
	}
	return nil
}
