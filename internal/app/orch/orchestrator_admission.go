package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/app"
	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

// RequestJoin queues a join request and notifies the admin. The requester
// gets no direct reply on success; the decision arrives later as
// join-accepted or join-rejected.
func (o *Orchestrator) RequestJoin(sid core.SessionID, conn core.SignalConnection, roomID domain.RoomID, code domain.RoomCode, name string) (domain.ParticipantID, error) {
	room, ok := o.Registry.Lookup(roomID)
	if !ok {
		return "", core.ErrRoomNotFound
	}
	if room.Code() != code {
		return "", core.ErrInvalidRoomCode
	}

	// A connection carries at most one identity. A repeated join-room
	// while the earlier request is still pending supersedes it; once the
	// connection's identity is established the request is refused, so a
	// disconnect can never leave a second identity behind in the maps.
	if prev, ok := o.Registry.BindingOf(sid); ok {
		if prevRoom, found := o.Registry.Lookup(prev.RoomID); found {
			if _, wasPending := prevRoom.RemovePending(prev.ParticipantID); !wasPending {
				return "", core.ErrAlreadyJoined
			}
			log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("superseded", string(prev.ParticipantID)).Msg("pending join superseded")
		}
		o.Registry.Unbind(sid)
	}

	p, err := domain.NewParticipant(name, domain.RolePeer)
	if err != nil {
		return "", err
	}
	room.AddPending(p.ID, p.Name, conn)
	o.Registry.Bind(sid, app.Binding{RoomID: roomID, ParticipantID: p.ID, Role: domain.RolePeer, Conn: conn})

	o.send(room.AdminConn(), protocol.ParticipantRequest{
		Type:          protocol.TypeParticipantRequest,
		RoomID:        string(roomID),
		ParticipantID: string(p.ID),
		Name:          p.Name,
	})
	return p.ID, nil
}

// Decide finalizes a pending join request. Only the room's admin, as
// bound at creation time, may decide; a target that is not pending makes
// the call a no-op, which also makes repeated decisions idempotent.
func (o *Orchestrator) Decide(sid core.SessionID, roomID domain.RoomID, targetID domain.ParticipantID, accept bool) error {
	room, ok := o.Registry.Lookup(roomID)
	if !ok {
		return core.ErrRoomNotFound
	}
	if !o.isAdmin(sid, room) {
		return core.ErrNotAdmin
	}

	if accept {
		o.acceptPeer(room, targetID)
	} else {
		o.rejectPeer(room, targetID)
	}
	return nil
}

func (o *Orchestrator) acceptPeer(room *core.Room, targetID domain.ParticipantID) {
	name, conn, err := room.Promote(targetID)
	if err != nil {
		log.Debug().Str("module", "orch").Str("target", string(targetID)).Msg("accept for non-pending target, ignoring")
		return
	}
	roomID := string(room.ID())

	o.send(conn, protocol.JoinAccepted{
		Type:   protocol.TypeJoinAccepted,
		RoomID: roomID,
		PeerID: string(targetID),
		Name:   name,
	})

	joined := protocol.ParticipantJoined{
		Type:          protocol.TypeParticipantJoined,
		RoomID:        roomID,
		ParticipantID: string(targetID),
		Name:          name,
	}
	room.ForEachParticipant(func(pid domain.ParticipantID, _ string, c core.SignalConnection) {
		if pid == targetID {
			return
		}
		o.send(c, joined)
	})

	peerJoined := protocol.PeerJoined{Type: protocol.TypePeerJoined, RoomID: roomID, PeerID: string(targetID), Name: name}
	room.ForEachViewer(func(_ domain.ParticipantID, c core.SignalConnection) {
		o.send(c, peerJoined)
	})

	o.send(room.AdminConn(), protocol.DecideResult{
		Type:          protocol.TypeAcceptPeerSuccess,
		RoomID:        roomID,
		ParticipantID: string(targetID),
		Name:          name,
	})
	log.Info().Str("module", "orch").Str("room", roomID).Str("participant", string(targetID)).Msg("peer accepted")
}

func (o *Orchestrator) rejectPeer(room *core.Room, targetID domain.ParticipantID) {
	conn, ok := room.RemovePending(targetID)
	if !ok {
		log.Debug().Str("module", "orch").Str("target", string(targetID)).Msg("reject for non-pending target, ignoring")
		return
	}
	roomID := string(room.ID())

	o.send(conn, protocol.JoinRejected{Type: protocol.TypeJoinRejected, RoomID: roomID})
	o.send(room.AdminConn(), protocol.DecideResult{
		Type:          protocol.TypeRejectPeerSuccess,
		RoomID:        roomID,
		ParticipantID: string(targetID),
	})
	log.Info().Str("module", "orch").Str("room", roomID).Str("participant", string(targetID)).Msg("peer rejected")
}
