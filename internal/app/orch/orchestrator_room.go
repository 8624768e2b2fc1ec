package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/app"
	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

// CreateRoom creates a room or takes over an unlocked one, binds the
// connection as its admin and reports the fresh room code.
func (o *Orchestrator) CreateRoom(sid core.SessionID, conn core.SignalConnection, roomID domain.RoomID, adminName string) (protocol.RoomCreated, error) {
	res, err := o.Registry.CreateOrTakeOver(roomID, adminName, conn)
	if err != nil {
		return protocol.RoomCreated{}, err
	}
	o.Registry.Bind(sid, app.Binding{RoomID: roomID, ParticipantID: res.AdminID, Role: domain.RoleAdmin, Conn: conn})
	return protocol.RoomCreated{
		Type:     protocol.TypeRoomCreated,
		RoomID:   string(roomID),
		AdminID:  string(res.AdminID),
		RoomCode: string(res.Code),
		Name:     adminName,
		IsNew:    res.IsNew,
	}, nil
}

// SetLock toggles admin takeover protection. Only the connection bound as
// the room's admin may flip it.
func (o *Orchestrator) SetLock(sid core.SessionID, roomID domain.RoomID, locked bool) error {
	room, ok := o.Registry.Lookup(roomID)
	if !ok {
		return core.ErrRoomNotFound
	}
	if !o.isAdmin(sid, room) {
		return core.ErrNotAdmin
	}
	room.SetLocked(locked)
	log.Info().Str("module", "orch").Str("room", string(roomID)).Bool("locked", locked).Msg("room lock changed")
	return nil
}

// Leave handles an explicit leave-room. The leaving identity is the one
// bound to the connection, not whatever id the message claims.
func (o *Orchestrator) Leave(sid core.SessionID) {
	b, ok := o.Registry.BindingOf(sid)
	if !ok {
		return
	}
	o.removeBySID(sid, b)
}

// OnDisconnect runs the same cleanup as an explicit leave: a dropped
// connection is a lifecycle event, not an error. One pass removes the
// participant from every map so the relay never resolves a stale target.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	b, ok := o.Registry.BindingOf(sid)
	if !ok {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(b.RoomID)).Msg("connection gone, cleaning up")
	o.removeBySID(sid, b)
}

func (o *Orchestrator) removeBySID(sid core.SessionID, b app.Binding) {
	room, ok := o.Registry.Lookup(b.RoomID)
	if !ok {
		o.Registry.Unbind(sid)
		return
	}

	switch b.Role {
	case domain.RoleAdmin:
		// Closing the room requires that this connection still holds the
		// admin seat; a binding left over from before a takeover must not
		// tear the room down for its successor.
		if room.AdminID() == b.ParticipantID && room.IsAdminConn(b.Conn) {
			o.closeRoom(room)
			return // Destroy already dropped the bindings
		}
	case domain.RolePeer:
		if _, wasPending := room.RemovePending(b.ParticipantID); wasPending {
			break // never admitted, nobody to notify
		}
		if name, ok := room.RemoveParticipant(b.ParticipantID); ok {
			o.notifyPeerGone(room, b.ParticipantID, name)
		}
	case domain.RoleViewer:
		room.RemoveViewer(b.ParticipantID)
	}
	o.Registry.Unbind(sid)
}

// closeRoom cascades room-closed to every member and destroys the room.
// Admin departure always closes the room.
func (o *Orchestrator) closeRoom(room *core.Room) {
	closed := protocol.RoomClosed{Type: protocol.TypeRoomClosed, RoomID: string(room.ID())}
	room.ForEachParticipant(func(_ domain.ParticipantID, _ string, conn core.SignalConnection) {
		o.send(conn, closed)
	})
	room.ForEachViewer(func(_ domain.ParticipantID, conn core.SignalConnection) {
		o.send(conn, closed)
	})
	o.Registry.Destroy(room.ID())
	log.Info().Str("module", "orch").Str("room", string(room.ID())).Msg("room closed")
}

// notifyPeerGone tells the admin and remaining actives (participant-left)
// and the viewers (peer-left) that an active participant is gone.
func (o *Orchestrator) notifyPeerGone(room *core.Room, id domain.ParticipantID, name string) {
	left := protocol.ParticipantLeft{
		Type:          protocol.TypeParticipantLeft,
		RoomID:        string(room.ID()),
		ParticipantID: string(id),
		Name:          name,
	}
	o.send(room.AdminConn(), left)
	room.ForEachParticipant(func(pid domain.ParticipantID, _ string, conn core.SignalConnection) {
		if pid == id {
			return
		}
		o.send(conn, left)
	})
	gone := protocol.PeerLeft{Type: protocol.TypePeerLeft, RoomID: string(room.ID()), PeerID: string(id), Name: name}
	room.ForEachViewer(func(_ domain.ParticipantID, conn core.SignalConnection) {
		o.send(conn, gone)
	})
}

func (o *Orchestrator) isAdmin(sid core.SessionID, room *core.Room) bool {
	b, ok := o.Registry.BindingOf(sid)
	return ok && b.Role == domain.RoleAdmin && b.ParticipantID == room.AdminID()
}
