package orch

import (
	"github.com/hollan-dev/huddle/internal/app"
	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

// SubscribeViewer registers a read-only observer and returns the current
// membership snapshot so the viewer can initiate negotiation links to the
// admin and every active participant on its own.
func (o *Orchestrator) SubscribeViewer(sid core.SessionID, conn core.SignalConnection, roomID domain.RoomID) (protocol.RoomInfo, error) {
	room, ok := o.Registry.Lookup(roomID)
	if !ok {
		return protocol.RoomInfo{}, core.ErrRoomNotFound
	}

	viewerID := domain.NewParticipantID()
	room.AddViewer(viewerID, conn)
	o.Registry.Bind(sid, app.Binding{RoomID: roomID, ParticipantID: viewerID, Role: domain.RoleViewer, Conn: conn})

	snap := room.MembershipSnapshot()
	peers := make([]string, 0, len(snap.ActiveIDs)+1)
	peers = append(peers, string(snap.AdminID))
	for _, id := range snap.ActiveIDs {
		peers = append(peers, string(id))
	}
	return protocol.RoomInfo{
		Type:     protocol.TypeRoomInfo,
		RoomID:   string(roomID),
		ViewerID: string(viewerID),
		Peers:    peers,
	}, nil
}

// UnsubscribeViewer drops a viewer silently: viewers are invisible to
// peers, so nobody else is told.
func (o *Orchestrator) UnsubscribeViewer(sid core.SessionID, roomID domain.RoomID, viewerID domain.ParticipantID) {
	room, ok := o.Registry.Lookup(roomID)
	if !ok {
		return
	}
	if b, ok := o.Registry.BindingOf(sid); !ok || b.ParticipantID != viewerID {
		// A connection may only retire the viewer id it was issued.
		return
	}
	room.RemoveViewer(viewerID)
	o.Registry.Unbind(sid)
}
