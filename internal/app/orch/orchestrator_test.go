package orch

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hollan-dev/huddle/internal/app"
	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeConn) TrySend(b core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, b)
	return nil
}

func (f *fakeConn) Close() {}

// tags decodes the envelope of every frame the connection received.
func (f *fakeConn) tags() []protocol.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Type, 0, len(f.frames))
	for _, b := range f.frames {
		var env protocol.Envelope
		_ = json.Unmarshal(b, &env)
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeConn) count(tag protocol.Type) int {
	n := 0
	for _, t := range f.tags() {
		if t == tag {
			n++
		}
	}
	return n
}

func (f *fakeConn) last(t *testing.T, into any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		t.Fatal("no frames received")
	}
	if err := json.Unmarshal(f.frames[len(f.frames)-1], into); err != nil {
		t.Fatalf("decode last frame: %v", err)
	}
}

type fixture struct {
	o         *Orchestrator
	adminConn *fakeConn
	adminID   domain.ParticipantID
	code      domain.RoomCode
}

const (
	adminSID core.SessionID = "sid-admin"
	peerSID  core.SessionID = "sid-peer"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	o := New(app.NewRegistry(6))
	adminConn := &fakeConn{}
	resp, err := o.CreateRoom(adminSID, adminConn, "alpha", "Alice")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return &fixture{
		o:         o,
		adminConn: adminConn,
		adminID:   domain.ParticipantID(resp.AdminID),
		code:      domain.RoomCode(resp.RoomCode),
	}
}

func (fx *fixture) admitPeer(t *testing.T, sid core.SessionID, name string) (domain.ParticipantID, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	id, err := fx.o.RequestJoin(sid, conn, "alpha", fx.code, name)
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if err := fx.o.Decide(adminSID, "alpha", id, true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return id, conn
}

func TestAdmissionAccept(t *testing.T) {
	fx := newFixture(t)
	peerConn := &fakeConn{}

	pendingID, err := fx.o.RequestJoin(peerSID, peerConn, "alpha", fx.code, "Pat")
	if err != nil {
		t.Fatalf("request join: %v", err)
	}

	var req protocol.ParticipantRequest
	fx.adminConn.last(t, &req)
	if req.Type != protocol.TypeParticipantRequest || req.ParticipantID != string(pendingID) || req.Name != "Pat" {
		t.Fatalf("admin notification wrong: %+v", req)
	}

	if err := fx.o.Decide(adminSID, "alpha", pendingID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	var acc protocol.JoinAccepted
	peerConn.last(t, &acc)
	if acc.Type != protocol.TypeJoinAccepted || acc.PeerID != string(pendingID) {
		t.Fatalf("peer not told of acceptance: %+v", acc)
	}
	// Room was empty: nobody else gets participant-joined, and the
	// accepted peer itself gets only join-accepted.
	if n := peerConn.count(protocol.TypeParticipantJoined); n != 0 {
		t.Fatalf("accepted peer received %d participant-joined frames", n)
	}
	if n := fx.adminConn.count(protocol.TypeAcceptPeerSuccess); n != 1 {
		t.Fatalf("admin accept-peer-success count = %d", n)
	}
}

func TestAdmissionWrongCode(t *testing.T) {
	fx := newFixture(t)
	peerConn := &fakeConn{}

	_, err := fx.o.RequestJoin(peerSID, peerConn, "alpha", "WRONG1", "Pat")
	if !errors.Is(err, core.ErrInvalidRoomCode) {
		t.Fatalf("got %v, want ErrInvalidRoomCode", err)
	}
	room, _ := fx.o.Registry.Lookup("alpha")
	snap := room.MembershipSnapshot()
	if len(snap.ActiveIDs) != 0 {
		t.Fatal("rejected requester must not become active")
	}
	if n := fx.adminConn.count(protocol.TypeParticipantRequest); n != 0 {
		t.Fatal("admin must not be notified for a wrong code")
	}
}

func TestAdmissionUnknownRoom(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.o.RequestJoin(peerSID, &fakeConn{}, "missing", fx.code, "Pat")
	if !errors.Is(err, core.ErrRoomNotFound) {
		t.Fatalf("got %v, want ErrRoomNotFound", err)
	}
}

func TestRejectIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	peerConn := &fakeConn{}
	pendingID, _ := fx.o.RequestJoin(peerSID, peerConn, "alpha", fx.code, "Pat")

	for i := 0; i < 2; i++ {
		if err := fx.o.Decide(adminSID, "alpha", pendingID, false); err != nil {
			t.Fatalf("reject #%d: %v", i+1, err)
		}
	}
	if n := peerConn.count(protocol.TypeJoinRejected); n != 1 {
		t.Fatalf("peer received %d join-rejected frames, want 1", n)
	}
}

func TestDecideRequiresAdmin(t *testing.T) {
	fx := newFixture(t)
	peerConn := &fakeConn{}
	pendingID, _ := fx.o.RequestJoin(peerSID, peerConn, "alpha", fx.code, "Pat")

	// The pending peer tries to admit itself.
	if err := fx.o.Decide(peerSID, "alpha", pendingID, true); !errors.Is(err, core.ErrNotAdmin) {
		t.Fatalf("got %v, want ErrNotAdmin", err)
	}
	room, _ := fx.o.Registry.Lookup("alpha")
	if room.HasParticipant(pendingID) {
		t.Fatal("forged accept must not admit the peer")
	}
}

func TestSecondPeerSeesJoin(t *testing.T) {
	fx := newFixture(t)
	_, firstConn := fx.admitPeer(t, peerSID, "Pat")
	secondID, secondConn := fx.admitPeer(t, "sid-peer2", "Quinn")

	var joined protocol.ParticipantJoined
	firstConn.last(t, &joined)
	if joined.Type != protocol.TypeParticipantJoined || joined.ParticipantID != string(secondID) || joined.Name != "Quinn" {
		t.Fatalf("first peer notification wrong: %+v", joined)
	}
	if n := secondConn.count(protocol.TypeParticipantJoined); n != 0 {
		t.Fatal("newly accepted peer must not receive participant-joined for itself")
	}
}

func TestViewerFlow(t *testing.T) {
	fx := newFixture(t)
	peerID, _ := fx.admitPeer(t, peerSID, "Pat")

	viewerConn := &fakeConn{}
	info, err := fx.o.SubscribeViewer("sid-viewer", viewerConn, "alpha")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	want := map[string]bool{string(fx.adminID): true, string(peerID): true}
	if len(info.Peers) != 2 || !want[info.Peers[0]] || !want[info.Peers[1]] {
		t.Fatalf("room-info peers = %v, want admin and peer", info.Peers)
	}

	fx.o.Leave(peerSID)

	var left protocol.PeerLeft
	viewerConn.last(t, &left)
	if left.Type != protocol.TypePeerLeft || left.PeerID != string(peerID) {
		t.Fatalf("viewer not told of departure: %+v", left)
	}
	if n := fx.adminConn.count(protocol.TypeParticipantLeft); n != 1 {
		t.Fatalf("admin participant-left count = %d", n)
	}
}

func TestViewerSubscribeUnknownRoom(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.o.SubscribeViewer("sid-viewer", &fakeConn{}, "missing"); !errors.Is(err, core.ErrRoomNotFound) {
		t.Fatalf("got %v, want ErrRoomNotFound", err)
	}
}

func TestRouteResolvesRoles(t *testing.T) {
	fx := newFixture(t)
	peerID, peerConn := fx.admitPeer(t, peerSID, "Pat")

	raw := core.Frame(`{"type":"offer","roomId":"alpha","sourceId":"x","targetId":"y","sessionDescription":{}}`)
	if err := fx.o.Route("alpha", peerID, raw); err != nil {
		t.Fatalf("route to peer: %v", err)
	}
	peerConn.mu.Lock()
	got := string(peerConn.frames[len(peerConn.frames)-1])
	peerConn.mu.Unlock()
	if got != string(raw) {
		t.Fatal("relayed frame must be forwarded verbatim")
	}

	if err := fx.o.Route("alpha", fx.adminID, raw); err != nil {
		t.Fatalf("route to admin: %v", err)
	}
	if err := fx.o.Route("alpha", "nobody", raw); !errors.Is(err, core.ErrUnknownTarget) {
		t.Fatalf("got %v, want ErrUnknownTarget", err)
	}
	if err := fx.o.Route("missing", peerID, raw); !errors.Is(err, core.ErrRoomNotFound) {
		t.Fatalf("got %v, want ErrRoomNotFound", err)
	}
}

func TestAdminLeaveClosesRoom(t *testing.T) {
	fx := newFixture(t)
	_, peerConn := fx.admitPeer(t, peerSID, "Pat")
	viewerConn := &fakeConn{}
	fx.o.SubscribeViewer("sid-viewer", viewerConn, "alpha")

	fx.o.OnDisconnect(adminSID)

	if n := peerConn.count(protocol.TypeRoomClosed); n != 1 {
		t.Fatalf("peer room-closed count = %d", n)
	}
	if n := viewerConn.count(protocol.TypeRoomClosed); n != 1 {
		t.Fatalf("viewer room-closed count = %d", n)
	}
	if _, ok := fx.o.Registry.Lookup("alpha"); ok {
		t.Fatal("room must be destroyed when the admin leaves")
	}
	if _, ok := fx.o.Registry.BindingOf(peerSID); ok {
		t.Fatal("peer binding must be dropped with the room")
	}
}

func TestPendingDisconnectIsSilent(t *testing.T) {
	fx := newFixture(t)
	pendingID, _ := fx.o.RequestJoin(peerSID, &fakeConn{}, "alpha", fx.code, "Pat")

	before := fx.adminConn.count(protocol.TypeParticipantLeft)
	fx.o.OnDisconnect(peerSID)

	if n := fx.adminConn.count(protocol.TypeParticipantLeft); n != before {
		t.Fatal("pending disconnect must not announce participant-left")
	}
	room, _ := fx.o.Registry.Lookup("alpha")
	if room.HasPending(pendingID) {
		t.Fatal("pending entry must be removed on disconnect")
	}
}

func TestSetLockAuthorization(t *testing.T) {
	fx := newFixture(t)
	fx.admitPeer(t, peerSID, "Pat")

	if err := fx.o.SetLock(peerSID, "alpha", false); !errors.Is(err, core.ErrNotAdmin) {
		t.Fatalf("peer unlock: got %v, want ErrNotAdmin", err)
	}
	if err := fx.o.SetLock(adminSID, "alpha", false); err != nil {
		t.Fatalf("admin unlock: %v", err)
	}
	room, _ := fx.o.Registry.Lookup("alpha")
	if room.Locked() {
		t.Fatal("room should be unlocked")
	}
}

func TestTakeoverRevokesOldAdmin(t *testing.T) {
	fx := newFixture(t)
	_, peerConn := fx.admitPeer(t, peerSID, "Pat")

	if err := fx.o.SetLock(adminSID, "alpha", false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	nextConn := &fakeConn{}
	resp, err := fx.o.CreateRoom("sid-admin2", nextConn, "alpha", "Bob")
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if resp.AdminID != string(fx.adminID) {
		t.Fatal("admin id must survive takeover")
	}

	// The previous admin connection going away must not close the room
	// for the successor.
	fx.o.OnDisconnect(adminSID)
	if _, ok := fx.o.Registry.Lookup("alpha"); !ok {
		t.Fatal("room destroyed by the old admin connection's disconnect")
	}
	if n := peerConn.count(protocol.TypeRoomClosed); n != 0 {
		t.Fatalf("peer received %d room-closed frames", n)
	}

	// The revoked connection holds no admin capability either.
	pendingID, _ := fx.o.RequestJoin("sid-peer2", &fakeConn{}, "alpha", domain.RoomCode(resp.RoomCode), "Quinn")
	if err := fx.o.Decide(adminSID, "alpha", pendingID, true); !errors.Is(err, core.ErrNotAdmin) {
		t.Fatalf("old admin decide: got %v, want ErrNotAdmin", err)
	}
	if err := fx.o.Decide("sid-admin2", "alpha", pendingID, true); err != nil {
		t.Fatalf("new admin decide: %v", err)
	}
}

func TestAdminBindingOnOtherConnCannotCloseRoom(t *testing.T) {
	fx := newFixture(t)
	_, peerConn := fx.admitPeer(t, peerSID, "Pat")

	// An admin-role binding whose connection no longer holds the admin
	// seat only gets unbound on disconnect.
	fx.o.Registry.Bind("sid-stale", app.Binding{
		RoomID: "alpha", ParticipantID: fx.adminID, Role: domain.RoleAdmin, Conn: &fakeConn{},
	})
	fx.o.OnDisconnect("sid-stale")

	if _, ok := fx.o.Registry.Lookup("alpha"); !ok {
		t.Fatal("room destroyed by a connection that does not hold the admin seat")
	}
	if n := peerConn.count(protocol.TypeRoomClosed); n != 0 {
		t.Fatalf("peer received %d room-closed frames", n)
	}
	if _, ok := fx.o.Registry.BindingOf("sid-stale"); ok {
		t.Fatal("stale binding must still be dropped")
	}
}

func TestRepeatJoinSupersedesPending(t *testing.T) {
	fx := newFixture(t)
	peerConn := &fakeConn{}
	firstID, _ := fx.o.RequestJoin(peerSID, peerConn, "alpha", fx.code, "Pat")
	secondID, err := fx.o.RequestJoin(peerSID, peerConn, "alpha", fx.code, "Pat")
	if err != nil {
		t.Fatalf("repeat join: %v", err)
	}

	room, _ := fx.o.Registry.Lookup("alpha")
	if room.HasPending(firstID) {
		t.Fatal("superseded request must leave the pending set")
	}

	// Accepting the superseded id is a no-op; the live id goes through.
	if err := fx.o.Decide(adminSID, "alpha", firstID, true); err != nil {
		t.Fatalf("decide on superseded id: %v", err)
	}
	if n := peerConn.count(protocol.TypeJoinAccepted); n != 0 {
		t.Fatal("superseded id must not be admitted")
	}
	if err := fx.o.Decide(adminSID, "alpha", secondID, true); err != nil {
		t.Fatalf("decide on live id: %v", err)
	}

	var acc protocol.JoinAccepted
	peerConn.last(t, &acc)
	if acc.Type != protocol.TypeJoinAccepted || acc.PeerID != string(secondID) {
		t.Fatalf("acceptance carries wrong id: %+v", acc)
	}

	// One disconnect clears everything the connection ever owned.
	fx.o.OnDisconnect(peerSID)
	if room.HasParticipant(firstID) || room.HasParticipant(secondID) {
		t.Fatal("participant left active after its connection disconnected")
	}
	if _, ok := room.ResolveTarget(firstID); ok {
		t.Fatal("superseded id still resolves as a relay target")
	}
}

func TestJoinRefusedOnceActive(t *testing.T) {
	fx := newFixture(t)
	peerID, peerConn := fx.admitPeer(t, peerSID, "Pat")

	if _, err := fx.o.RequestJoin(peerSID, peerConn, "alpha", fx.code, "Pat"); !errors.Is(err, core.ErrAlreadyJoined) {
		t.Fatalf("got %v, want ErrAlreadyJoined", err)
	}
	room, _ := fx.o.Registry.Lookup("alpha")
	if !room.HasParticipant(peerID) {
		t.Fatal("refused re-join must not disturb the active identity")
	}
}

func TestEmptyNameGetsFallback(t *testing.T) {
	fx := newFixture(t)
	pendingID, _ := fx.o.RequestJoin(peerSID, &fakeConn{}, "alpha", fx.code, "")
	if err := fx.o.Decide(adminSID, "alpha", pendingID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	room, _ := fx.o.Registry.Lookup("alpha")
	name, ok := room.ParticipantName(pendingID)
	if !ok || name == "" {
		t.Fatalf("expected generated display name, got %q", name)
	}
}
