package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
)

type fakeConn struct{}

func (fakeConn) TrySend(core.Frame) error { return nil }
func (fakeConn) Close()                   {}

func TestCreateRoom(t *testing.T) {
	reg := NewRegistry(6)
	res, err := reg.CreateOrTakeOver("alpha", "Alice", fakeConn{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !res.IsNew || res.AdminID == "" || len(res.Code) != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	room, ok := reg.Lookup("alpha")
	if !ok {
		t.Fatal("room not stored")
	}
	if !room.Locked() {
		t.Fatal("fresh room must be locked")
	}
}

func TestTakeOverPreservesAdminID(t *testing.T) {
	reg := NewRegistry(6)
	first, _ := reg.CreateOrTakeOver("alpha", "Alice", fakeConn{})

	if _, err := reg.CreateOrTakeOver("alpha", "Mallory", fakeConn{}); !errors.Is(err, core.ErrRoomLocked) {
		t.Fatalf("takeover of locked room: got %v, want ErrRoomLocked", err)
	}

	room, _ := reg.Lookup("alpha")
	room.SetLocked(false)

	second, err := reg.CreateOrTakeOver("alpha", "Bob", fakeConn{})
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if second.IsNew {
		t.Fatal("takeover must not report a new room")
	}
	if second.AdminID != first.AdminID {
		t.Fatal("admin id must survive takeover")
	}
	if second.Code == first.Code {
		t.Fatal("room code must be regenerated on takeover")
	}
	if !room.Locked() {
		t.Fatal("room must relock after takeover")
	}
}

func TestTakeOverRevokesOldAdminBinding(t *testing.T) {
	reg := NewRegistry(6)
	first, _ := reg.CreateOrTakeOver("alpha", "Alice", fakeConn{})
	reg.Bind("sid-old", Binding{RoomID: "alpha", ParticipantID: first.AdminID, Role: domain.RoleAdmin})
	reg.Bind("sid-peer", Binding{RoomID: "alpha", ParticipantID: "p1", Role: domain.RolePeer})

	room, _ := reg.Lookup("alpha")
	room.SetLocked(false)
	if _, err := reg.CreateOrTakeOver("alpha", "Bob", fakeConn{}); err != nil {
		t.Fatalf("takeover: %v", err)
	}

	if _, ok := reg.BindingOf("sid-old"); ok {
		t.Fatal("previous admin binding must be revoked on takeover")
	}
	if _, ok := reg.BindingOf("sid-peer"); !ok {
		t.Fatal("peer binding must survive takeover")
	}
}

func TestDestroyDropsBindings(t *testing.T) {
	reg := NewRegistry(6)
	res, _ := reg.CreateOrTakeOver("alpha", "Alice", fakeConn{})
	reg.Bind("sid-a", Binding{RoomID: "alpha", ParticipantID: res.AdminID, Role: domain.RoleAdmin})
	reg.Bind("sid-x", Binding{RoomID: "beta", ParticipantID: "p9", Role: domain.RolePeer})

	reg.Destroy("alpha")
	if _, ok := reg.Lookup("alpha"); ok {
		t.Fatal("room still present after destroy")
	}
	if _, ok := reg.BindingOf("sid-a"); ok {
		t.Fatal("binding for destroyed room must be dropped")
	}
	if _, ok := reg.BindingOf("sid-x"); !ok {
		t.Fatal("binding for another room must survive")
	}
}

func TestTeardown(t *testing.T) {
	reg := NewRegistry(6)
	reg.CreateOrTakeOver("alpha", "Alice", fakeConn{})
	reg.CreateOrTakeOver("beta", "Bob", fakeConn{})
	reg.Teardown()
	if reg.RoomCount() != 0 {
		t.Fatalf("rooms left after teardown: %d", reg.RoomCount())
	}
}

func TestRoomCodeAlphabet(t *testing.T) {
	reg := NewRegistry(8)
	res, _ := reg.CreateOrTakeOver("alpha", "Alice", fakeConn{})
	if len(res.Code) != 8 {
		t.Fatalf("code length = %d, want 8", len(res.Code))
	}
	for _, r := range string(res.Code) {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q outside alphabet", res.Code, r)
		}
	}
}
