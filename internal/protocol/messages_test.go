package protocol

import (
	"errors"
	"testing"
)

func TestDecodeRelayOffer(t *testing.T) {
	raw := []byte(`{"type":"offer","roomId":"alpha","sourceId":"a","targetId":"b","sessionDescription":{"type":"offer","sdp":"v=0"}}`)
	var m Relay
	if err := Decode(raw, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != TypeOffer || m.RoomID != "alpha" || m.TargetID != "b" {
		t.Fatalf("unexpected fields: %+v", m)
	}
	if len(m.SessionDescription) == 0 {
		t.Fatal("session description must survive as raw JSON")
	}
}

func TestRelayValidation(t *testing.T) {
	cases := []struct {
		name string
		m    Relay
		ok   bool
	}{
		{"offer without description", Relay{Type: TypeOffer, RoomID: "r", SourceID: "a", TargetID: "b"}, false},
		{"candidate without payload", Relay{Type: TypeICECandidate, RoomID: "r", SourceID: "a", TargetID: "b"}, false},
		{"missing target", Relay{Type: TypeAnswer, RoomID: "r", SourceID: "a", SessionDescription: []byte(`{}`)}, false},
		{"candidate ok", Relay{Type: TypeICECandidate, RoomID: "r", SourceID: "a", TargetID: "b", Candidate: []byte(`{}`)}, true},
	}
	for _, tc := range cases {
		err := tc.m.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrMissingField) {
			t.Errorf("%s: got %v, want ErrMissingField", tc.name, err)
		}
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	var join JoinRoom
	if err := Decode([]byte(`{"type":"join-room","roomId":"alpha"}`), &join); !errors.Is(err, ErrMissingField) {
		t.Fatalf("join without code: got %v, want ErrMissingField", err)
	}
	var create CreateRoom
	if err := Decode([]byte(`{"type":"create-room","name":"Alice"}`), &create); !errors.Is(err, ErrMissingField) {
		t.Fatalf("create without roomId: got %v, want ErrMissingField", err)
	}
	var decide Decide
	if err := Decode([]byte(`{"type":"accept-peer","roomId":"alpha"}`), &decide); !errors.Is(err, ErrMissingField) {
		t.Fatalf("decide without target: got %v, want ErrMissingField", err)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	var m JoinRoom
	if err := Decode([]byte(`{"type":`), &m); err == nil {
		t.Fatal("expected decode error for malformed JSON")
	}
}
