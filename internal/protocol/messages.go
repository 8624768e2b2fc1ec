// Package protocol defines the signaling wire messages: tagged JSON
// objects exchanged over a persistent per-participant connection. Every
// inbound variant is decoded at the boundary and validated before
// dispatch; negotiation payloads stay opaque raw JSON end to end.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

// Endpoint → server.
const (
	TypeCreateRoom   Type = "create-room"
	TypeJoinRoom     Type = "join-room"
	TypeAcceptPeer   Type = "accept-peer"
	TypeRejectPeer   Type = "reject-peer"
	TypeLockRoom     Type = "lock-room"
	TypeUnlockRoom   Type = "unlock-room"
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
	TypeLeaveRoom    Type = "leave-room"
	TypeJoinAsViewer Type = "join-as-viewer"
	TypeViewerLeave  Type = "viewer-leave"
)

// Server → endpoint.
const (
	TypeRoomCreated        Type = "room-created"
	TypeJoinAccepted       Type = "join-accepted"
	TypeJoinRejected       Type = "join-rejected"
	TypeParticipantRequest Type = "participant-request"
	TypeParticipantJoined  Type = "participant-joined"
	TypeParticipantLeft    Type = "participant-left"
	TypeRoomClosed         Type = "room-closed"
	TypeRoomInfo           Type = "room-info"
	TypePeerJoined         Type = "peer-joined"
	TypePeerLeft           Type = "peer-left"
	TypeRoomLocked         Type = "room-locked"
	TypeRoomUnlocked       Type = "room-unlocked"
	TypeAcceptPeerSuccess  Type = "accept-peer-success"
	TypeRejectPeerSuccess  Type = "reject-peer-success"
	TypeError              Type = "error"
)

var ErrMissingField = errors.New("missing required field")

// Envelope carries only the tag; handlers decode the full variant after
// switching on it.
type Envelope struct {
	Type Type `json:"type"`
}

type CreateRoom struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

func (m CreateRoom) Validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("create-room: roomId: %w", ErrMissingField)
	}
	return nil
}

type JoinRoom struct {
	Type     Type   `json:"type"`
	RoomID   string `json:"roomId"`
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

func (m JoinRoom) Validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("join-room: roomId: %w", ErrMissingField)
	}
	if m.RoomCode == "" {
		return fmt.Errorf("join-room: roomCode: %w", ErrMissingField)
	}
	return nil
}

// Decide covers accept-peer and reject-peer; the tag carries the outcome.
type Decide struct {
	Type     Type   `json:"type"`
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}

func (m Decide) Validate() error {
	if m.RoomID == "" || m.TargetID == "" {
		return fmt.Errorf("%s: roomId/targetId: %w", m.Type, ErrMissingField)
	}
	return nil
}

// Lock covers lock-room and unlock-room.
type Lock struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
}

func (m Lock) Validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("%s: roomId: %w", m.Type, ErrMissingField)
	}
	return nil
}

// Relay covers offer, answer and ice-candidate. The server resolves the
// routing fields and forwards the original frame verbatim; it never
// inspects SessionDescription or Candidate.
type Relay struct {
	Type               Type            `json:"type"`
	RoomID             string          `json:"roomId"`
	SourceID           string          `json:"sourceId"`
	TargetID           string          `json:"targetId"`
	SessionDescription json.RawMessage `json:"sessionDescription,omitempty"`
	Candidate          json.RawMessage `json:"candidate,omitempty"`
}

func (m Relay) Validate() error {
	if m.RoomID == "" || m.SourceID == "" || m.TargetID == "" {
		return fmt.Errorf("%s: roomId/sourceId/targetId: %w", m.Type, ErrMissingField)
	}
	switch m.Type {
	case TypeOffer, TypeAnswer:
		if len(m.SessionDescription) == 0 {
			return fmt.Errorf("%s: sessionDescription: %w", m.Type, ErrMissingField)
		}
	case TypeICECandidate:
		if len(m.Candidate) == 0 {
			return fmt.Errorf("ice-candidate: candidate: %w", ErrMissingField)
		}
	}
	return nil
}

type LeaveRoom struct {
	Type          Type   `json:"type"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
}

func (m LeaveRoom) Validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("leave-room: roomId: %w", ErrMissingField)
	}
	return nil
}

type JoinAsViewer struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
}

func (m JoinAsViewer) Validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("join-as-viewer: roomId: %w", ErrMissingField)
	}
	return nil
}

type ViewerLeave struct {
	Type     Type   `json:"type"`
	RoomID   string `json:"roomId"`
	ViewerID string `json:"viewerId"`
}

func (m ViewerLeave) Validate() error {
	if m.RoomID == "" || m.ViewerID == "" {
		return fmt.Errorf("viewer-leave: roomId/viewerId: %w", ErrMissingField)
	}
	return nil
}

type RoomCreated struct {
	Type     Type   `json:"type"`
	RoomID   string `json:"roomId"`
	AdminID  string `json:"adminId"`
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	IsNew    bool   `json:"isNew"`
}

type ParticipantRequest struct {
	Type          Type   `json:"type"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

type JoinAccepted struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
	Name   string `json:"name"`
}

type JoinRejected struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
}

type ParticipantJoined struct {
	Type          Type   `json:"type"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

type ParticipantLeft struct {
	Type          Type   `json:"type"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

type RoomClosed struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
}

type RoomInfo struct {
	Type     Type     `json:"type"`
	RoomID   string   `json:"roomId"`
	ViewerID string   `json:"viewerId"`
	Peers    []string `json:"peers"`
}

type PeerJoined struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
	Name   string `json:"name"`
}

type PeerLeft struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
	Name   string `json:"name"`
}

type LockChanged struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
}

type DecideResult struct {
	Type          Type   `json:"type"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name,omitempty"`
}

type Error struct {
	Type  Type   `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Encode marshals a variant for the wire.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals into the given variant and runs its validation.
func Decode[T interface{ Validate() error }](data []byte, into *T) error {
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return (*into).Validate()
}
