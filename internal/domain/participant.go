// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

const MaxDisplayNameLen = 36

var ErrDisplayNameTooLong = errors.New("display name too long")

type ParticipantID string

// NewParticipantID allocates a fresh endpoint identifier.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

type Role int

const (
	RoleAdmin Role = iota
	RolePeer
	RoleViewer
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RolePeer:
		return "peer"
	case RoleViewer:
		return "viewer"
	}
	return "unknown"
}

type State int

const (
	StatePending State = iota
	StateActive
	StateLeft
)

// Participant is a room member's meta. No transport fields here.
type Participant struct {
	ID    ParticipantID
	Name  string
	Role  Role
	State State
}

// NewParticipant validates the display name and falls back to a generated
// one when it is empty, so roster events always carry something readable.
func NewParticipant(name string, role Role) (*Participant, error) {
	if len(name) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	if name == "" {
		name = petname.Generate(2, "-")
	}
	return &Participant{ID: NewParticipantID(), Name: name, Role: role, State: StatePending}, nil
}
