package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/domain"
)

type member struct {
	name string
	conn SignalConnection
}

// Room is a threadsafe in-memory room: one admin connection plus the
// pending, active and viewer sets. Every mutation runs under the room's
// own lock so a racing decide and leave can never observe a participant
// in both the pending and active sets. The room never closes
// adapter-owned connections.
type Room struct {
	id   domain.RoomID
	code domain.RoomCode

	mu           sync.RWMutex
	adminID      domain.ParticipantID
	adminName    string
	admin        SignalConnection
	locked       bool
	participants map[domain.ParticipantID]*member
	pending      map[domain.ParticipantID]*member
	viewers      map[domain.ParticipantID]SignalConnection
}

// Snapshot is the membership view handed to a subscribing viewer.
type Snapshot struct {
	AdminID   domain.ParticipantID
	ActiveIDs []domain.ParticipantID
}

func NewRoom(id domain.RoomID, code domain.RoomCode, adminID domain.ParticipantID, adminName string, admin SignalConnection) *Room {
	return &Room{
		id:           id,
		code:         code,
		adminID:      adminID,
		adminName:    adminName,
		admin:        admin,
		locked:       true,
		participants: make(map[domain.ParticipantID]*member),
		pending:      make(map[domain.ParticipantID]*member),
		viewers:      make(map[domain.ParticipantID]SignalConnection),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) Code() domain.RoomCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.code
}

func (r *Room) AdminID() domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adminID
}

func (r *Room) AdminConn() SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}

func (r *Room) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

func (r *Room) SetLocked(locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = locked
}

// Rebind hands the admin seat to a new connection. The admin id survives
// so in-flight relay addressed to it keeps resolving; the room code is
// rotated and the room relocks. Fails while another admin holds the lock.
func (r *Room) Rebind(adminName string, admin SignalConnection, code domain.RoomCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrRoomLocked
	}
	r.adminName = adminName
	r.admin = admin
	r.code = code
	r.locked = true
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("admin", string(r.adminID)).Msg("admin rebound")
	return nil
}

// AddPending queues a requested-but-not-yet-admitted participant.
func (r *Room) AddPending(id domain.ParticipantID, name string, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, id)
	r.pending[id] = &member{name: name, conn: conn}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("participant", string(id)).Msg("pending added")
}

// Promote moves a pending participant into the active set. The pending
// entry is consumed, which is what makes a second decide for the same
// target a no-op.
func (r *Room) Promote(id domain.ParticipantID) (string, SignalConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.pending[id]
	if !ok {
		return "", nil, ErrNotPending
	}
	delete(r.pending, id)
	r.participants[id] = m
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("participant", string(id)).Msg("participant promoted")
	return m.name, m.conn, nil
}

// RemovePending drops a pending entry (reject or disconnect).
func (r *Room) RemovePending(id domain.ParticipantID) (SignalConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.pending[id]
	if !ok {
		return nil, false
	}
	delete(r.pending, id)
	return m.conn, true
}

// RemoveParticipant drops an active entry and reports its display name.
func (r *Room) RemoveParticipant(id domain.ParticipantID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.participants[id]
	if !ok {
		return "", false
	}
	delete(r.participants, id)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("participant", string(id)).Msg("participant removed")
	return m.name, true
}

func (r *Room) AddViewer(id domain.ParticipantID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewers[id] = conn
}

func (r *Room) RemoveViewer(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.viewers, id)
}

// ResolveTarget maps a participant id to its connection: admin first,
// then active participants, then viewers. Pending entries are not
// addressable.
func (r *Room) ResolveTarget(id domain.ParticipantID) (SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == r.adminID {
		return r.admin, true
	}
	if m, ok := r.participants[id]; ok {
		return m.conn, true
	}
	if c, ok := r.viewers[id]; ok {
		return c, true
	}
	return nil, false
}

// ParticipantName reports the display name of an active participant.
func (r *Room) ParticipantName(id domain.ParticipantID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == r.adminID {
		return r.adminName, true
	}
	if m, ok := r.participants[id]; ok {
		return m.name, true
	}
	return "", false
}

func (r *Room) HasPending(id domain.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pending[id]
	return ok
}

func (r *Room) HasParticipant(id domain.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.participants[id]
	return ok
}

func (r *Room) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// MembershipSnapshot lists the admin plus every active participant, the
// view a viewer needs to initiate its own negotiation links.
func (r *Room) MembershipSnapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.ParticipantID, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	return Snapshot{AdminID: r.adminID, ActiveIDs: ids}
}

// ForEachParticipant fans a callback over active participants. The admin
// is not included; it has its own connection.
func (r *Room) ForEachParticipant(fn func(id domain.ParticipantID, name string, conn SignalConnection)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, m := range r.participants {
		fn(id, m.name, m.conn)
	}
}

func (r *Room) ForEachViewer(fn func(id domain.ParticipantID, conn SignalConnection)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.viewers {
		fn(id, c)
	}
}

// IsAdminConn reports whether the given connection currently holds the
// admin seat.
func (r *Room) IsAdminConn(conn SignalConnection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin == conn
}
