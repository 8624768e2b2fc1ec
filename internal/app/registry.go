package app

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
)

// Binding is the identity a connection earned through admission. Admin-only
// operations are verified against it instead of trusting message fields.
// Conn is the transport handle the identity was issued to, so lifecycle
// paths can check the binding still belongs to the live connection.
type Binding struct {
	RoomID        domain.RoomID
	ParticipantID domain.ParticipantID
	Role          domain.Role
	Conn          core.SignalConnection
}

// Registry owns the table of live rooms and the connection→identity
// bindings. It is an explicit instance wired into the orchestrator; its
// lifecycle is process start to Teardown.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*core.Room
	bindings map[core.SessionID]Binding
	codeLen  int
}

func NewRegistry(codeLen int) *Registry {
	if codeLen <= 0 {
		codeLen = 6
	}
	return &Registry{
		rooms:    make(map[domain.RoomID]*core.Room),
		bindings: make(map[core.SessionID]Binding),
		codeLen:  codeLen,
	}
}

// CreateResult reports the outcome of CreateOrTakeOver.
type CreateResult struct {
	AdminID domain.ParticipantID
	Code    domain.RoomCode
	IsNew   bool
}

// CreateOrTakeOver creates a locked room under a fresh admin id, or, when
// the room exists unlocked, rebinds the admin seat to the new connection
// (an admin reconnecting or a successor taking control). The admin id
// survives takeover; the room code is rotated either way.
func (r *Registry) CreateOrTakeOver(roomID domain.RoomID, adminName string, conn core.SignalConnection) (CreateResult, error) {
	code := r.newRoomCode()

	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		if err := room.Rebind(adminName, conn, code); err != nil {
			return CreateResult{}, err
		}
		// The admin seat moved to a new connection. Revoke the previous
		// holder's binding so its stale socket carries no admin capability
		// and its eventual disconnect cannot tear the room down.
		for sid, b := range r.bindings {
			if b.RoomID == roomID && b.Role == domain.RoleAdmin {
				delete(r.bindings, sid)
				log.Info().Str("module", "app.registry").Str("room", string(roomID)).Str("sid", string(sid)).Msg("stale admin binding revoked")
			}
		}
		return CreateResult{AdminID: room.AdminID(), Code: code, IsNew: false}, nil
	}

	adminID := domain.NewParticipantID()
	r.rooms[roomID] = core.NewRoom(roomID, code, adminID, adminName, conn)
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Str("admin", string(adminID)).Msg("room created")
	return CreateResult{AdminID: adminID, Code: code, IsNew: true}, nil
}

func (r *Registry) Lookup(roomID domain.RoomID) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// Destroy drops the room. Callers notify members beforehand; the registry
// does not own their connections.
func (r *Registry) Destroy(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
	for sid, b := range r.bindings {
		if b.RoomID == roomID {
			delete(r.bindings, sid)
		}
	}
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room destroyed")
}

// Teardown clears every room and binding on shutdown.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = make(map[domain.RoomID]*core.Room)
	r.bindings = make(map[core.SessionID]Binding)
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) Bind(sid core.SessionID, b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[sid] = b
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(b.RoomID)).Str("participant", string(b.ParticipantID)).Str("role", b.Role.String()).Msg("bound identity")
}

func (r *Registry) BindingOf(sid core.SessionID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[sid]
	return b, ok
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, sid)
}

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newRoomCode returns a short random admission secret. The alphabet skips
// lookalike characters since codes are read aloud.
func (r *Registry) newRoomCode() domain.RoomCode {
	buf := make([]byte, r.codeLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			log.Panic().Err(err).Str("module", "app.registry").Msg("crypto/rand failed")
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return domain.RoomCode(buf)
}
