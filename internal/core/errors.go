package core

import "errors"

// Recoverable failures reported back to the originating connection only.
// None of these terminate the room or other sessions.
var (
	ErrRoomNotFound            = errors.New("room not found")
	ErrRoomLocked              = errors.New("room locked")
	ErrInvalidRoomCode         = errors.New("invalid room code")
	ErrUnknownTarget           = errors.New("unknown target")
	ErrInvalidNegotiationState = errors.New("invalid negotiation state")
	ErrNotAdmin                = errors.New("not room admin")
	ErrNotPending              = errors.New("participant not pending")
	ErrAlreadyJoined           = errors.New("connection already holds an identity")
	ErrBackpressure            = errors.New("backpressure")
)

// ErrorCode is the stable machine code carried by error-tagged wire messages.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomLocked):
		return "room_locked"
	case errors.Is(err, ErrInvalidRoomCode):
		return "invalid_room_code"
	case errors.Is(err, ErrUnknownTarget):
		return "unknown_target"
	case errors.Is(err, ErrInvalidNegotiationState):
		return "invalid_negotiation_state"
	case errors.Is(err, ErrNotAdmin):
		return "not_admin"
	case errors.Is(err, ErrNotPending):
		return "not_pending"
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	default:
		return "internal"
	}
}
