package domain

type (
	RoomID   string
	RoomCode string
)

// Room is the identity of a live room. Membership lives in core.
type Room struct {
	ID   RoomID
	Code RoomCode
}
