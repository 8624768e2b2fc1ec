package core

// Frame is a raw signaling payload, already encoded for the wire.
type Frame []byte

// SessionID identifies one transport connection (not a participant:
// a connection acquires a participant identity only through admission).
type SessionID string

// SignalConnection abstracts the per-endpoint messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
