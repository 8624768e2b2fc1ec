package core

import "context"

// MediaTransport is the external media engine this process coordinates for.
// The signaling layer only relays the negotiation payloads such an engine
// produces and consumes; it never inspects their structure and never moves
// media itself.
type MediaTransport interface {
	// CreateTransport allocates a media transport and returns its credentials
	// (the opaque blob the remote side needs to connect).
	CreateTransport(ctx context.Context) (credentials []byte, err error)
	// Connect completes the transport handshake with the remote credentials.
	Connect(ctx context.Context, remoteCredentials []byte) error
	// Produce publishes a local track and returns its producer id.
	Produce(ctx context.Context, track []byte) (producerID string, err error)
	// Consume subscribes to a producer and returns the consumable track.
	Consume(ctx context.Context, producerID string) (track []byte, err error)
}
