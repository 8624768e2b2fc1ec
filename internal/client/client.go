// Package client is a Go endpoint for the huddle signaling server: it
// performs the create/join/viewer flows and keeps one negotiation link
// per remote endpoint, answering offers and trickling ICE candidates.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
	"github.com/hollan-dev/huddle/internal/rtc"
)

const (
	writeWait      = 10 * time.Second
	requestTimeout = 15 * time.Second
	maxMessageSize = 64 * 1024
)

// peerLink pairs a negotiation link with the transport it drives.
type peerLink struct {
	link *rtc.Link
	conn *rtc.WebRTCConnection
}

type Client struct {
	serverURL string
	rtcCfg    webrtc.Configuration
	media     core.MediaTransport // optional external media engine

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	id      domain.ParticipantID
	roomID  domain.RoomID
	links   map[domain.ParticipantID]*peerLink
	waiters map[protocol.Type]chan []byte
	closed  bool
}

type Option func(*Client)

// WithMediaTransport attaches the external media engine whose
// negotiation payloads this client forwards.
func WithMediaTransport(mt core.MediaTransport) Option {
	return func(c *Client) { c.media = mt }
}

func WithWebRTCConfig(cfg webrtc.Configuration) Option {
	return func(c *Client) { c.rtcCfg = cfg }
}

func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: serverURL,
		rtcCfg:    rtc.DefaultWebRTCConfig(),
		links:     make(map[domain.ParticipantID]*peerLink),
		waiters:   make(map[protocol.Type]chan []byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the signaling server and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial signaling server: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	c.conn = conn
	go c.readLoop()
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	links := c.links
	c.links = make(map[domain.ParticipantID]*peerLink)
	c.mu.Unlock()

	for _, pl := range links {
		pl.conn.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) ID() domain.ParticipantID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) sendJSON(v any) error {
	b, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// request sends a message and waits for the first frame carrying one of
// the expected reply tags. Replies are correlated by tag with a bounded
// timeout instead of callback chains.
func (c *Client) request(ctx context.Context, msg any, replies ...protocol.Type) ([]byte, error) {
	ch := make(chan []byte, 1)
	c.mu.Lock()
	for _, t := range replies {
		c.waiters[t] = ch
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		for _, t := range replies {
			if c.waiters[t] == ch {
				delete(c.waiters, t)
			}
		}
		c.mu.Unlock()
	}()

	if err := c.sendJSON(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("no reply within %s", requestTimeout)
	case data := <-ch:
		return data, nil
	}
}

// CreateRoom claims (or takes over) a room as admin.
func (c *Client) CreateRoom(ctx context.Context, roomID domain.RoomID, name string) (protocol.RoomCreated, error) {
	data, err := c.request(ctx, protocol.CreateRoom{
		Type:   protocol.TypeCreateRoom,
		RoomID: string(roomID),
		Name:   name,
	}, protocol.TypeRoomCreated, protocol.TypeError)
	if err != nil {
		return protocol.RoomCreated{}, err
	}
	var resp protocol.RoomCreated
	if err := decodeReply(data, &resp); err != nil {
		return protocol.RoomCreated{}, err
	}
	c.mu.Lock()
	c.id = domain.ParticipantID(resp.AdminID)
	c.roomID = roomID
	c.mu.Unlock()
	return resp, nil
}

// JoinRoom requests admission and blocks until the admin decides.
func (c *Client) JoinRoom(ctx context.Context, roomID domain.RoomID, code domain.RoomCode, name string) (protocol.JoinAccepted, error) {
	data, err := c.request(ctx, protocol.JoinRoom{
		Type:     protocol.TypeJoinRoom,
		RoomID:   string(roomID),
		RoomCode: string(code),
		Name:     name,
	}, protocol.TypeJoinAccepted, protocol.TypeJoinRejected, protocol.TypeError)
	if err != nil {
		return protocol.JoinAccepted{}, err
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return protocol.JoinAccepted{}, err
	}
	if env.Type == protocol.TypeJoinRejected {
		return protocol.JoinAccepted{}, fmt.Errorf("join rejected by admin")
	}
	var resp protocol.JoinAccepted
	if err := decodeReply(data, &resp); err != nil {
		return protocol.JoinAccepted{}, err
	}
	c.mu.Lock()
	c.id = domain.ParticipantID(resp.PeerID)
	c.roomID = roomID
	c.mu.Unlock()
	return resp, nil
}

// JoinAsViewer subscribes read-only and offers to every listed endpoint.
func (c *Client) JoinAsViewer(ctx context.Context, roomID domain.RoomID) (protocol.RoomInfo, error) {
	data, err := c.request(ctx, protocol.JoinAsViewer{
		Type:   protocol.TypeJoinAsViewer,
		RoomID: string(roomID),
	}, protocol.TypeRoomInfo, protocol.TypeError)
	if err != nil {
		return protocol.RoomInfo{}, err
	}
	var resp protocol.RoomInfo
	if err := decodeReply(data, &resp); err != nil {
		return protocol.RoomInfo{}, err
	}
	c.mu.Lock()
	c.id = domain.ParticipantID(resp.ViewerID)
	c.roomID = roomID
	c.mu.Unlock()

	for _, peer := range resp.Peers {
		if err := c.OfferTo(ctx, domain.ParticipantID(peer)); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("peer", peer).Msg("offer to peer failed")
		}
	}
	return resp, nil
}

// Leave announces departure. The server cascades notifications; local
// links are torn down immediately.
func (c *Client) Leave() error {
	c.mu.Lock()
	roomID, id := c.roomID, c.id
	links := c.links
	c.links = make(map[domain.ParticipantID]*peerLink)
	c.mu.Unlock()

	for _, pl := range links {
		pl.conn.Close()
	}
	if roomID == "" {
		return nil
	}
	return c.sendJSON(protocol.LeaveRoom{
		Type:          protocol.TypeLeaveRoom,
		RoomID:        string(roomID),
		ParticipantID: string(id),
	})
}

func decodeReply[T any](data []byte, into *T) error {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Type == protocol.TypeError {
		var e protocol.Error
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		return fmt.Errorf("server error %s: %s", e.Code, e.Error)
	}
	return json.Unmarshal(data, into)
}
