package client

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/domain"
	"github.com/hollan-dev/huddle/internal/protocol"
	"github.com/hollan-dev/huddle/internal/rtc"
)

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "client").Msg("read loop done")
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad frame")
		return
	}

	// A registered waiter consumes the frame first.
	c.mu.Lock()
	if ch, ok := c.waiters[env.Type]; ok {
		delete(c.waiters, env.Type)
		c.mu.Unlock()
		ch <- data
		return
	}
	c.mu.Unlock()

	switch env.Type {
	case protocol.TypeOffer:
		c.handleOffer(data)
	case protocol.TypeAnswer:
		c.handleAnswer(data)
	case protocol.TypeICECandidate:
		c.handleCandidate(data)
	case protocol.TypeParticipantLeft, protocol.TypePeerLeft:
		c.handleGone(data, env.Type)
	case protocol.TypeRoomClosed:
		c.handleRoomClosed()
	case protocol.TypeParticipantRequest, protocol.TypeParticipantJoined,
		protocol.TypePeerJoined, protocol.TypeAcceptPeerSuccess, protocol.TypeRejectPeerSuccess:
		// Roster traffic; surfacing it to an application is out of band
		// for this client, which only maintains negotiation links.
		log.Debug().Str("module", "client").Str("type", string(env.Type)).Msg("roster event")
	default:
		log.Warn().Str("module", "client").Str("type", string(env.Type)).Msg("unhandled frame")
	}
}

// ensureLink lazily creates the negotiation link for a remote endpoint.
func (c *Client) ensureLink(remoteID domain.ParticipantID) (*peerLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pl, ok := c.links[remoteID]; ok {
		return pl, nil
	}
	wc, err := rtc.NewWebRTCConnection(c.rtcCfg, remoteID)
	if err != nil {
		return nil, err
	}
	wc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		c.sendCandidate(remoteID, ci)
	})
	if err := wc.Start(context.Background()); err != nil {
		wc.Close()
		return nil, err
	}
	pl := &peerLink{link: rtc.NewLink(remoteID, wc), conn: wc}
	c.links[remoteID] = pl
	return pl, nil
}

func (c *Client) lookupLink(remoteID domain.ParticipantID) (*peerLink, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pl, ok := c.links[remoteID]
	return pl, ok
}

func (c *Client) dropLink(remoteID domain.ParticipantID) {
	c.mu.Lock()
	pl, ok := c.links[remoteID]
	delete(c.links, remoteID)
	c.mu.Unlock()
	if ok {
		pl.conn.Close()
	}
}

// OfferTo starts (or restarts) a negotiation toward a remote endpoint.
func (c *Client) OfferTo(ctx context.Context, remoteID domain.ParticipantID) error {
	pl, err := c.ensureLink(remoteID)
	if err != nil {
		return err
	}
	offer, err := pl.conn.CreateOfferAndSet()
	if err != nil {
		return err
	}
	sd, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	c.mu.Lock()
	src, room := c.id, c.roomID
	c.mu.Unlock()
	return c.sendJSON(protocol.Relay{
		Type:               protocol.TypeOffer,
		RoomID:             string(room),
		SourceID:           string(src),
		TargetID:           string(remoteID),
		SessionDescription: sd,
	})
}

func (c *Client) handleOffer(data []byte) {
	var p protocol.Relay
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad offer")
		return
	}
	remote := domain.ParticipantID(p.SourceID)
	pl, err := c.ensureLink(remote)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Msg("link for offer")
		return
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(p.SessionDescription, &sd); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad session description")
		return
	}
	if err := pl.link.ApplyRemoteOffer(sd); err != nil {
		// Glared or malformed offer: dropped, never applied.
		return
	}
	answer, err := pl.conn.CreateAnswerAndSet()
	if err != nil {
		log.Error().Err(err).Str("module", "client").Msg("create answer")
		return
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Msg("marshal answer")
		return
	}
	c.mu.Lock()
	src, room := c.id, c.roomID
	c.mu.Unlock()
	if err := c.sendJSON(protocol.Relay{
		Type:               protocol.TypeAnswer,
		RoomID:             string(room),
		SourceID:           string(src),
		TargetID:           string(remote),
		SessionDescription: raw,
	}); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("send answer")
	}
}

func (c *Client) handleAnswer(data []byte) {
	var p protocol.Relay
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad answer")
		return
	}
	pl, ok := c.lookupLink(domain.ParticipantID(p.SourceID))
	if !ok {
		log.Warn().Str("module", "client").Str("source", p.SourceID).Msg("answer for unknown link")
		return
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(p.SessionDescription, &sd); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad session description")
		return
	}
	_ = pl.link.ApplyRemoteAnswer(sd)
}

func (c *Client) handleCandidate(data []byte) {
	var p protocol.Relay
	if err := protocol.Decode(data, &p); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad candidate")
		return
	}
	pl, err := c.ensureLink(domain.ParticipantID(p.SourceID))
	if err != nil {
		log.Error().Err(err).Str("module", "client").Msg("link for candidate")
		return
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(p.Candidate, &ci); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad candidate payload")
		return
	}
	if err := pl.link.AddRemoteCandidate(ci); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("add candidate")
	}
}

func (c *Client) sendCandidate(remoteID domain.ParticipantID, ci webrtc.ICECandidateInit) {
	raw, err := json.Marshal(ci)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Msg("marshal candidate")
		return
	}
	c.mu.Lock()
	src, room := c.id, c.roomID
	c.mu.Unlock()
	if err := c.sendJSON(protocol.Relay{
		Type:      protocol.TypeICECandidate,
		RoomID:    string(room),
		SourceID:  string(src),
		TargetID:  string(remoteID),
		Candidate: raw,
	}); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("remote", string(remoteID)).Msg("send candidate")
	}
}

func (c *Client) handleGone(data []byte, tag protocol.Type) {
	// Either endpoint leaving destroys the pair's link.
	var gone struct {
		ParticipantID string `json:"participantId"`
		PeerID        string `json:"peerId"`
	}
	if err := json.Unmarshal(data, &gone); err != nil {
		return
	}
	id := gone.ParticipantID
	if tag == protocol.TypePeerLeft {
		id = gone.PeerID
	}
	if id != "" {
		c.dropLink(domain.ParticipantID(id))
	}
}

func (c *Client) handleRoomClosed() {
	log.Info().Str("module", "client").Msg("room closed by admin")
	c.mu.Lock()
	links := c.links
	c.links = make(map[domain.ParticipantID]*peerLink)
	c.roomID = ""
	c.mu.Unlock()
	for _, pl := range links {
		pl.conn.Close()
	}
}
