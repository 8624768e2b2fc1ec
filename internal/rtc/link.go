// Package rtc drives the per-pair negotiation handshake against a
// pion PeerConnection: remote description handling, glare policy and
// ICE-candidate buffering.
package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hollan-dev/huddle/internal/core"
	"github.com/hollan-dev/huddle/internal/domain"
)

// PeerTransport is the slice of a peer connection a Link drives.
type PeerTransport interface {
	SignalingState() webrtc.SignalingState
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
}

// Link tracks the negotiation handshake with one remote endpoint.
// Candidates arriving before the remote description are buffered in
// arrival order and flushed, in that order and exactly once, when the
// description lands. Reordering candidates can break connectivity checks
// in the transport underneath, so ordering is an invariant here.
type Link struct {
	remoteID domain.ParticipantID

	mu        sync.Mutex
	pc        PeerTransport
	hasRemote bool
	pending   []webrtc.ICECandidateInit
}

func NewLink(remoteID domain.ParticipantID, pc PeerTransport) *Link {
	return &Link{remoteID: remoteID, pc: pc}
}

func (l *Link) RemoteID() domain.ParticipantID { return l.remoteID }

// ApplyRemoteOffer applies a remote offer. Accepted only while the local
// side is stable; a glared offer is dropped, not applied, so the
// handshake state cannot be corrupted.
func (l *Link) ApplyRemoteOffer(sd webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st := l.pc.SignalingState(); st != webrtc.SignalingStateStable {
		log.Warn().Str("module", "rtc").Str("remote", string(l.remoteID)).Str("state", st.String()).Msg("dropping offer in wrong state")
		return core.ErrInvalidNegotiationState
	}
	return l.applyRemote(sd)
}

// ApplyRemoteAnswer applies a remote answer. Accepted only while a local
// offer is outstanding.
func (l *Link) ApplyRemoteAnswer(sd webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st := l.pc.SignalingState(); st != webrtc.SignalingStateHaveLocalOffer {
		log.Warn().Str("module", "rtc").Str("remote", string(l.remoteID)).Str("state", st.String()).Msg("dropping answer in wrong state")
		return core.ErrInvalidNegotiationState
	}
	return l.applyRemote(sd)
}

func (l *Link) applyRemote(sd webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(sd); err != nil {
		return err
	}
	l.hasRemote = true
	for _, ci := range l.pending {
		if err := l.pc.AddICECandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("remote", string(l.remoteID)).Msg("flush candidate")
		}
	}
	if n := len(l.pending); n > 0 {
		log.Debug().Str("module", "rtc").Str("remote", string(l.remoteID)).Int("count", n).Msg("flushed buffered candidates")
	}
	l.pending = nil
	return nil
}

// AddRemoteCandidate applies a candidate, or buffers it while no remote
// description exists yet.
func (l *Link) AddRemoteCandidate(ci webrtc.ICECandidateInit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasRemote {
		l.pending = append(l.pending, ci)
		log.Debug().Str("module", "rtc").Str("remote", string(l.remoteID)).Int("buffered", len(l.pending)).Msg("queued candidate until remote description")
		return nil
	}
	return l.pc.AddICECandidate(ci)
}

func (l *Link) HasRemoteDescription() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasRemote
}

func (l *Link) BufferedCandidates() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
