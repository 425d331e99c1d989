package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/rtcstats"
	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/util"
)

// Peer wraps one PeerConnection and implements session.Peer. Engine
// callbacks are forwarded to the session.PeerEvents given at creation.
type Peer struct {
	pc     *webrtc.PeerConnection
	events session.PeerEvents

	mu      sync.Mutex
	senders []*Sender
	remotes map[string]*RemoteTrack
	closed  bool
}

var _ session.Peer = (*Peer)(nil)

func newPeer(pc *webrtc.PeerConnection, events session.PeerEvents) *Peer {
	p := &Peer{
		pc:      pc,
		events:  events,
		remotes: make(map[string]*RemoteTrack),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if c == nil {
			return
		}
		p.events.OnICECandidate(toCandidate(c.ToJSON()))
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		util.LogDebug("ICE connection state: %s", state.String())
		p.events.OnICEStateChange(session.ICEState(state.String()))
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
	})

	pc.OnTrack(p.handleTrack)

	return p
}

// ---------------------------------------------------------------------------
// Tracks
// ---------------------------------------------------------------------------

// AddTrack attaches a local track produced by this package's media sources.
func (p *Peer) AddTrack(track session.LocalTrack) error {
	local, ok := track.(*LocalTrack)
	if !ok {
		return fmt.Errorf("unsupported local track %T", track)
	}

	rtpSender, err := p.pc.AddTrack(local.rtc)
	if err != nil {
		return err
	}

	// Drain RTCP so interceptors keep working.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := rtpSender.Read(buf); err != nil {
				return
			}
		}
	}()

	p.mu.Lock()
	p.senders = append(p.senders, &Sender{rtp: rtpSender, kind: local.kind})
	p.mu.Unlock()
	return nil
}

func (p *Peer) Senders() []session.Sender {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]session.Sender, 0, len(p.senders))
	for _, s := range p.senders {
		out = append(out, s)
	}
	return out
}

func (p *Peer) RemoveSender(s session.Sender) error {
	sender, ok := s.(*Sender)
	if !ok {
		return fmt.Errorf("unsupported sender %T", s)
	}

	p.mu.Lock()
	for i, cur := range p.senders {
		if cur == sender {
			p.senders = append(p.senders[:i], p.senders[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	return p.pc.RemoveTrack(sender.rtp)
}

func (p *Peer) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	remote := newRemoteTrack(track)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.remotes[remote.ID()] = remote
	p.mu.Unlock()

	util.LogInfo("remote %s track %s (%s)", remote.Kind(), remote.ID(), track.Codec().MimeType)

	if remote.Kind() == session.KindVideo {
		p.requestKeyframe(track)
	}

	p.events.OnTrack(remote)

	go func() {
		remote.pump()

		p.mu.Lock()
		delete(p.remotes, remote.ID())
		p.mu.Unlock()

		p.events.OnTrackEnded(remote)
	}()
}

// requestKeyframe asks the sender for a keyframe so the frame size is known
// without waiting for the next periodic one.
func (p *Peer) requestKeyframe(track *webrtc.TrackRemote) {
	err := p.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
	})
	if err != nil {
		util.LogDebug("failed to send PLI: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

func (p *Peer) CreateOffer() (protocol.Description, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return protocol.Description{}, err
	}
	return toDescription(offer), nil
}

func (p *Peer) CreateAnswer() (protocol.Description, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.Description{}, err
	}
	return toDescription(answer), nil
}

func (p *Peer) SetLocalDescription(desc protocol.Description) error {
	return p.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

// SetRemoteDescription validates desc (session.ErrSDPParse) and applies it.
func (p *Peer) SetRemoteDescription(desc protocol.Description) error {
	parsed, err := parseDescription(desc)
	if err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(parsed)
}

// AddICECandidate validates c (session.ErrCandidateParse) and applies it.
func (p *Peer) AddICECandidate(c protocol.Candidate) error {
	init, err := parseCandidate(c)
	if err != nil {
		return err
	}
	return p.pc.AddICECandidate(init)
}

// ---------------------------------------------------------------------------
// Stats / lifecycle
// ---------------------------------------------------------------------------

// Stats converts the engine report and adds the remote video measurements.
func (p *Peer) Stats() rtcstats.Report {
	p.mu.Lock()
	var video *rtcstats.RemoteVideo
	for _, r := range p.remotes {
		if r.Kind() == session.KindVideo {
			video = r.meter.snapshot()
			break
		}
	}
	p.mu.Unlock()

	return convertStats(p.pc.GetStats(), video)
}

func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.senders = nil
	p.mu.Unlock()

	err := p.pc.Close()
	if err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		return err
	}
	return nil
}

// Sender is an RTP sender added through AddTrack.
type Sender struct {
	rtp  *webrtc.RTPSender
	kind session.TrackKind
}

var _ session.Sender = (*Sender)(nil)

func (s *Sender) Kind() session.TrackKind { return s.kind }
