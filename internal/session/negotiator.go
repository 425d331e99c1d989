package session

import (
	"errors"
	"fmt"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/rtcstats"
	"github.com/1ureka/peercall/internal/util"
)

// Negotiator owns at most one session at a time. All exported methods must
// be called on the coordination goroutine; engine work goes through the
// Executor and its results come back the same way.
type Negotiator struct {
	engine Engine
	exec   Executor
	obs    Observer

	servers []protocol.ICEServer

	sess *session
	gen  uint64
}

// session is the per-call negotiation state.
type session struct {
	gen   uint64
	peer  Peer
	media LocalMedia

	remoteSet bool
	pending   []protocol.Candidate

	steps   []*step
	running *step

	established bool
}

func NewNegotiator(engine Engine, exec Executor, obs Observer) *Negotiator {
	return &Negotiator{engine: engine, exec: exec, obs: obs}
}

// SetICEServers replaces the server list used by sessions created from now
// on. A session that already exists keeps the list it was created with.
func (n *Negotiator) SetICEServers(servers []protocol.ICEServer) {
	n.servers = append([]protocol.ICEServer(nil), servers...)
}

func (n *Negotiator) HasSession() bool {
	return n.sess != nil
}

// PendingCandidates returns how many remote candidates wait for the remote
// description.
func (n *Negotiator) PendingCandidates() int {
	if n.sess == nil {
		return 0
	}
	return len(n.sess.pending)
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

// CreateSession starts building a new session. Creation itself completes
// asynchronously; failures are reported through Observer.OnError.
func (n *Negotiator) CreateSession() error {
	if n.sess != nil {
		return ErrSessionActive
	}

	n.gen++
	s := &session{gen: n.gen}
	n.sess = s

	servers := append([]protocol.ICEServer(nil), n.servers...)
	events := &peerEvents{n: n, gen: s.gen}

	var (
		peer     Peer
		media    LocalMedia
		trackErr error
	)

	n.enqueue(&step{
		name: "create-session",
		work: func(Peer) error {
			p, err := n.engine.NewPeer(servers, events)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSessionCreate, err)
			}
			peer = p

			m, err := n.engine.OpenLocalMedia()
			if err != nil {
				trackErr = fmt.Errorf("%w: %v", ErrTrackAdd, err)
				return nil
			}
			media = m

			for _, t := range m.Tracks() {
				if err := p.AddTrack(t); err != nil {
					trackErr = errors.Join(trackErr, fmt.Errorf("%w: %s track %s: %v", ErrTrackAdd, t.Kind(), t.ID(), err))
				}
			}
			return nil
		},
		done: func() {
			s.peer = peer
			s.media = media
			util.LogDebug("session %d created with %d ICE server(s)", s.gen, len(servers))

			// Receive-only is still a usable session; report and carry on.
			if trackErr != nil {
				n.obs.OnError(trackErr)
			}
			if media != nil {
				for _, t := range media.Tracks() {
					if t.Kind() == KindVideo {
						n.obs.OnLocalVideoTrack(t)
					}
				}
			}
		},
		onFail: func(err error) {
			n.sess = nil
			n.obs.OnError(err)
		},
		stale: func() {
			if peer != nil || media != nil {
				n.exec.Submit(func() { teardown(peer, media) }, nil)
			}
		},
	})
	return nil
}

// Close tears the current session down. It returns immediately; the engine
// teardown runs on the executor after any work already submitted.
func (n *Negotiator) Close() {
	s := n.sess
	if s == nil {
		return
	}

	n.sess = nil
	s.steps = nil
	s.pending = nil

	peer, media := s.peer, s.media
	util.LogDebug("closing session %d", s.gen)
	n.exec.Submit(func() { teardown(peer, media) }, nil)
}

// teardown releases a session's engine resources. The order matters: capture
// hardware must stop before references are dropped, otherwise the device can
// stay open after the call.
func teardown(peer Peer, media LocalMedia) {
	if media != nil {
		media.StopCapture()
		for _, t := range media.Tracks() {
			t.SetEnabled(false)
		}
	}

	if peer != nil {
		for _, s := range peer.Senders() {
			if err := peer.RemoveSender(s); err != nil {
				util.LogWarning("failed to remove %s sender: %v", s.Kind(), err)
			}
		}
		if err := peer.Close(); err != nil {
			util.LogWarning("failed to close peer: %v", err)
		}
	}

	if media != nil {
		media.ReleaseTracks()
		media.ReleaseSources()
	}
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// CreateOffer creates and applies a local offer, then reports its SDP.
func (n *Negotiator) CreateOffer() error {
	return n.createLocal(protocol.TypeOffer)
}

// CreateAnswer creates and applies a local answer, then reports its SDP.
func (n *Negotiator) CreateAnswer() error {
	return n.createLocal(protocol.TypeAnswer)
}

func (n *Negotiator) createLocal(kind protocol.Type) error {
	if n.sess == nil {
		return ErrNoSession
	}

	var desc protocol.Description
	n.enqueue(&step{
		name: "create-" + string(kind),
		work: func(p Peer) error {
			var err error
			if kind == protocol.TypeOffer {
				desc, err = p.CreateOffer()
				if err != nil {
					return fmt.Errorf("%w: %v", ErrCreateOffer, err)
				}
			} else {
				desc, err = p.CreateAnswer()
				if err != nil {
					return fmt.Errorf("%w: %v", ErrCreateAnswer, err)
				}
			}
			if err := p.SetLocalDescription(desc); err != nil {
				return fmt.Errorf("%w: %v", ErrSetLocal, err)
			}
			return nil
		},
		done: func() {
			if kind == protocol.TypeOffer {
				n.obs.OnOfferCreated(desc.SDP)
			} else {
				n.obs.OnAnswerCreated(desc.SDP)
			}
		},
	})
	return nil
}

// SetRemoteOffer applies the peer's offer.
func (n *Negotiator) SetRemoteOffer(sdp string) error {
	return n.setRemote(protocol.Description{Type: string(protocol.TypeOffer), SDP: sdp})
}

// SetRemoteAnswer applies the peer's answer.
func (n *Negotiator) SetRemoteAnswer(sdp string) error {
	return n.setRemote(protocol.Description{Type: string(protocol.TypeAnswer), SDP: sdp})
}

func (n *Negotiator) setRemote(desc protocol.Description) error {
	s := n.sess
	if s == nil {
		return ErrNoSession
	}

	n.enqueue(&step{
		name: "set-remote-" + desc.Type,
		work: func(p Peer) error {
			err := p.SetRemoteDescription(desc)
			if err == nil || errors.Is(err, ErrSDPParse) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrSetRemote, err)
		},
		done: func() {
			s.remoteSet = true
			n.flushCandidates(s)
		},
	})
	return nil
}

// AddICECandidate applies a remote candidate, or buffers it while no remote
// description has been applied yet.
func (n *Negotiator) AddICECandidate(c protocol.Candidate) error {
	s := n.sess
	if s == nil {
		return ErrNoSession
	}

	if !s.remoteSet {
		s.pending = append(s.pending, c)
		util.LogDebug("buffered remote candidate (%d pending)", len(s.pending))
		return nil
	}

	n.enqueue(n.candidateStep(c))
	return nil
}

// flushCandidates moves the buffered candidates, in arrival order, to the
// front of the queue so they are applied before anything queued later.
func (n *Negotiator) flushCandidates(s *session) {
	if len(s.pending) == 0 {
		return
	}

	util.LogDebug("flushing %d buffered candidate(s)", len(s.pending))
	flush := make([]*step, 0, len(s.pending)+len(s.steps))
	for _, c := range s.pending {
		flush = append(flush, n.candidateStep(c))
	}
	s.pending = nil
	s.steps = append(flush, s.steps...)
}

// candidateStep applies one candidate. A failure is logged and the queue
// continues with the next step.
func (n *Negotiator) candidateStep(c protocol.Candidate) *step {
	return &step{
		name: "add-candidate",
		work: func(p Peer) error {
			return p.AddICECandidate(c)
		},
		onFail: func(err error) {
			util.LogWarning("failed to apply candidate %q: %v", c.Candidate, err)
			if errors.Is(err, ErrCandidateParse) {
				n.obs.OnError(err)
			}
		},
	}
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// CollectStats fetches a report from the engine and hands it to done on the
// coordination goroutine. Without a session done receives ok=false at once.
func (n *Negotiator) CollectStats(done func(report rtcstats.Report, ok bool)) {
	s := n.sess
	if s == nil || s.peer == nil {
		done(rtcstats.Report{}, false)
		return
	}

	peer, gen := s.peer, s.gen
	var report rtcstats.Report
	n.exec.Submit(func() {
		report = peer.Stats()
	}, func() {
		done(report, n.current(gen))
	})
}

// ---------------------------------------------------------------------------
// Step queue
// ---------------------------------------------------------------------------

func (n *Negotiator) enqueue(st *step) {
	s := n.sess
	if s == nil {
		return
	}
	st.state = stepPending
	s.steps = append(s.steps, st)
	n.advance()
}

// advance starts the next pending step unless one is already running.
func (n *Negotiator) advance() {
	s := n.sess
	if s == nil || s.running != nil || len(s.steps) == 0 {
		return
	}

	st := s.steps[0]
	s.steps = s.steps[1:]
	s.running = st
	st.state = stepRunning

	peer, gen := s.peer, s.gen
	var err error
	n.exec.Submit(func() {
		err = st.work(peer)
	}, func() {
		n.finish(gen, st, err)
	})
}

// finish records a step's outcome and moves the queue on.
func (n *Negotiator) finish(gen uint64, st *step, err error) {
	s := n.sess
	if s == nil || s.gen != gen {
		util.LogDebug("dropping %s completion of closed session %d", st.name, gen)
		if st.stale != nil {
			st.stale()
		}
		return
	}

	s.running = nil
	st.err = err

	if err != nil {
		st.state = stepFailed
		if st.onFail != nil {
			st.onFail(err)
		} else {
			if len(s.steps) > 0 {
				util.LogWarning("%s failed, dropping %d queued step(s)", st.name, len(s.steps))
				s.steps = nil
			}
			n.obs.OnError(err)
		}
	} else {
		st.state = stepCompleted
		if st.done != nil {
			st.done()
		}
	}

	n.advance()
}

func (n *Negotiator) current(gen uint64) bool {
	return n.sess != nil && n.sess.gen == gen
}

// ---------------------------------------------------------------------------
// Engine callbacks
// ---------------------------------------------------------------------------

// peerEvents bridges engine callbacks of one session onto the coordination
// goroutine and drops them once that session is gone.
type peerEvents struct {
	n   *Negotiator
	gen uint64
}

func (e *peerEvents) OnICECandidate(c protocol.Candidate) {
	e.n.exec.Post(func() {
		if e.n.current(e.gen) {
			e.n.obs.OnICECandidate(c)
		}
	})
}

func (e *peerEvents) OnICEStateChange(state ICEState) {
	e.n.exec.Post(func() {
		if e.n.current(e.gen) {
			e.n.handleICEState(state)
		}
	})
}

func (e *peerEvents) OnTrack(track RemoteTrack) {
	e.n.exec.Post(func() {
		if !e.n.current(e.gen) {
			return
		}
		if track.Kind() != KindVideo {
			util.LogDebug("remote %s track %s added", track.Kind(), track.ID())
			return
		}
		e.n.obs.OnRemoteVideoTrack(track)
	})
}

func (e *peerEvents) OnTrackEnded(track RemoteTrack) {
	e.n.exec.Post(func() {
		if !e.n.current(e.gen) || track.Kind() != KindVideo {
			return
		}
		e.n.obs.OnRemoteVideoTrackRemoved(track)
	})
}

func (n *Negotiator) handleICEState(state ICEState) {
	s := n.sess
	n.obs.OnICEStateChange(state)

	switch state {
	case ICEConnected, ICECompleted:
		if !s.established {
			s.established = true
			n.obs.OnEstablished()
		}
	case ICEFailed, ICEDisconnected, ICEClosed:
		util.LogWarning("ICE connection %s", state)
		n.obs.OnICEWarning(state)
	}
}
