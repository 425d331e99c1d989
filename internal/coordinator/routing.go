package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1ureka/peercall/internal/call"
	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/rtcstats"
	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/signaling"
	"github.com/1ureka/peercall/internal/util"
)

// logf writes to the process log and mirrors the line to the UI.
func (c *Coordinator) logf(level util.Level, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	util.Log(level, "%s", text)
	c.toUI(func(ui UIObserver) { ui.OnLog(text, level) })
}

func (c *Coordinator) send(msg *protocol.Message) {
	if err := c.signal.Send(msg); err != nil {
		c.logf(util.LevelError, "failed to send %s to %s: %v", msg.Type, msg.To, err)
	}
}

// ---------------------------------------------------------------------------
// Signaling → coordinator
// ---------------------------------------------------------------------------

// signalRouter receives signaling events on the channel's goroutines and
// moves each onto the event loop.
type signalRouter struct{ c *Coordinator }

var _ signaling.Observer = (*signalRouter)(nil)

func (r *signalRouter) OnConnected(clientID string) {
	r.c.post(func() {
		r.c.toUI(func(ui UIObserver) { ui.OnSignalConnected(clientID) })
	})
}

func (r *signalRouter) OnDisconnected() {
	r.c.post(func() {
		r.c.toUI(func(ui UIObserver) { ui.OnSignalDisconnected() })
	})
}

func (r *signalRouter) OnConnectionError(err error) {
	r.c.post(func() {
		r.c.toUI(func(ui UIObserver) { ui.OnSignalError(err) })
	})
}

func (r *signalRouter) OnReconnectScheduled(attempt int, delay time.Duration) {
	r.c.post(func() {
		r.c.logf(util.LevelInfo, "reconnecting to signaling server in %s (attempt %d/%d)",
			delay, attempt, signaling.MaxReconnectAttempts)
	})
}

// OnICEServers replaces the list for every session created from now on.
func (r *signalRouter) OnICEServers(servers []protocol.ICEServer) {
	r.c.post(func() {
		r.c.iceServers = servers
		r.c.negotiator.SetICEServers(servers)
	})
}

func (r *signalRouter) OnClientList(clients []protocol.Client) {
	r.c.post(func() {
		r.c.toUI(func(ui UIObserver) { ui.OnClientListUpdate(clients) })
	})
}

func (r *signalRouter) OnUserOffline(clientID string) {
	r.c.post(func() {
		if clientID == r.c.peer {
			r.c.machine.PeerOffline(clientID)
		}
	})
}

func (r *signalRouter) OnCallRequest(from string) {
	r.c.post(func() { r.c.machine.HandleCallRequest(from) })
}

// Errors from the three handlers below are already logged by the machine. They
// only mean the message came from the wrong peer or in the wrong state.
func (r *signalRouter) OnCallResponse(from string, accepted bool, reason string) {
	r.c.post(func() { _ = r.c.machine.HandleCallResponse(from, accepted, reason) })
}

func (r *signalRouter) OnCallCancel(from, reason string) {
	r.c.post(func() { _ = r.c.machine.HandleCallCancel(from, reason) })
}

func (r *signalRouter) OnCallEnd(from, reason string) {
	r.c.post(func() { _ = r.c.machine.HandleCallEnd(from, reason) })
}

// OnOffer applies the caller's offer and answers it.
func (r *signalRouter) OnOffer(from string, payload json.RawMessage) {
	r.c.post(func() {
		c := r.c
		if !c.acceptsNegotiation(from, "offer", false) {
			return
		}
		desc, err := protocol.ExtractSDP(payload)
		if err != nil {
			c.logf(util.LevelError, "invalid offer from %s: %v", from, err)
			return
		}
		if err := c.negotiator.SetRemoteOffer(desc.SDP); err != nil {
			c.logf(util.LevelError, "cannot apply offer: %v", err)
			return
		}
		if err := c.negotiator.CreateAnswer(); err != nil {
			c.logf(util.LevelError, "cannot create answer: %v", err)
		}
	})
}

func (r *signalRouter) OnAnswer(from string, payload json.RawMessage) {
	r.c.post(func() {
		c := r.c
		if !c.acceptsNegotiation(from, "answer", true) {
			return
		}
		desc, err := protocol.ExtractSDP(payload)
		if err != nil {
			c.logf(util.LevelError, "invalid answer from %s: %v", from, err)
			return
		}
		if err := c.negotiator.SetRemoteAnswer(desc.SDP); err != nil {
			c.logf(util.LevelError, "cannot apply answer: %v", err)
		}
	})
}

func (r *signalRouter) OnICECandidate(from string, payload json.RawMessage) {
	r.c.post(func() {
		c := r.c
		if from != c.peer || !c.negotiator.HasSession() {
			util.LogWarning("dropping candidate from %s: no session with that peer", from)
			return
		}
		cand, err := protocol.ExtractCandidate(payload)
		if err != nil {
			c.logf(util.LevelError, "invalid candidate from %s: %v", from, err)
			return
		}
		if err := c.negotiator.AddICECandidate(cand); err != nil {
			util.LogWarning("cannot add candidate: %v", err)
		}
	})
}

// acceptsNegotiation drops offers and answers that do not belong to the
// current call. Only the callee takes offers and only the caller answers.
func (c *Coordinator) acceptsNegotiation(from, what string, wantCaller bool) bool {
	switch {
	case from == "" || from != c.peer:
		util.LogWarning("dropping %s from %s: current peer is %q", what, from, c.peer)
		return false
	case !c.negotiator.HasSession():
		util.LogWarning("dropping %s from %s: no session", what, from)
		return false
	case c.isCaller != wantCaller:
		util.LogWarning("dropping unexpected %s from %s", what, from)
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Call machine → coordinator (on the loop)
// ---------------------------------------------------------------------------

type callRouter struct{ c *Coordinator }

var _ call.Observer = (*callRouter)(nil)

// OnCallStateChanged keeps the peer mirror in step with the machine.
func (r *callRouter) OnCallStateChanged(state call.State, peer string) {
	r.c.peer = r.c.machine.Peer()
	r.c.isCaller = r.c.machine.IsCaller()
	r.c.toUI(func(ui UIObserver) { ui.OnCallStateChanged(state, peer) })
}

func (r *callRouter) OnIncomingCall(from string) {
	r.c.logf(util.LevelInfo, "incoming call from %s", from)
	r.c.toUI(func(ui UIObserver) { ui.OnIncomingCall(from) })
}

func (r *callRouter) OnCallAccepted(peer string) {
	r.c.toUI(func(ui UIObserver) { ui.OnShowInfo("Call connected", "Connected to "+peer) })
}

func (r *callRouter) OnCallRejected(peer, reason string) {
	r.c.toUI(func(ui UIObserver) {
		ui.OnShowInfo("Call rejected", fmt.Sprintf("%s declined the call (%s)", peer, reason))
	})
}

func (r *callRouter) OnCallCancelled(peer, reason string) {
	r.c.toUI(func(ui UIObserver) {
		ui.OnShowInfo("Call cancelled", fmt.Sprintf("%s cancelled the call", peer))
	})
}

func (r *callRouter) OnCallEnded(peer, reason string) {
	r.c.logf(util.LevelInfo, "call with %s ended (%s)", peer, reason)
}

func (r *callRouter) OnCallTimeout(peer string) {
	r.c.toUI(func(ui UIObserver) {
		ui.OnShowInfo("No answer", fmt.Sprintf("%s did not answer", peer))
	})
}

// OnNeedSession builds the media session. The caller queues its offer right
// behind the creation step, so it runs once the session exists.
func (r *callRouter) OnNeedSession(peer string, isCaller bool) {
	c := r.c
	c.sampler.Reset()
	c.iceState = session.ICENew

	if err := c.negotiator.CreateSession(); err != nil {
		c.logf(util.LevelError, "cannot create session for %s: %v", peer, err)
		return
	}
	if isCaller {
		if err := c.negotiator.CreateOffer(); err != nil {
			c.logf(util.LevelError, "cannot create offer: %v", err)
		}
	}
}

func (r *callRouter) OnNeedCloseSession() {
	c := r.c
	c.negotiator.Close()
	c.sampler.Reset()
	c.refreshing = false
	c.iceState = session.ICENew
	c.latest = rtcstats.Invalid(string(session.ICENew))

	if c.localOn {
		c.localOn = false
		c.toUI(func(ui UIObserver) { ui.OnStopLocalRenderer() })
	}
	if c.remoteOn {
		c.remoteOn = false
		c.toUI(func(ui UIObserver) { ui.OnStopRemoteRenderer() })
	}
}

// ---------------------------------------------------------------------------
// Negotiator → coordinator (on the loop)
// ---------------------------------------------------------------------------

type sessionRouter struct{ c *Coordinator }

var _ session.Observer = (*sessionRouter)(nil)

func (r *sessionRouter) OnLocalVideoTrack(track session.LocalTrack) {
	r.c.localOn = true
	r.c.toUI(func(ui UIObserver) { ui.OnStartLocalRenderer(track) })
}

func (r *sessionRouter) OnRemoteVideoTrack(track session.RemoteTrack) {
	r.c.remoteOn = true
	r.c.toUI(func(ui UIObserver) { ui.OnStartRemoteRenderer(track) })
}

func (r *sessionRouter) OnRemoteVideoTrackRemoved(track session.RemoteTrack) {
	r.c.remoteOn = false
	r.c.toUI(func(ui UIObserver) { ui.OnStopRemoteRenderer() })
}

func (r *sessionRouter) OnOfferCreated(sdp string) {
	if r.c.peer == "" {
		util.LogWarning("offer created without a peer, dropped")
		return
	}
	r.c.send(protocol.NewOffer(r.c.peer, sdp))
}

func (r *sessionRouter) OnAnswerCreated(sdp string) {
	if r.c.peer == "" {
		util.LogWarning("answer created without a peer, dropped")
		return
	}
	r.c.send(protocol.NewAnswer(r.c.peer, sdp))
}

func (r *sessionRouter) OnICECandidate(cand protocol.Candidate) {
	if r.c.peer == "" {
		return
	}
	r.c.send(protocol.NewCandidate(r.c.peer, cand))
}

func (r *sessionRouter) OnICEStateChange(state session.ICEState) {
	r.c.iceState = state
}

func (r *sessionRouter) OnEstablished() {
	r.c.machine.SessionEstablished()
}

func (r *sessionRouter) OnICEWarning(state session.ICEState) {
	r.c.logf(util.LevelWarning, "media connection %s", state)
}

// OnError surfaces negotiation failures. The call is left as it is; the
// user decides whether to hang up.
func (r *sessionRouter) OnError(err error) {
	util.LogError("%v", err)
	r.c.toUI(func(ui UIObserver) { ui.OnShowError("Media session error", err.Error()) })
}
