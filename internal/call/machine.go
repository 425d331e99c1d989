package call

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/util"
)

// RequestTimeout bounds how long an outbound call-request may ring.
const RequestTimeout = 30 * time.Second

// ReasonOffline is reported when the current peer drops off the relay.
const ReasonOffline = "offline"

// reasonTimeout is sent to the callee when an outbound request expires.
const reasonTimeout = "timeout"

// Signaler is the part of the signaling channel the machine needs.
type Signaler interface {
	IsConnected() bool
	Send(msg *protocol.Message) error
}

// Machine owns the call lifecycle. It is not safe for concurrent use: every
// method, including the timer completion delivered through post, must run on
// the single coordination goroutine.
type Machine struct {
	sig   Signaler
	obs   Observer
	post  func(func())
	clock clock.Clock

	timeout time.Duration

	state    State
	peer     string
	isCaller bool

	timer    *clock.Timer
	timerSeq uint64
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithTimeout overrides RequestTimeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Machine) { m.timeout = d }
}

// NewMachine creates an idle Machine. post must schedule its argument on the
// coordination goroutine; it is used to bring timer expiry back there.
func NewMachine(sig Signaler, obs Observer, post func(func()), opts ...Option) *Machine {
	m := &Machine{
		sig:     sig,
		obs:     obs,
		post:    post,
		clock:   clock.New(),
		timeout: RequestTimeout,
		state:   Idle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (m *Machine) State() State   { return m.state }
func (m *Machine) Peer() string   { return m.peer }
func (m *Machine) IsCaller() bool { return m.isCaller }
func (m *Machine) InCall() bool   { return m.state != Idle }

// ---------------------------------------------------------------------------
// User intents
// ---------------------------------------------------------------------------

// InitiateCall starts ringing peer. Nothing changes when it fails.
func (m *Machine) InitiateCall(peer string) error {
	switch {
	case peer == "":
		return ErrEmptyPeer
	case m.state != Idle:
		util.LogWarning("cannot call %s: already %s with %s", peer, m.state, m.peer)
		return ErrCallActive
	case !m.sig.IsConnected():
		return ErrNotConnected
	}

	if err := m.sig.Send(protocol.NewCallRequest(peer, m.clock.Now())); err != nil {
		return fmt.Errorf("failed to send call request: %w", err)
	}

	util.LogInfo("calling %s", peer)
	m.peer = peer
	m.isCaller = true
	m.setState(Calling)
	m.startTimer()
	return nil
}

// CancelCall withdraws an outbound request that has not been answered.
func (m *Machine) CancelCall() error {
	if m.state != Calling {
		util.LogWarning("cannot cancel: call is %s", m.state)
		return ErrInvalidState
	}

	err := m.send(protocol.NewCallCancel(m.peer, protocol.ReasonCancelled))
	m.cleanup()
	return err
}

// AcceptCall answers the ringing inbound call.
func (m *Machine) AcceptCall() error {
	if m.state != Receiving {
		util.LogWarning("cannot accept: call is %s", m.state)
		return ErrInvalidState
	}

	err := m.send(protocol.NewCallResponse(m.peer, true, ""))
	m.setState(Connecting)
	m.obs.OnNeedSession(m.peer, false)
	return err
}

// RejectCall declines the ringing inbound call. An empty reason is sent as
// "rejected".
func (m *Machine) RejectCall(reason string) error {
	if m.state != Receiving {
		util.LogWarning("cannot reject: call is %s", m.state)
		return ErrInvalidState
	}
	if reason == "" {
		reason = protocol.ReasonRejected
	}

	err := m.send(protocol.NewCallResponse(m.peer, false, reason))
	m.cleanup()
	return err
}

// EndCall hangs up from any non-idle state. The local teardown happens even
// when the call-end message cannot be delivered.
func (m *Machine) EndCall() error {
	if m.state == Idle {
		util.LogWarning("cannot end call: no call in progress")
		return ErrInvalidState
	}

	peer := m.peer
	err := m.send(protocol.NewCallEnd(peer, protocol.ReasonHangup))
	m.obs.OnNeedCloseSession()
	m.obs.OnCallEnded(peer, protocol.ReasonHangup)
	m.cleanup()
	return err
}

// SessionEstablished promotes Connecting to Connected. It is ignored in any
// other state.
func (m *Machine) SessionEstablished() {
	if m.state != Connecting {
		util.LogDebug("session established while %s, ignored", m.state)
		return
	}
	m.setState(Connected)
	m.obs.OnCallAccepted(m.peer)
}

// Reset ends whatever call is in progress; it is used on shutdown.
func (m *Machine) Reset() {
	if m.state != Idle {
		_ = m.EndCall()
	}
	m.stopTimer()
}

// ---------------------------------------------------------------------------
// Inbound signaling
// ---------------------------------------------------------------------------

// HandleCallRequest starts ringing, or answers "busy" when a call is already
// in progress. The busy reply never touches the current call.
func (m *Machine) HandleCallRequest(from string) {
	if from == "" {
		util.LogWarning("call request without sender dropped")
		return
	}

	if m.state != Idle {
		util.LogWarning("rejecting call from %s: busy (%s with %s)", from, m.state, m.peer)
		if err := m.send(protocol.NewCallResponse(from, false, protocol.ReasonBusy)); err != nil {
			util.LogError("%v", err)
		}
		return
	}

	m.peer = from
	m.isCaller = false
	m.setState(Receiving)
	m.obs.OnIncomingCall(from)
}

// HandleCallResponse applies the callee's verdict on our request.
func (m *Machine) HandleCallResponse(from string, accepted bool, reason string) error {
	if err := m.expect(Calling, from, "call response"); err != nil {
		return err
	}

	m.stopTimer()

	if !accepted {
		util.LogInfo("call rejected by %s (%s)", from, reason)
		m.obs.OnCallRejected(from, reason)
		m.cleanup()
		return nil
	}

	util.LogInfo("call accepted by %s", from)
	m.setState(Connecting)
	m.obs.OnNeedSession(from, true)
	return nil
}

// HandleCallCancel stops ringing when the caller gives up.
func (m *Machine) HandleCallCancel(from, reason string) error {
	if err := m.expect(Receiving, from, "call cancel"); err != nil {
		return err
	}

	m.obs.OnCallCancelled(from, reason)
	m.cleanup()
	return nil
}

// HandleCallEnd tears the call down when the peer hangs up.
func (m *Machine) HandleCallEnd(from, reason string) error {
	if m.state == Idle || from != m.peer {
		util.LogWarning("ignoring call end from %s (state %s, peer %q)", from, m.state, m.peer)
		return ErrPeerMismatch
	}

	m.obs.OnCallEnded(from, reason)
	m.obs.OnNeedCloseSession()
	m.cleanup()
	return nil
}

// PeerOffline ends the call when the relay reports the current peer gone.
// No call-end is sent since nobody is left to receive it.
func (m *Machine) PeerOffline(id string) {
	if m.state == Idle || id != m.peer {
		return
	}

	util.LogWarning("peer %s went offline", id)
	m.obs.OnNeedCloseSession()
	m.obs.OnCallEnded(id, ReasonOffline)
	m.cleanup()
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// expect checks state and sender of an inbound message.
func (m *Machine) expect(state State, from, what string) error {
	if m.state != state {
		util.LogWarning("ignoring %s from %s: call is %s", what, from, m.state)
		return ErrInvalidState
	}
	if from != m.peer {
		util.LogWarning("ignoring %s from %s: current peer is %s", what, from, m.peer)
		return ErrPeerMismatch
	}
	return nil
}

func (m *Machine) send(msg *protocol.Message) error {
	if err := m.sig.Send(msg); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", msg.Type, msg.To, err)
	}
	return nil
}

func (m *Machine) setState(state State) {
	if m.state == state {
		return
	}
	util.LogDebug("call state %s -> %s (peer %q)", m.state, state, m.peer)
	m.state = state
	m.obs.OnCallStateChanged(state, m.peer)
}

// cleanup returns to Idle from anywhere.
func (m *Machine) cleanup() {
	m.stopTimer()
	m.peer = ""
	m.isCaller = false
	m.setState(Idle)
}

func (m *Machine) startTimer() {
	m.stopTimer()
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(m.timeout, func() {
		m.post(func() { m.onTimeout(seq) })
	})
}

// stopTimer cancels the pending timeout. Bumping the sequence also voids an
// expiry that has already been posted but not yet run.
func (m *Machine) stopTimer() {
	m.timerSeq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) onTimeout(seq uint64) {
	if seq != m.timerSeq || m.state != Calling {
		return
	}

	peer := m.peer
	util.LogWarning("call request to %s timed out", peer)
	if err := m.send(protocol.NewCallCancel(peer, reasonTimeout)); err != nil {
		util.LogWarning("%v", err)
	}
	m.obs.OnCallTimeout(peer)
	m.cleanup()
}
