package call

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/peercall/internal/protocol"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeSignaler struct {
	connected bool
	failSend  error
	sent      []*protocol.Message
}

var _ Signaler = (*fakeSignaler)(nil)

func (f *fakeSignaler) IsConnected() bool { return f.connected }

func (f *fakeSignaler) Send(msg *protocol.Message) error {
	if f.failSend != nil {
		return f.failSend
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSignaler) last() *protocol.Message {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type recorder struct {
	events   []string
	timeouts int
}

var _ Observer = (*recorder)(nil)

func (r *recorder) add(format string, args ...any) { r.events = append(r.events, fmt.Sprintf(format, args...)) }

func (r *recorder) OnCallStateChanged(s State, peer string) { r.add("state %s %s", s, peer) }
func (r *recorder) OnIncomingCall(from string)              { r.add("incoming %s", from) }
func (r *recorder) OnCallAccepted(peer string)              { r.add("accepted %s", peer) }
func (r *recorder) OnCallRejected(peer, reason string)      { r.add("rejected %s %s", peer, reason) }
func (r *recorder) OnCallCancelled(peer, reason string)     { r.add("cancelled %s %s", peer, reason) }
func (r *recorder) OnCallEnded(peer, reason string)         { r.add("ended %s %s", peer, reason) }
func (r *recorder) OnNeedSession(peer string, caller bool)  { r.add("need-session %s %v", peer, caller) }
func (r *recorder) OnNeedCloseSession()                     { r.add("close-session") }

func (r *recorder) OnCallTimeout(peer string) {
	r.timeouts++
	r.add("timeout %s", peer)
}

type harness struct {
	m      *Machine
	sig    *fakeSignaler
	obs    *recorder
	clock  *clock.Mock
	posted chan func()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sig:    &fakeSignaler{connected: true},
		obs:    &recorder{},
		clock:  clock.NewMock(),
		posted: make(chan func(), 8),
	}
	h.m = NewMachine(h.sig, h.obs, func(fn func()) { h.posted <- fn }, WithClock(h.clock))
	return h
}

// runPosted executes the next closure handed to post, failing if none arrives.
func (h *harness) runPosted(t *testing.T) {
	t.Helper()
	select {
	case fn := <-h.posted:
		fn()
	case <-time.After(time.Second):
		t.Fatal("expected a posted completion")
	}
}

func (h *harness) requireNothingPosted(t *testing.T) {
	t.Helper()
	select {
	case <-h.posted:
		t.Fatal("unexpected posted completion")
	case <-time.After(50 * time.Millisecond):
	}
}

// requireConsistent checks the peer id invariant.
func requireConsistent(t *testing.T, m *Machine) {
	t.Helper()
	if m.State() == Idle {
		require.Empty(t, m.Peer(), "idle call must have no peer")
	} else {
		require.NotEmpty(t, m.Peer(), "active call must have a peer")
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestRoundTripNotifications verifies the full caller lifecycle emits state
// changes in order with the right peer at each step.
func TestRoundTripNotifications(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.InitiateCall("peerX"))
	requireConsistent(t, h.m)
	assert.True(t, h.m.IsCaller())
	assert.Equal(t, protocol.TypeCallRequest, h.sig.last().Type)

	require.NoError(t, h.m.HandleCallResponse("peerX", true, ""))
	requireConsistent(t, h.m)

	h.m.SessionEstablished()
	requireConsistent(t, h.m)

	require.NoError(t, h.m.EndCall())
	requireConsistent(t, h.m)
	assert.Equal(t, protocol.TypeCallEnd, h.sig.last().Type)
	assert.Equal(t, protocol.ReasonHangup, protocol.Reason(h.sig.last()))

	var states []string
	for _, e := range h.obs.events {
		if len(e) > 6 && e[:6] == "state " {
			states = append(states, e)
		}
	}
	assert.Equal(t, []string{
		"state Calling peerX",
		"state Connecting peerX",
		"state Connected peerX",
		"state Idle ",
	}, states)
	assert.Contains(t, h.obs.events, "need-session peerX true")
	assert.Contains(t, h.obs.events, "accepted peerX")
	assert.Contains(t, h.obs.events, "close-session")
}

// TestCalleeFlow verifies accept requests a callee session and reject sends
// the default reason.
func TestCalleeFlow(t *testing.T) {
	t.Run("accept", func(t *testing.T) {
		h := newHarness(t)
		h.m.HandleCallRequest("A")
		assert.Equal(t, Receiving, h.m.State())
		assert.False(t, h.m.IsCaller())

		require.NoError(t, h.m.AcceptCall())
		assert.Equal(t, Connecting, h.m.State())
		accepted, _, err := protocol.CallResponse(h.sig.last())
		require.NoError(t, err)
		assert.True(t, accepted)
		assert.Contains(t, h.obs.events, "need-session A false")
	})

	t.Run("reject", func(t *testing.T) {
		h := newHarness(t)
		h.m.HandleCallRequest("A")
		require.NoError(t, h.m.RejectCall(""))
		assert.Equal(t, Idle, h.m.State())
		requireConsistent(t, h.m)

		accepted, reason, err := protocol.CallResponse(h.sig.last())
		require.NoError(t, err)
		assert.False(t, accepted)
		assert.Equal(t, protocol.ReasonRejected, reason)
	})

	t.Run("cancelled by caller", func(t *testing.T) {
		h := newHarness(t)
		h.m.HandleCallRequest("A")
		require.NoError(t, h.m.HandleCallCancel("A", protocol.ReasonCancelled))
		assert.Equal(t, Idle, h.m.State())
		assert.Contains(t, h.obs.events, "cancelled A cancelled")
	})
}

// TestMismatchedPeerIgnored verifies response/cancel/end from another peer
// leave the call untouched.
func TestMismatchedPeerIgnored(t *testing.T) {
	t.Run("response in Calling", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.m.InitiateCall("B"))
		err := h.m.HandleCallResponse("C", true, "")
		require.ErrorIs(t, err, ErrPeerMismatch)
		assert.Equal(t, Calling, h.m.State())
		assert.Equal(t, "B", h.m.Peer())
	})

	t.Run("cancel in Receiving", func(t *testing.T) {
		h := newHarness(t)
		h.m.HandleCallRequest("B")
		require.ErrorIs(t, h.m.HandleCallCancel("C", ""), ErrPeerMismatch)
		assert.Equal(t, Receiving, h.m.State())
	})

	t.Run("end in Connected", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.m.InitiateCall("B"))
		require.NoError(t, h.m.HandleCallResponse("B", true, ""))
		h.m.SessionEstablished()
		require.ErrorIs(t, h.m.HandleCallEnd("C", ""), ErrPeerMismatch)
		assert.Equal(t, Connected, h.m.State())
		assert.Equal(t, "B", h.m.Peer())
	})
}

// TestInitiateCallWhileActive verifies a second call attempt fails without
// touching state, peer or role in every non-idle state.
func TestInitiateCallWhileActive(t *testing.T) {
	setups := map[string]func(h *harness){
		"Calling":   func(h *harness) { _ = h.m.InitiateCall("B") },
		"Receiving": func(h *harness) { h.m.HandleCallRequest("B") },
		"Connecting": func(h *harness) {
			h.m.HandleCallRequest("B")
			_ = h.m.AcceptCall()
		},
		"Connected": func(h *harness) {
			_ = h.m.InitiateCall("B")
			_ = h.m.HandleCallResponse("B", true, "")
			h.m.SessionEstablished()
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(h)
			state, peer, caller := h.m.State(), h.m.Peer(), h.m.IsCaller()
			sent := len(h.sig.sent)

			require.ErrorIs(t, h.m.InitiateCall("Z"), ErrCallActive)
			assert.Equal(t, state, h.m.State())
			assert.Equal(t, peer, h.m.Peer())
			assert.Equal(t, caller, h.m.IsCaller())
			assert.Len(t, h.sig.sent, sent)
		})
	}
}

// TestInitiateCallGuards verifies the connectivity and send-failure guards.
func TestInitiateCallGuards(t *testing.T) {
	h := newHarness(t)
	h.sig.connected = false
	require.ErrorIs(t, h.m.InitiateCall("B"), ErrNotConnected)
	assert.Equal(t, Idle, h.m.State())

	h.sig.connected = true
	require.ErrorIs(t, h.m.InitiateCall(""), ErrEmptyPeer)

	boom := errors.New("socket closed")
	h.sig.failSend = boom
	require.ErrorIs(t, h.m.InitiateCall("B"), boom)
	assert.Equal(t, Idle, h.m.State())
	requireConsistent(t, h.m)
	assert.Empty(t, h.obs.events)
}

// TestBusyAutoReject verifies a call-request during a connected call is
// answered with "busy" and does not disturb the call.
func TestBusyAutoReject(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.InitiateCall("B"))
	require.NoError(t, h.m.HandleCallResponse("B", true, ""))
	h.m.SessionEstablished()
	events := len(h.obs.events)

	h.m.HandleCallRequest("C")

	assert.Equal(t, Connected, h.m.State())
	assert.Equal(t, "B", h.m.Peer())
	assert.Len(t, h.obs.events, events, "busy reject must not notify")

	reply := h.sig.last()
	assert.Equal(t, protocol.TypeCallResponse, reply.Type)
	assert.Equal(t, "C", reply.To)
	accepted, reason, err := protocol.CallResponse(reply)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, protocol.ReasonBusy, reason)
}

// TestTimeoutFiresOnce verifies 30s without an answer returns to Idle with a
// single timeout notification.
func TestTimeoutFiresOnce(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.InitiateCall("B"))

	h.clock.Add(29999 * time.Millisecond)
	h.requireNothingPosted(t)
	assert.Equal(t, Calling, h.m.State())

	h.clock.Add(time.Millisecond)
	h.runPosted(t)

	assert.Equal(t, Idle, h.m.State())
	requireConsistent(t, h.m)
	assert.Equal(t, 1, h.obs.timeouts)
	assert.Equal(t, protocol.TypeCallCancel, h.sig.last().Type)

	h.clock.Add(time.Minute)
	h.requireNothingPosted(t)
	assert.Equal(t, 1, h.obs.timeouts)
}

// TestResponseCancelsTimeout verifies an answer at 29999ms disarms the timer.
func TestResponseCancelsTimeout(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.InitiateCall("B"))

	h.clock.Add(29999 * time.Millisecond)
	require.NoError(t, h.m.HandleCallResponse("B", true, ""))

	h.clock.Add(time.Minute)
	h.requireNothingPosted(t)
	assert.Zero(t, h.obs.timeouts)
	assert.Equal(t, Connecting, h.m.State())
}

// TestStaleTimeoutIgnored verifies an expiry posted before the call moved on
// is dropped when it finally runs.
func TestStaleTimeoutIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.InitiateCall("B"))

	h.clock.Add(RequestTimeout)
	var expiry func()
	select {
	case expiry = <-h.posted:
	case <-time.After(time.Second):
		t.Fatal("expected a posted completion")
	}

	require.NoError(t, h.m.CancelCall())
	require.NoError(t, h.m.InitiateCall("C"))
	expiry()

	assert.Equal(t, Calling, h.m.State())
	assert.Equal(t, "C", h.m.Peer())
	assert.Zero(t, h.obs.timeouts)
}

// TestGuardViolations verifies user intents in the wrong state are no-ops.
func TestGuardViolations(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.m.AcceptCall(), ErrInvalidState)
	assert.ErrorIs(t, h.m.RejectCall("nope"), ErrInvalidState)
	assert.ErrorIs(t, h.m.CancelCall(), ErrInvalidState)
	assert.ErrorIs(t, h.m.EndCall(), ErrInvalidState)
	h.m.SessionEstablished()

	assert.Equal(t, Idle, h.m.State())
	assert.Empty(t, h.sig.sent)
	assert.Empty(t, h.obs.events)
}

// TestPeerOffline verifies the current peer dropping off ends the call and
// other ids are ignored.
func TestPeerOffline(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.InitiateCall("B"))
	require.NoError(t, h.m.HandleCallResponse("B", true, ""))

	h.m.PeerOffline("C")
	assert.Equal(t, Connecting, h.m.State())

	h.m.PeerOffline("B")
	assert.Equal(t, Idle, h.m.State())
	requireConsistent(t, h.m)
	assert.Contains(t, h.obs.events, "close-session")
	assert.Contains(t, h.obs.events, "ended B offline")
}

// TestEndCallSendFailureStillCleansUp verifies a failed call-end still
// returns the machine to Idle.
func TestEndCallSendFailureStillCleansUp(t *testing.T) {
	h := newHarness(t)
	h.m.HandleCallRequest("A")
	require.NoError(t, h.m.AcceptCall())

	h.sig.failSend = errors.New("gone")
	require.Error(t, h.m.EndCall())
	assert.Equal(t, Idle, h.m.State())
	requireConsistent(t, h.m)
}

// TestInboundEnd verifies the peer hanging up closes the session.
func TestInboundEnd(t *testing.T) {
	h := newHarness(t)
	h.m.HandleCallRequest("A")
	require.NoError(t, h.m.AcceptCall())
	h.m.SessionEstablished()

	require.NoError(t, h.m.HandleCallEnd("A", protocol.ReasonHangup))
	assert.Equal(t, Idle, h.m.State())
	assert.Contains(t, h.obs.events, "ended A hangup")
	assert.Contains(t, h.obs.events, "close-session")
}
