package coordinator

import (
	"context"

	"github.com/1ureka/peercall/internal/call"
)

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// ConnectToSignalServer dials the relay as clientID (generated when empty).
// Failures are also reported through OnSignalError, and retried
// automatically.
func (c *Coordinator) ConnectToSignalServer(ctx context.Context, url, clientID string) error {
	if !c.isRunning() {
		return ErrNotInitialized
	}
	return c.signal.Connect(ctx, url, clientID)
}

func (c *Coordinator) DisconnectFromSignalServer() {
	c.signal.Disconnect()
}

func (c *Coordinator) IsConnectedToSignalServer() bool {
	return c.signal.IsConnected()
}

func (c *Coordinator) GetClientID() string {
	return c.signal.ClientID()
}

// RequestClientList asks the relay for a fresh list; it arrives through
// OnClientListUpdate.
func (c *Coordinator) RequestClientList() error {
	return c.signal.RequestClientList()
}

// ---------------------------------------------------------------------------
// Call intents
// ---------------------------------------------------------------------------

// StartCall rings peer.
func (c *Coordinator) StartCall(peer string) error {
	return c.intent(func() error { return c.machine.InitiateCall(peer) })
}

func (c *Coordinator) AcceptCall() error {
	return c.intent(func() error { return c.machine.AcceptCall() })
}

// RejectCall declines the ringing call; an empty reason means "rejected".
func (c *Coordinator) RejectCall(reason string) error {
	return c.intent(func() error { return c.machine.RejectCall(reason) })
}

// EndCall hangs up. While our own request is still ringing it is cancelled
// instead.
func (c *Coordinator) EndCall() error {
	return c.intent(func() error {
		if c.machine.State() == call.Calling {
			return c.machine.CancelCall()
		}
		return c.machine.EndCall()
	})
}

func (c *Coordinator) intent(fn func() error) error {
	var err error
	if !c.query(func() { err = fn() }) {
		return ErrNotInitialized
	}
	return err
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (c *Coordinator) IsInCall() bool {
	var in bool
	c.query(func() { in = c.machine.InCall() })
	return in
}

func (c *Coordinator) GetCallState() call.State {
	state := call.Idle
	c.query(func() { state = c.machine.State() })
	return state
}

func (c *Coordinator) GetCurrentPeerID() string {
	var peer string
	c.query(func() { peer = c.peer })
	return peer
}

func (c *Coordinator) isRunning() bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return c.running
}
