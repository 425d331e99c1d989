// Package signaling keeps the persistent WebSocket connection to the relay:
// registration, typed message dispatch and automatic reconnection.
package signaling

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/util"
)

var (
	ErrNotConnected = errors.New("signaling channel is not connected")
	ErrClosed       = errors.New("signaling channel was disconnected")
)

// Channel is a client connection to the signaling relay. It is safe for
// concurrent use.
type Channel struct {
	obs   Observer
	clock clock.Clock
	dial  dialFunc

	mu         sync.Mutex
	ctx        context.Context
	url        string
	clientID   string
	iceServers []protocol.ICEServer
	conn       *websocket.Conn
	connected  bool
	manual     bool
	attempts   int
	timer      *clock.Timer

	sender sender
}

// Option customises a Channel.
type Option func(*Channel)

// WithClock replaces the wall clock used for reconnect timers.
func WithClock(c clock.Clock) Option {
	return func(ch *Channel) { ch.clock = c }
}

func NewChannel(obs Observer, opts ...Option) *Channel {
	c := &Channel{
		obs:   obs,
		clock: clock.New(),
		dial:  connect,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Connect dials url as clientID (generated when empty), registers, and starts
// reading. A failed dial schedules automatic reconnects and is also returned.
// ctx bounds the dial and every later reconnect.
func (c *Channel) Connect(ctx context.Context, url, clientID string) error {
	if clientID == "" {
		clientID = util.NewClientID()
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		util.LogDebug("already connected to %s as %s", c.url, c.clientID)
		return nil
	}
	c.ctx = ctx
	c.url = url
	c.clientID = clientID
	c.manual = false
	c.attempts = 0
	c.stopTimerLocked()
	c.mu.Unlock()

	return c.open(ctx)
}

// Disconnect closes the connection on purpose; no reconnect follows.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.attempts = 0
	c.stopTimerLocked()
	conn, wasConnected := c.conn, c.connected
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		c.sender.close(conn)
	}
	if wasConnected {
		util.LogInfo("disconnected from signaling server")
		c.obs.OnDisconnected()
	}
}

func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Channel) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// ICEServers returns the list received with the last registration.
func (c *Channel) ICEServers() []protocol.ICEServer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.ICEServer(nil), c.iceServers...)
}

// open performs one dial attempt with the stored url and id.
func (c *Channel) open(ctx context.Context) error {
	c.mu.Lock()
	target := withUID(c.url, c.clientID)
	c.mu.Unlock()

	conn, err := c.dial(ctx, target)
	if err != nil {
		util.LogWarning("%v", err)
		c.obs.OnConnectionError(err)
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.connected = true
	c.attempts = 0
	id := c.clientID
	c.mu.Unlock()

	util.LogSuccess("connected to signaling server as %s", id)

	if err := c.Send(protocol.NewRegister()); err != nil {
		util.LogWarning("failed to register: %v", err)
	}
	c.obs.OnConnected(id)

	go c.watch(conn)
	return nil
}

// handleClose runs when the read loop of conn ends.
func (c *Channel) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Replaced or closed on purpose.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	conn.Close()
	util.LogWarning("signaling connection lost: %v", err)
	c.obs.OnDisconnected()
	c.scheduleReconnect()
}

// ---------------------------------------------------------------------------
// Reconnect
// ---------------------------------------------------------------------------

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.manual || c.ctx == nil || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}

	c.attempts++
	attempt := c.attempts
	delay, ok := ReconnectDelay(attempt)
	if ok {
		c.stopTimerLocked()
		c.timer = c.clock.AfterFunc(delay, c.reconnect)
	}
	c.mu.Unlock()

	if !ok {
		util.LogWarning("giving up on signaling server after %d reconnect attempts", MaxReconnectAttempts)
		return
	}

	util.LogInfo("reconnecting in %s (attempt %d/%d)", delay, attempt, MaxReconnectAttempts)
	c.obs.OnReconnectScheduled(attempt, delay)
}

func (c *Channel) reconnect() {
	c.mu.Lock()
	ctx := c.ctx
	skip := c.manual || c.connected
	c.timer = nil
	c.mu.Unlock()

	if skip || ctx == nil || ctx.Err() != nil {
		return
	}
	_ = c.open(ctx)
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
