// Package coordinator wires the call machine, the session negotiator and the
// signaling channel together behind one control surface. All call and
// session state is owned by a single event-loop goroutine; every other
// goroutine hands work to it as closures.
package coordinator

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/1ureka/peercall/internal/call"
	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/rtcstats"
	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/signaling"
	"github.com/1ureka/peercall/internal/util"
)

const eventBuffer = 256

// Signal is the signaling channel as seen by the coordinator.
type Signal interface {
	call.Signaler
	Connect(ctx context.Context, url, clientID string) error
	Disconnect()
	ClientID() string
	RequestClientList() error
}

// SignalFactory builds the signaling channel reporting to obs.
type SignalFactory func(obs signaling.Observer) Signal

// Coordinator is the core of a peer. Create it with New, then Initialize.
type Coordinator struct {
	ui     UIObserver
	engine session.Engine
	clock  clock.Clock
	signal Signal

	lifeMu  sync.Mutex
	running bool
	events  chan func()
	stopped chan struct{}
	cancel  context.CancelFunc
	notify  *session.SerialExecutor
	exec    *session.SerialExecutor

	// Owned by the event loop.
	machine    *call.Machine
	negotiator *session.Negotiator
	peer       string
	isCaller   bool
	iceState   session.ICEState
	iceServers []protocol.ICEServer
	sampler    rtcstats.Sampler
	latest     rtcstats.Snapshot
	refreshing bool
	localOn    bool
	remoteOn   bool
}

type options struct {
	clock  clock.Clock
	signal SignalFactory
}

type Option func(*options)

// WithClock drives the call-request timeout and stats timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSignalFactory replaces the WebSocket signaling channel.
func WithSignalFactory(f SignalFactory) Option {
	return func(o *options) { o.signal = f }
}

func New(ui UIObserver, engine session.Engine, opts ...Option) *Coordinator {
	o := options{
		clock: clock.New(),
		signal: func(obs signaling.Observer) Signal {
			return signaling.NewChannel(obs)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Coordinator{
		ui:       ui,
		engine:   engine,
		clock:    o.clock,
		iceState: session.ICENew,
		latest:   rtcstats.Invalid(string(session.ICENew)),
	}
	c.signal = o.signal(&signalRouter{c: c})
	return c
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Initialize starts the event loop and the worker goroutines.
func (c *Coordinator) Initialize() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.events = make(chan func(), eventBuffer)
	c.stopped = make(chan struct{})
	c.cancel = cancel
	c.notify = session.NewSerialExecutor(ctx, func(func()) {})

	c.exec = session.NewSerialExecutor(ctx, func(fn func()) { c.post(fn) })
	c.negotiator = session.NewNegotiator(c.engine, c.exec, &sessionRouter{c: c})
	c.machine = call.NewMachine(c.signal, &callRouter{c: c}, func(fn func()) { c.post(fn) },
		call.WithClock(c.clock))

	c.running = true
	go c.loop(ctx)
	util.LogDebug("coordinator started")
	return nil
}

// Shutdown hangs up any call, drops the signaling connection and stops the
// goroutines. The session's engine resources are released before it returns,
// and UI notifications queued before it are still delivered.
func (c *Coordinator) Shutdown() {
	c.lifeMu.Lock()
	if !c.running {
		c.lifeMu.Unlock()
		return
	}
	c.running = false
	c.lifeMu.Unlock()

	c.query(func() {
		c.machine.Reset()
		c.negotiator.Close()
	})
	c.signal.Disconnect()

	// A step still running when Close was queued posts its completion after
	// the first flush, and that completion may queue another teardown.
	drain(c.exec)
	c.query(func() {})
	drain(c.exec)
	drain(c.notify)

	c.cancel()
	<-c.stopped
}

// drain waits until every job submitted to e so far has run.
func drain(e *session.SerialExecutor) {
	flushed := make(chan struct{})
	e.Submit(func() { close(flushed) }, nil)
	<-flushed
}

func (c *Coordinator) loop(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// post hands fn to the event loop. It reports false once the loop is gone.
// It must not be called from the loop itself.
func (c *Coordinator) post(fn func()) bool {
	c.lifeMu.Lock()
	events, stopped := c.events, c.stopped
	c.lifeMu.Unlock()
	if events == nil {
		return false
	}

	select {
	case events <- fn:
		return true
	case <-stopped:
		return false
	}
}

// query runs fn on the event loop and waits for it.
func (c *Coordinator) query(fn func()) bool {
	c.lifeMu.Lock()
	stopped := c.stopped
	c.lifeMu.Unlock()

	done := make(chan struct{})
	if !c.post(func() { fn(); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-stopped:
		return false
	}
}

// ui delivers a notification in order on the notifier goroutine.
func (c *Coordinator) toUI(fn func(ui UIObserver)) {
	c.notify.Submit(func() { fn(c.ui) }, nil)
}
