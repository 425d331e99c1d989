// Package transport is the pion/webrtc media engine behind the session
// negotiator: peer connections, local media sources, remote track metering
// and statistics conversion.
package transport

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/session"
)

// mediaSource provides codecs and local tracks. The default build uses
// generated tracks; the capture build opens camera and microphone.
type mediaSource interface {
	register(m *webrtc.MediaEngine) error
	open() (session.LocalMedia, error)
}

// Engine creates pion peer connections sharing one API instance.
type Engine struct {
	api    *webrtc.API
	source mediaSource
}

var _ session.Engine = (*Engine)(nil)

type config struct {
	disconnectedTimeout time.Duration
	failedTimeout       time.Duration
	keepAliveInterval   time.Duration
}

type Option func(*config)

// WithICETimeouts overrides how long ICE waits before reporting
// disconnected and failed, and how often it sends keepalives.
func WithICETimeouts(disconnected, failed, keepAlive time.Duration) Option {
	return func(c *config) {
		c.disconnectedTimeout = disconnected
		c.failedTimeout = failed
		c.keepAliveInterval = keepAlive
	}
}

// NewEngine registers codecs and the default interceptors (NACK, RTCP
// reports, TWCC) and returns an engine ready to create peers.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := config{
		disconnectedTimeout: 30 * time.Second,
		failedTimeout:       120 * time.Second,
		keepAliveInterval:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	source, err := newMediaSource()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare media source: %w", err)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := source.register(mediaEngine); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.SetICETimeouts(cfg.disconnectedTimeout, cfg.failedTimeout, cfg.keepAliveInterval)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)

	return &Engine{api: api, source: source}, nil
}

// NewPeer creates a PeerConnection using servers, or public STUN when the
// list is empty.
func (e *Engine) NewPeer(servers []protocol.ICEServer, events session.PeerEvents) (session.Peer, error) {
	pc, err := e.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers(servers),
	})
	if err != nil {
		return nil, err
	}
	return newPeer(pc, events), nil
}

// OpenLocalMedia opens the local audio and video tracks.
func (e *Engine) OpenLocalMedia() (session.LocalMedia, error) {
	return e.source.open()
}
