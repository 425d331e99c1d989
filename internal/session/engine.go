// Package session negotiates the media session of a call on top of a media
// engine: offers and answers, remote descriptions, ICE candidates, teardown
// and statistics.
package session

import (
	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/rtcstats"
)

// TrackKind distinguishes audio from video media.
type TrackKind string

const (
	KindAudio TrackKind = rtcstats.KindAudio
	KindVideo TrackKind = rtcstats.KindVideo
)

// ICEState is the ICE connection state as reported by the engine.
type ICEState string

const (
	ICENew          ICEState = "new"
	ICEChecking     ICEState = "checking"
	ICEConnected    ICEState = "connected"
	ICECompleted    ICEState = "completed"
	ICEFailed       ICEState = "failed"
	ICEDisconnected ICEState = "disconnected"
	ICEClosed       ICEState = "closed"
)

// Engine creates peers and opens local capture. Calls may block; the
// Negotiator only invokes them from its executor.
type Engine interface {
	NewPeer(servers []protocol.ICEServer, events PeerEvents) (Peer, error)
	OpenLocalMedia() (LocalMedia, error)
}

// PeerEvents receives asynchronous engine callbacks, on engine goroutines.
type PeerEvents interface {
	OnICECandidate(c protocol.Candidate)
	OnICEStateChange(state ICEState)
	OnTrack(track RemoteTrack)
	OnTrackEnded(track RemoteTrack)
}

// Peer is one negotiated point-to-point session inside the engine.
type Peer interface {
	AddTrack(track LocalTrack) error
	CreateOffer() (protocol.Description, error)
	CreateAnswer() (protocol.Description, error)
	SetLocalDescription(desc protocol.Description) error
	SetRemoteDescription(desc protocol.Description) error
	AddICECandidate(c protocol.Candidate) error
	Senders() []Sender
	RemoveSender(s Sender) error
	Stats() rtcstats.Report
	Close() error
}

// Sender is an outbound track attachment of a Peer.
type Sender interface {
	Kind() TrackKind
}

// LocalMedia is the set of captured local tracks and the sources behind them.
type LocalMedia interface {
	Tracks() []LocalTrack
	// StopCapture stops the capture hardware.
	StopCapture()
	ReleaseTracks()
	ReleaseSources()
}

type LocalTrack interface {
	ID() string
	Kind() TrackKind
	SetEnabled(enabled bool)
}

type RemoteTrack interface {
	ID() string
	Kind() TrackKind
}
