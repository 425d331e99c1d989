package transport

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peercall/internal/session"
)

// LocalTrack is an outgoing track. While disabled nothing is written to it.
type LocalTrack struct {
	kind    session.TrackKind
	rtc     webrtc.TrackLocal
	enabled atomic.Bool
}

var _ session.LocalTrack = (*LocalTrack)(nil)

func newLocalTrack(kind session.TrackKind, rtc webrtc.TrackLocal) *LocalTrack {
	t := &LocalTrack{kind: kind, rtc: rtc}
	t.enabled.Store(true)
	return t
}

func (t *LocalTrack) ID() string              { return t.rtc.ID() }
func (t *LocalTrack) Kind() session.TrackKind { return t.kind }
func (t *LocalTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }
func (t *LocalTrack) Enabled() bool           { return t.enabled.Load() }
