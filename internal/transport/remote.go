package transport

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peercall/internal/rtcstats"
	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/util"
)

const (
	packetBuffer = 128
	fpsWindow    = time.Second
)

// RemoteTrack is a received track. Its packets can be consumed through
// Packets; slow consumers lose packets rather than stall the receiver.
type RemoteTrack struct {
	id   string
	kind session.TrackKind

	track   *webrtc.TrackRemote
	packets chan *rtp.Packet
	meter   *videoMeter
	dropped atomic.Uint64
}

var _ session.RemoteTrack = (*RemoteTrack)(nil)

func newRemoteTrack(track *webrtc.TrackRemote) *RemoteTrack {
	return &RemoteTrack{
		id:      track.ID(),
		kind:    trackKind(track.Kind()),
		track:   track,
		packets: make(chan *rtp.Packet, packetBuffer),
		meter:   &videoMeter{},
	}
}

func (r *RemoteTrack) ID() string              { return r.id }
func (r *RemoteTrack) Kind() session.TrackKind { return r.kind }

// Packets is closed when the track ends.
func (r *RemoteTrack) Packets() <-chan *rtp.Packet { return r.packets }

// Dropped counts packets no consumer picked up in time.
func (r *RemoteTrack) Dropped() uint64 { return r.dropped.Load() }

// pump reads until the track ends.
func (r *RemoteTrack) pump() {
	defer close(r.packets)

	for {
		pkt, _, err := r.track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				util.LogDebug("remote %s track %s: %v", r.kind, r.id, err)
			}
			return
		}

		if r.kind == session.KindVideo {
			r.meter.observe(pkt, time.Now())
		}

		select {
		case r.packets <- pkt:
		default:
			r.dropped.Add(1)
		}
	}
}

// videoMeter measures frame rate from RTP marker bits and the frame size
// from VP8 keyframe headers.
type videoMeter struct {
	mu          sync.Mutex
	windowStart time.Time
	frames      int
	fps         float64
	width       int
	height      int
	seen        bool
}

func (m *videoMeter) observe(pkt *rtp.Packet, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen = true
	if m.windowStart.IsZero() {
		m.windowStart = now
	}

	if w, h, ok := vp8KeyframeSize(pkt.Payload); ok {
		m.width, m.height = w, h
	}

	// The marker bit closes a video frame.
	if pkt.Marker {
		m.frames++
	}

	if elapsed := now.Sub(m.windowStart); elapsed >= fpsWindow {
		m.fps = float64(m.frames) / elapsed.Seconds()
		m.frames = 0
		m.windowStart = now
	}
}

func (m *videoMeter) snapshot() *rtcstats.RemoteVideo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seen {
		return nil
	}
	return &rtcstats.RemoteVideo{FramesPerSecond: m.fps, Width: m.width, Height: m.height}
}

// vp8KeyframeSize returns the dimensions carried by the first packet of a
// VP8 keyframe.
func vp8KeyframeSize(payload []byte) (width, height int, ok bool) {
	var desc codecs.VP8Packet
	frame, err := desc.Unmarshal(payload)
	if err != nil || desc.S != 1 || desc.PID != 0 {
		return 0, 0, false
	}

	// 3-byte frame tag, 3-byte start code, 2+2 bytes of size.
	if len(frame) < 10 || frame[0]&0x01 != 0 {
		return 0, 0, false
	}
	if frame[3] != 0x9d || frame[4] != 0x01 || frame[5] != 0x2a {
		return 0, 0, false
	}

	width = int(binary.LittleEndian.Uint16(frame[6:8]) & 0x3fff)
	height = int(binary.LittleEndian.Uint16(frame[8:10]) & 0x3fff)
	return width, height, width > 0 && height > 0
}
