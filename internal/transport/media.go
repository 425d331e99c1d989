//go:build !(linux && capture)

package transport

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/util"
)

const (
	streamID     = "peercall"
	opusInterval = 20 * time.Millisecond
)

// An Opus frame decoding to 20 ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// generatedSource is used when the binary is built without capture
// support: audio carries silence and video stays idle.
type generatedSource struct{}

func newMediaSource() (mediaSource, error) {
	return generatedSource{}, nil
}

func (generatedSource) register(m *webrtc.MediaEngine) error {
	return m.RegisterDefaultCodecs()
}

func (generatedSource) open() (session.LocalMedia, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", streamID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &generatedMedia{
		audio:  newLocalTrack(session.KindAudio, audio),
		video:  newLocalTrack(session.KindVideo, video),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.writeSilence(ctx, audio)

	util.LogInfo("capture not built in, sending generated media")
	return m, nil
}

type generatedMedia struct {
	audio  *LocalTrack
	video  *LocalTrack
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *generatedMedia) Tracks() []session.LocalTrack {
	var out []session.LocalTrack
	if m.audio != nil {
		out = append(out, m.audio)
	}
	if m.video != nil {
		out = append(out, m.video)
	}
	return out
}

func (m *generatedMedia) StopCapture() {
	m.cancel()
	<-m.done
}

func (m *generatedMedia) ReleaseTracks() {
	m.audio, m.video = nil, nil
}

// ReleaseSources has nothing to free; the generator stops with StopCapture.
func (m *generatedMedia) ReleaseSources() {}

func (m *generatedMedia) writeSilence(ctx context.Context, track *webrtc.TrackLocalStaticSample) {
	defer close(m.done)

	ticker := time.NewTicker(opusInterval)
	defer ticker.Stop()

	audio := m.audio
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !audio.Enabled() {
				continue
			}
			if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: opusInterval}); err != nil {
				util.LogDebug("failed to write silence: %v", err)
			}
		}
	}
}
