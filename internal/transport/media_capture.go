//go:build linux && capture

package transport

import (
	"errors"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peercall/internal/session"
	"github.com/1ureka/peercall/internal/util"
)

var errNoCapture = errors.New("no camera or microphone could be opened")

// captureSource opens camera and microphone through mediadevices, encoding
// VP8 and Opus.
type captureSource struct {
	selector *mediadevices.CodecSelector
}

func newMediaSource() (mediaSource, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	return &captureSource{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

func (s *captureSource) register(m *webrtc.MediaEngine) error {
	s.selector.Populate(m)
	return nil
}

// open tries video and audio together, then each alone, so one missing
// device does not cost the other.
func (s *captureSource) open() (session.LocalMedia, error) {
	for _, d := range mediadevices.EnumerateDevices() {
		util.LogDebug("media device: kind=%v label=%q", d.Kind, d.Label)
	}

	attempts := []struct {
		video, audio bool
		label        string
	}{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	}

	for _, a := range attempts {
		constraints := mediadevices.MediaStreamConstraints{Codec: s.selector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// Raw formats only; MJPEG nodes on some cameras yield frames
				// the VP8 encoder cannot take.
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			util.LogWarning("capture (%s) failed: %v", a.label, err)
			continue
		}

		m := &capturedMedia{}
		for _, t := range stream.GetTracks() {
			t.OnEnded(func(err error) {
				if err != nil {
					util.LogWarning("local track ended: %v", err)
				}
			})
			m.raw = append(m.raw, t)
			m.tracks = append(m.tracks, newLocalTrack(trackKind(t.Kind()), t))
		}

		util.LogSuccess("local media captured (%s), %d track(s)", a.label, len(m.tracks))
		return m, nil
	}

	return nil, errNoCapture
}

type capturedMedia struct {
	raw    []mediadevices.Track
	tracks []*LocalTrack
}

func (m *capturedMedia) Tracks() []session.LocalTrack {
	out := make([]session.LocalTrack, 0, len(m.tracks))
	for _, t := range m.tracks {
		out = append(out, t)
	}
	return out
}

// StopCapture closes the device tracks, which stops the drivers.
func (m *capturedMedia) StopCapture() {
	for _, t := range m.raw {
		if err := t.Close(); err != nil {
			util.LogDebug("failed to close %s track: %v", t.Kind(), err)
		}
	}
	m.raw = nil
}

func (m *capturedMedia) ReleaseTracks() {
	m.tracks = nil
}

// ReleaseSources has nothing left to free once the tracks are closed.
func (m *capturedMedia) ReleaseSources() {}
