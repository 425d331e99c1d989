package rtcstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inboundVideo(bytes uint64) Report {
	return Report{Inbound: []InboundRTP{{Kind: KindVideo, BytesReceived: bytes, PacketsReceived: 10}}}
}

// TestDerivedBitrate verifies a 20000 byte delta over one second yields
// 160 kbps when the engine reports no bitrate of its own.
func TestDerivedBitrate(t *testing.T) {
	var s Sampler
	start := time.Unix(1700000000, 0)

	first := s.Sample(inboundVideo(10000), "connected", start)
	require.True(t, first.Valid)
	assert.Zero(t, first.InboundKbps, "no previous sample to derive from")

	second := s.Sample(inboundVideo(30000), "connected", start.Add(1000*time.Millisecond))
	assert.InDelta(t, 160.0, second.InboundKbps, 1e-9)
}

// TestDerivedBitrateNonPositiveElapsed verifies a sample at the same instant
// suppresses derivation for that sample only.
func TestDerivedBitrateNonPositiveElapsed(t *testing.T) {
	var s Sampler
	at := time.Unix(1700000000, 0)

	s.Sample(inboundVideo(10000), "", at)
	same := s.Sample(inboundVideo(30000), "", at)
	assert.Zero(t, same.InboundKbps)

	next := s.Sample(inboundVideo(40000), "", at.Add(500*time.Millisecond))
	assert.InDelta(t, 160.0, next.InboundKbps, 1e-9)
}

// TestEngineBitratePreferred verifies the candidate pair bitrate wins over
// the derived value.
func TestEngineBitratePreferred(t *testing.T) {
	var s Sampler
	at := time.Unix(1700000000, 0)

	r := inboundVideo(10000)
	r.Pair = &CandidatePair{RoundTripTime: 0.042, AvailableIncomingBitrate: 2_500_000}
	s.Sample(r, "", at)

	r = inboundVideo(30000)
	r.Pair = &CandidatePair{RoundTripTime: 0.042, AvailableIncomingBitrate: 2_500_000}
	snap := s.Sample(r, "", at.Add(time.Second))

	assert.InDelta(t, 2500.0, snap.InboundKbps, 1e-9)
	assert.InDelta(t, 42.0, snap.RTTMillis, 1e-9)
}

// TestLossAndJitter verifies per-kind loss percentages and audio jitter.
func TestLossAndJitter(t *testing.T) {
	var s Sampler
	snap := s.Sample(Report{
		Inbound: []InboundRTP{
			{Kind: KindAudio, PacketsReceived: 95, PacketsLost: 5, Jitter: 0.012},
			{Kind: KindVideo, PacketsReceived: 1000, PacketsLost: 0},
		},
		Video: &RemoteVideo{FramesPerSecond: 29.97, Width: 640, Height: 480},
	}, "completed", time.Now())

	assert.InDelta(t, 5.0, snap.AudioLossPercent, 1e-9)
	assert.InDelta(t, 0.0, snap.VideoLossPercent, 1e-9)
	assert.InDelta(t, 12.0, snap.AudioJitterMillis, 1e-9)
	assert.Equal(t, 640, snap.VideoWidth)
	assert.Equal(t, 480, snap.VideoHeight)
}

// TestEmptyReport verifies an empty report produces an invalid snapshot
// that still carries the ICE state.
func TestEmptyReport(t *testing.T) {
	var s Sampler
	snap := s.Sample(Report{}, "checking", time.Now())
	assert.False(t, snap.Valid)
	assert.Equal(t, "checking", snap.ICEState)
	assert.Equal(t, -1.0, snap.AudioLossPercent)
}

// TestFormatting verifies the display rules for each value kind.
func TestFormatting(t *testing.T) {
	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"bitrate zero", FormatBitrate(0), Placeholder},
		{"bitrate kbps", FormatBitrate(160), "160 kbps"},
		{"bitrate fractional kbps", FormatBitrate(12.34), "12.3 kbps"},
		{"bitrate mbps", FormatBitrate(1500), "1.5 Mbps"},
		{"bitrate mbps two decimals", FormatBitrate(2345.6), "2.35 Mbps"},
		{"percent", FormatPercent(1.234), "1.23 %"},
		{"percent zero", FormatPercent(0), "0 %"},
		{"percent unknown", FormatPercent(-1), Placeholder},
		{"millis", FormatMillis(42.06), "42.1 ms"},
		{"fps", FormatFPS(30), "30 fps"},
		{"resolution", FormatResolution(1280, 720), "1280x720"},
		{"resolution unknown", FormatResolution(0, 720), Placeholder},
		{"timestamp zero", FormatTimestamp(time.Time{}), Placeholder},
		{"ice empty", FormatICEState(""), Placeholder},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

// TestRowsInvalid verifies an invalid snapshot renders placeholders only.
func TestRowsInvalid(t *testing.T) {
	rows := Invalid("").Rows()
	require.Len(t, rows, 10)
	for _, row := range rows {
		assert.Equal(t, Placeholder, row[1], row[0])
	}
}
