package rtcstats

import (
	"time"
)

// Snapshot is a read-only projection of transport health at one instant.
// Loss percentages are -1 when no stream of that kind exists; bitrates are 0
// when they cannot be determined yet.
type Snapshot struct {
	Timestamp time.Time
	ICEState  string

	InboundKbps  float64
	OutboundKbps float64

	RTTMillis         float64
	AudioJitterMillis float64

	AudioLossPercent float64
	VideoLossPercent float64

	VideoFPS    float64
	VideoWidth  int
	VideoHeight int

	Valid bool
}

// Invalid returns a snapshot that carries only the ICE state.
func Invalid(iceState string) Snapshot {
	return Snapshot{ICEState: iceState, AudioLossPercent: -1, VideoLossPercent: -1}
}

// Sampler converts successive reports into snapshots. It keeps the previous
// byte totals so a bitrate can be derived when the engine does not report one.
type Sampler struct {
	hasPrev bool
	prevAt  time.Time
	prevIn  uint64
	prevOut uint64
}

// Reset forgets the previous sample, e.g. when a new session starts.
func (s *Sampler) Reset() {
	*s = Sampler{}
}

// Sample projects r taken at now into a Snapshot.
func (s *Sampler) Sample(r Report, iceState string, now time.Time) Snapshot {
	if r.Empty() {
		return Invalid(iceState)
	}

	snap := Snapshot{
		Timestamp:        now,
		ICEState:         iceState,
		AudioLossPercent: -1,
		VideoLossPercent: -1,
		Valid:            true,
	}

	var bytesIn, bytesOut uint64
	for _, in := range r.Inbound {
		bytesIn += in.BytesReceived
		loss := LossPercent(in.PacketsLost, in.PacketsReceived)

		switch in.Kind {
		case KindAudio:
			snap.AudioLossPercent = loss
			snap.AudioJitterMillis = in.Jitter * 1000
		case KindVideo:
			snap.VideoLossPercent = loss
		}
	}
	for _, out := range r.Outbound {
		bytesOut += out.BytesSent
	}

	if r.Pair != nil {
		snap.RTTMillis = r.Pair.RoundTripTime * 1000
		snap.InboundKbps = r.Pair.AvailableIncomingBitrate / 1000
		snap.OutboundKbps = r.Pair.AvailableOutgoingBitrate / 1000
	}

	if s.hasPrev {
		elapsed := float64(now.Sub(s.prevAt).Microseconds()) / 1000
		if snap.InboundKbps <= 0 {
			snap.InboundKbps = DeriveKbps(s.prevIn, bytesIn, elapsed)
		}
		if snap.OutboundKbps <= 0 {
			snap.OutboundKbps = DeriveKbps(s.prevOut, bytesOut, elapsed)
		}
	}

	if r.Video != nil {
		snap.VideoFPS = r.Video.FramesPerSecond
		snap.VideoWidth = r.Video.Width
		snap.VideoHeight = r.Video.Height
	}

	s.hasPrev = true
	s.prevAt = now
	s.prevIn = bytesIn
	s.prevOut = bytesOut

	return snap
}

// LossPercent returns lost/(lost+received)×100, or 0 when nothing has been
// counted yet.
func LossPercent(lost int64, received uint64) float64 {
	if lost < 0 {
		lost = 0
	}
	total := float64(lost) + float64(received)
	if total <= 0 {
		return 0
	}
	return float64(lost) / total * 100
}

// DeriveKbps returns the bitrate between two byte totals taken elapsedMs
// apart. Bits divided by milliseconds is kilobits per second. A non-positive
// interval or a counter that went backwards yields 0.
func DeriveKbps(prevBytes, curBytes uint64, elapsedMs float64) float64 {
	if elapsedMs <= 0 || curBytes < prevBytes {
		return 0
	}
	return float64(curBytes-prevBytes) * 8 / elapsedMs
}
