// Package rtcstats turns raw transport statistics into the snapshot shown to
// the user: bitrates, round-trip time, jitter, loss and remote video shape.
package rtcstats

// Media kinds as reported by the engine.
const (
	KindAudio = "audio"
	KindVideo = "video"
)

// Report is an engine-neutral statistics report for one session.
type Report struct {
	Inbound  []InboundRTP
	Outbound []OutboundRTP

	// Pair is the nominated candidate pair, nil before ICE has selected one.
	Pair *CandidatePair

	// Video describes the remote video as measured from received RTP, nil
	// when no remote video track exists.
	Video *RemoteVideo
}

type InboundRTP struct {
	Kind            string
	BytesReceived   uint64
	PacketsReceived uint64
	PacketsLost     int64
	Jitter          float64 // seconds
}

type OutboundRTP struct {
	Kind      string
	BytesSent uint64
}

type CandidatePair struct {
	RoundTripTime            float64 // seconds
	AvailableIncomingBitrate float64 // bits per second, 0 when unknown
	AvailableOutgoingBitrate float64 // bits per second, 0 when unknown
}

type RemoteVideo struct {
	FramesPerSecond float64
	Width           int
	Height          int
}

// Empty reports whether the report carries nothing worth sampling.
func (r Report) Empty() bool {
	return len(r.Inbound) == 0 && len(r.Outbound) == 0 && r.Pair == nil && r.Video == nil
}
