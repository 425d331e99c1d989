package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peercall/internal/rtcstats"
)

// convertStats keeps the entries the snapshot needs from a pion report.
func convertStats(report webrtc.StatsReport, video *rtcstats.RemoteVideo) rtcstats.Report {
	out := rtcstats.Report{Video: video}

	for _, s := range report {
		switch st := s.(type) {
		case webrtc.InboundRTPStreamStats:
			out.Inbound = append(out.Inbound, rtcstats.InboundRTP{
				Kind:            st.Kind,
				BytesReceived:   st.BytesReceived,
				PacketsReceived: uint64(st.PacketsReceived),
				PacketsLost:     int64(st.PacketsLost),
				Jitter:          st.Jitter,
			})
		case webrtc.OutboundRTPStreamStats:
			out.Outbound = append(out.Outbound, rtcstats.OutboundRTP{
				Kind:      st.Kind,
				BytesSent: st.BytesSent,
			})
		case webrtc.ICECandidatePairStats:
			if !st.Nominated {
				continue
			}
			out.Pair = &rtcstats.CandidatePair{
				RoundTripTime:            st.CurrentRoundTripTime,
				AvailableIncomingBitrate: st.AvailableIncomingBitrate,
				AvailableOutgoingBitrate: st.AvailableOutgoingBitrate,
			}
		}
	}
	return out
}
