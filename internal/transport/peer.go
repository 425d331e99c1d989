package transport

import (
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/session"
)

// Public STUN servers used when signaling handed out none.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// iceServers maps the signaling list onto pion's configuration.
func iceServers(servers []protocol.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		if len(s.URLs) == 0 {
			continue
		}
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(out) == 0 {
		out = append(out, webrtc.ICEServer{URLs: stunServers})
	}
	return out
}

// parseDescription validates a remote description before pion sees it.
func parseDescription(desc protocol.Description) (webrtc.SessionDescription, error) {
	typ := webrtc.NewSDPType(desc.Type)
	if typ == webrtc.SDPTypeUnknown {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: unknown type %q", session.ErrSDPParse, desc.Type)
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", session.ErrSDPParse, err)
	}
	if len(parsed.MediaDescriptions) == 0 {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: no media sections", session.ErrSDPParse)
	}

	return webrtc.SessionDescription{Type: typ, SDP: desc.SDP}, nil
}

// parseCandidate validates a remote candidate line and converts it.
func parseCandidate(c protocol.Candidate) (webrtc.ICECandidateInit, error) {
	line := strings.TrimPrefix(c.Candidate, "candidate:")
	if _, err := ice.UnmarshalCandidate(line); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %v", session.ErrCandidateParse, err)
	}
	if c.SDPMLineIndex < 0 || c.SDPMLineIndex > 0xffff {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: m-line index %d", session.ErrCandidateParse, c.SDPMLineIndex)
	}

	mid := c.SDPMid
	index := uint16(c.SDPMLineIndex)
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}, nil
}

// toCandidate converts a locally gathered candidate for signaling.
func toCandidate(init webrtc.ICECandidateInit) protocol.Candidate {
	c := protocol.Candidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		c.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		c.SDPMLineIndex = int(*init.SDPMLineIndex)
	}
	return c
}

func toDescription(d webrtc.SessionDescription) protocol.Description {
	return protocol.Description{Type: d.Type.String(), SDP: d.SDP}
}

func trackKind(k webrtc.RTPCodecType) session.TrackKind {
	if k == webrtc.RTPCodecTypeVideo {
		return session.KindVideo
	}
	return session.KindAudio
}
