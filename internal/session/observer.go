package session

import "github.com/1ureka/peercall/internal/protocol"

// Observer receives negotiation results on the coordination goroutine.
type Observer interface {
	OnLocalVideoTrack(track LocalTrack)
	OnRemoteVideoTrack(track RemoteTrack)
	OnRemoteVideoTrackRemoved(track RemoteTrack)

	OnOfferCreated(sdp string)
	OnAnswerCreated(sdp string)
	OnICECandidate(c protocol.Candidate)

	// OnICEStateChange reports every ICE transition.
	OnICEStateChange(state ICEState)
	// OnEstablished fires once per session, on the first connected or
	// completed state.
	OnEstablished()
	// OnICEWarning reports failed, disconnected and closed states.
	OnICEWarning(state ICEState)

	OnError(err error)
}
