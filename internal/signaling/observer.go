package signaling

import (
	"encoding/json"
	"time"

	"github.com/1ureka/peercall/internal/protocol"
)

// Observer receives connection events and typed inbound messages. Methods
// are called from the channel's own goroutines; implementations must hand
// the work over to their owner rather than mutate shared state directly.
type Observer interface {
	OnConnected(clientID string)
	OnDisconnected()
	OnConnectionError(err error)
	// OnReconnectScheduled reports the next automatic reconnect attempt.
	OnReconnectScheduled(attempt int, delay time.Duration)

	OnICEServers(servers []protocol.ICEServer)
	OnClientList(clients []protocol.Client)
	OnUserOffline(clientID string)

	OnCallRequest(from string)
	OnCallResponse(from string, accepted bool, reason string)
	OnCallCancel(from, reason string)
	OnCallEnd(from, reason string)

	// Offer, answer and candidate payloads are passed through untouched;
	// their shape is tolerated by protocol.ExtractSDP / ExtractCandidate.
	OnOffer(from string, payload json.RawMessage)
	OnAnswer(from string, payload json.RawMessage)
	OnICECandidate(from string, payload json.RawMessage)
}
