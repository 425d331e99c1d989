package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Encode serializes a Message for transmission over the WebSocket.
func Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses a WebSocket text frame into a Message. Messages with an
// unrecognised type are returned together with ErrUnknownType so callers can
// still log what arrived.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if !msg.Type.Known() {
		return &msg, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return &msg, nil
}

// rawPayload marshals one of the package's payload structs. These contain
// only strings, numbers and slices, so marshalling cannot fail.
func rawPayload(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// ---------------------------------------------------------------------------
// Client → relay
// ---------------------------------------------------------------------------

func NewRegister() *Message {
	return &Message{Type: TypeRegister}
}

func NewListClients() *Message {
	return &Message{Type: TypeListClients}
}

// NewCallRequest builds a call-request stamped with the send time in ms.
func NewCallRequest(to string, now time.Time) *Message {
	return &Message{
		Type:    TypeCallRequest,
		To:      to,
		Payload: rawPayload(callRequestPayload{Timestamp: now.UnixMilli()}),
	}
}

func NewCallResponse(to string, accepted bool, reason string) *Message {
	return &Message{
		Type:    TypeCallResponse,
		To:      to,
		Payload: rawPayload(callResponsePayload{Accepted: accepted, Reason: reason}),
	}
}

func NewCallCancel(to, reason string) *Message {
	return &Message{Type: TypeCallCancel, To: to, Payload: rawPayload(reasonPayload{Reason: reason})}
}

func NewCallEnd(to, reason string) *Message {
	return &Message{Type: TypeCallEnd, To: to, Payload: rawPayload(reasonPayload{Reason: reason})}
}

// NewOffer wraps a local offer in the nested {sdp:{type,sdp}} shape.
func NewOffer(to, sdp string) *Message {
	return &Message{
		Type:    TypeOffer,
		To:      to,
		Payload: rawPayload(sdpPayload{SDP: Description{Type: string(TypeOffer), SDP: sdp}}),
	}
}

// NewAnswer wraps a local answer in the nested {sdp:{type,sdp}} shape.
func NewAnswer(to, sdp string) *Message {
	return &Message{
		Type:    TypeAnswer,
		To:      to,
		Payload: rawPayload(sdpPayload{SDP: Description{Type: string(TypeAnswer), SDP: sdp}}),
	}
}

func NewCandidate(to string, c Candidate) *Message {
	return &Message{Type: TypeCandidate, To: to, Payload: rawPayload(candidatePayload{Candidate: c})}
}

// ---------------------------------------------------------------------------
// Relay → client
// ---------------------------------------------------------------------------

// NewRegistered acknowledges a registration and hands out the ICE servers.
func NewRegistered(uid string, servers []ICEServer) *Message {
	if servers == nil {
		servers = []ICEServer{}
	}
	return &Message{
		Type:    TypeRegistered,
		From:    uid,
		Payload: rawPayload(registeredPayload{ICEServers: servers}),
	}
}

func NewClientList(ids []string) *Message {
	clients := make([]Client, 0, len(ids))
	for _, id := range ids {
		clients = append(clients, Client{ID: id})
	}
	return &Message{Type: TypeClientList, Payload: rawPayload(clientListPayload{Clients: clients})}
}

func NewUserOffline(uid string) *Message {
	return &Message{
		Type:    TypeUserOffline,
		From:    ServerID,
		Payload: rawPayload(userOfflinePayload{ClientID: uid}),
	}
}
