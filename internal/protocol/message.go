// Package protocol defines the JSON signaling messages exchanged with the
// relay server and the helpers that build and pick them apart.
package protocol

import (
	"encoding/json"
)

// Type identifies the kind of signaling message.
type Type string

const (
	TypeRegister     Type = "register"
	TypeRegistered   Type = "registered"
	TypeListClients  Type = "list-clients"
	TypeClientList   Type = "client-list"
	TypeUserOffline  Type = "user-offline"
	TypeCallRequest  Type = "call-request"
	TypeCallResponse Type = "call-response"
	TypeCallCancel   Type = "call-cancel"
	TypeCallEnd      Type = "call-end"
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeCandidate    Type = "ice-candidate"
)

// Known reports whether t is part of the wire vocabulary.
func (t Type) Known() bool {
	switch t {
	case TypeRegister, TypeRegistered, TypeListClients, TypeClientList,
		TypeUserOffline, TypeCallRequest, TypeCallResponse, TypeCallCancel,
		TypeCallEnd, TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}

// Relayed reports whether the relay forwards messages of this type to the
// client named in To.
func (t Type) Relayed() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeCandidate,
		TypeCallRequest, TypeCallResponse, TypeCallCancel, TypeCallEnd:
		return true
	}
	return false
}

// Reasons carried by call-response, call-cancel and call-end.
const (
	ReasonRejected  = "rejected"
	ReasonBusy      = "busy"
	ReasonCancelled = "cancelled"
	ReasonHangup    = "hangup"
)

// ServerID is the sender id the relay uses for its own notifications.
const ServerID = "server"

// Message is the envelope of every signaling message. To is empty for
// broadcasts; Payload is type specific.
type Message struct {
	Type    Type            `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ICEServer is one STUN/TURN entry handed out by the relay at registration.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// UnmarshalJSON accepts "urls" either as an array or as a single string.
func (s *ICEServer) UnmarshalJSON(data []byte) error {
	var raw struct {
		URLs       json.RawMessage `json:"urls"`
		Username   string          `json:"username"`
		Credential string          `json:"credential"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Username = raw.Username
	s.Credential = raw.Credential
	s.URLs = nil

	if len(raw.URLs) == 0 || string(raw.URLs) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.URLs, &single); err == nil {
		s.URLs = []string{single}
		return nil
	}
	return json.Unmarshal(raw.URLs, &s.URLs)
}

// Client is one entry of a client-list payload.
type Client struct {
	ID string `json:"id"`
}

// Description is a session description: "offer" or "answer" plus the SDP body.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is an ICE candidate as carried in ice-candidate payloads.
type Candidate struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}

// Payload shapes.

type registeredPayload struct {
	ICEServers []ICEServer `json:"iceServers"`
}

type clientListPayload struct {
	Clients []Client `json:"clients"`
}

type userOfflinePayload struct {
	ClientID string `json:"clientId"`
}

type callRequestPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type callResponsePayload struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type reasonPayload struct {
	Reason string `json:"reason,omitempty"`
}

type sdpPayload struct {
	SDP Description `json:"sdp"`
}

type candidatePayload struct {
	Candidate Candidate `json:"candidate"`
}
