package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodePayload unmarshals raw into v. An absent payload leaves v untouched.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ICEServers returns the server list carried by a registered message.
func ICEServers(msg *Message) ([]ICEServer, error) {
	var p registeredPayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return nil, err
	}
	return p.ICEServers, nil
}

// Clients returns the entries of a client-list message.
func Clients(msg *Message) ([]Client, error) {
	var p clientListPayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return nil, err
	}
	return p.Clients, nil
}

// OfflineClient returns the id announced by a user-offline message.
func OfflineClient(msg *Message) (string, error) {
	var p userOfflinePayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return "", err
	}
	return p.ClientID, nil
}

// CallResponse returns the verdict of a call-response message.
func CallResponse(msg *Message) (accepted bool, reason string, err error) {
	var p callResponsePayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return false, "", err
	}
	return p.Accepted, p.Reason, nil
}

// Reason returns the optional reason of a call-cancel or call-end message.
// A malformed payload yields an empty reason.
func Reason(msg *Message) string {
	var p reasonPayload
	_ = decodePayload(msg.Payload, &p)
	return p.Reason
}

// ExtractSDP pulls the session description out of an offer/answer payload.
// Two shapes are accepted:
//
//	{"sdp": {"type": "offer", "sdp": "v=0..."}}
//	{"sdp": "v=0...", "type": "offer"}
func ExtractSDP(payload json.RawMessage) (Description, error) {
	var p struct {
		SDP  json.RawMessage `json:"sdp"`
		Type string          `json:"type"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return Description{}, err
	}

	raw := bytes.TrimSpace(p.SDP)
	if len(raw) == 0 || string(raw) == "null" {
		return Description{}, ErrMissingSDP
	}

	var desc Description
	switch raw[0] {
	case '{':
		if err := json.Unmarshal(raw, &desc); err != nil {
			return Description{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if desc.Type == "" {
			desc.Type = p.Type
		}
	case '"':
		if err := json.Unmarshal(raw, &desc.SDP); err != nil {
			return Description{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		desc.Type = p.Type
	default:
		return Description{}, fmt.Errorf("%w: unexpected sdp value", ErrMalformed)
	}

	if desc.SDP == "" {
		return Description{}, ErrMissingSDP
	}
	return desc, nil
}

// ExtractCandidate pulls the ICE candidate out of an ice-candidate payload.
// Two shapes are accepted:
//
//	{"candidate": {"sdpMid": "0", "sdpMLineIndex": 0, "candidate": "candidate:..."}}
//	{"sdpMid": "0", "sdpMLineIndex": 0, "candidate": "candidate:..."}
//
// The m-line index is read from "sdpMLineIndex" or, failing that, from
// "sdpMlineIndex". A candidate without mid, index or text is rejected.
func ExtractCandidate(payload json.RawMessage) (Candidate, error) {
	var fields map[string]json.RawMessage
	if err := decodePayload(payload, &fields); err != nil {
		return Candidate{}, err
	}
	if len(fields) == 0 {
		return Candidate{}, ErrMissingCandidate
	}

	// Nested shape; otherwise the fields sit on the payload itself.
	if raw := bytes.TrimSpace(fields["candidate"]); len(raw) > 0 && raw[0] == '{' {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return Candidate{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		fields = nested
	}

	var c Candidate
	if raw, ok := fields["sdpMid"]; ok {
		_ = json.Unmarshal(raw, &c.SDPMid)
	}
	if raw, ok := fields["candidate"]; ok {
		_ = json.Unmarshal(raw, &c.Candidate)
	}

	index := -1
	for _, key := range []string{"sdpMLineIndex", "sdpMlineIndex"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v int
		if err := json.Unmarshal(raw, &v); err == nil {
			index = v
			break
		}
	}
	c.SDPMLineIndex = index

	switch {
	case c.SDPMid == "":
		return Candidate{}, fmt.Errorf("%w: missing sdpMid", ErrMissingCandidate)
	case c.SDPMLineIndex < 0:
		return Candidate{}, fmt.Errorf("%w: missing sdpMLineIndex", ErrMissingCandidate)
	case c.Candidate == "":
		return Candidate{}, fmt.Errorf("%w: missing candidate text", ErrMissingCandidate)
	}
	return c, nil
}
