package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/peercall/internal/protocol"
)

// TestDecodeRejectsBadInput verifies malformed and unknown messages are
// reported with distinct errors.
func TestDecodeRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		wantErr error
		wantMsg bool
	}{
		{name: "not json", data: `{"type":`, wantErr: protocol.ErrMalformed},
		{name: "missing type", data: `{"from":"a"}`, wantErr: protocol.ErrMalformed},
		{name: "unknown type", data: `{"type":"conflict-resolution","from":"a"}`, wantErr: protocol.ErrUnknownType, wantMsg: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := protocol.Decode([]byte(tc.data))
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantMsg, msg != nil)
		})
	}
}

// TestDecodeCallResponse verifies the accepted flag and reason survive decoding.
func TestDecodeCallResponse(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"type":"call-response","from":"B","to":"A","payload":{"accepted":false,"reason":"busy"}}`))
	require.NoError(t, err)
	assert.Equal(t, "B", msg.From)

	accepted, reason, err := protocol.CallResponse(msg)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, protocol.ReasonBusy, reason)
}

// TestRegisteredICEServers verifies both array and string forms of "urls".
func TestRegisteredICEServers(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"type":"registered","from":"A","payload":{"iceServers":[
		{"urls":["stun:stun.l.google.com:19302"]},
		{"urls":"turn:relay.example:3478","username":"u","credential":"p"}
	]}}`))
	require.NoError(t, err)

	servers, err := protocol.ICEServers(msg)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, servers[0].URLs)
	assert.Equal(t, []string{"turn:relay.example:3478"}, servers[1].URLs)
	assert.Equal(t, "u", servers[1].Username)
	assert.Equal(t, "p", servers[1].Credential)
}

// TestExtractSDPShapes verifies the nested and the flat offer payloads
// produce the same description.
func TestExtractSDPShapes(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{name: "nested object", payload: `{"sdp":{"type":"offer","sdp":"v=0\r\n"}}`},
		{name: "flat string", payload: `{"sdp":"v=0\r\n","type":"offer"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			desc, err := protocol.ExtractSDP(json.RawMessage(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, protocol.Description{Type: "offer", SDP: "v=0\r\n"}, desc)
		})
	}
}

// TestExtractSDPMissing verifies payloads without an SDP body are rejected.
func TestExtractSDPMissing(t *testing.T) {
	for _, payload := range []string{``, `{}`, `{"sdp":""}`, `{"sdp":{"type":"answer"}}`} {
		_, err := protocol.ExtractSDP(json.RawMessage(payload))
		assert.ErrorIs(t, err, protocol.ErrMissingSDP, "payload %q", payload)
	}

	_, err := protocol.ExtractSDP(json.RawMessage(`{"sdp":42}`))
	assert.ErrorIs(t, err, protocol.ErrMalformed)
}

// TestExtractCandidate verifies the nested and flat payload shapes, both
// spellings of the m-line index and the rejection of incomplete candidates.
func TestExtractCandidate(t *testing.T) {
	const text = "candidate:1 1 udp 2130706431 192.168.1.2 50000 typ host"

	testCases := []struct {
		name    string
		payload string
		want    protocol.Candidate
		wantErr bool
	}{
		{
			name:    "sdpMLineIndex",
			payload: `{"candidate":{"sdpMid":"0","sdpMLineIndex":0,"candidate":"` + text + `"}}`,
			want:    protocol.Candidate{SDPMid: "0", SDPMLineIndex: 0, Candidate: text},
		},
		{
			name:    "sdpMlineIndex",
			payload: `{"candidate":{"sdpMid":"video","sdpMlineIndex":1,"candidate":"` + text + `"}}`,
			want:    protocol.Candidate{SDPMid: "video", SDPMLineIndex: 1, Candidate: text},
		},
		{
			name:    "flat",
			payload: `{"sdpMid":"0","sdpMLineIndex":0,"candidate":"` + text + `"}`,
			want:    protocol.Candidate{SDPMid: "0", SDPMLineIndex: 0, Candidate: text},
		},
		{
			name:    "flat sdpMlineIndex",
			payload: `{"sdpMid":"audio","sdpMlineIndex":2,"candidate":"` + text + `"}`,
			want:    protocol.Candidate{SDPMid: "audio", SDPMLineIndex: 2, Candidate: text},
		},
		{name: "flat missing mid", payload: `{"sdpMLineIndex":0,"candidate":"` + text + `"}`, wantErr: true},
		{name: "missing mid", payload: `{"candidate":{"sdpMLineIndex":0,"candidate":"` + text + `"}}`, wantErr: true},
		{name: "missing index", payload: `{"candidate":{"sdpMid":"0","candidate":"` + text + `"}}`, wantErr: true},
		{name: "negative index", payload: `{"candidate":{"sdpMid":"0","sdpMLineIndex":-1,"candidate":"` + text + `"}}`, wantErr: true},
		{name: "missing text", payload: `{"candidate":{"sdpMid":"0","sdpMLineIndex":0}}`, wantErr: true},
		{name: "no candidate", payload: `{}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := protocol.ExtractCandidate(json.RawMessage(tc.payload))
			if tc.wantErr {
				require.ErrorIs(t, err, protocol.ErrMissingCandidate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, c)
		})
	}
}

// TestOutboundShapes verifies outbound messages decode with the extractors
// the receiving side uses.
func TestOutboundShapes(t *testing.T) {
	offer := protocol.NewOffer("B", "v=0")
	desc, err := protocol.ExtractSDP(offer.Payload)
	require.NoError(t, err)
	assert.Equal(t, "offer", desc.Type)
	assert.Equal(t, "B", offer.To)

	cand := protocol.NewCandidate("B", protocol.Candidate{SDPMid: "0", SDPMLineIndex: 0, Candidate: "candidate:x"})
	c, err := protocol.ExtractCandidate(cand.Payload)
	require.NoError(t, err)
	assert.Equal(t, "candidate:x", c.Candidate)

	req := protocol.NewCallRequest("B", time.UnixMilli(1700000000000))
	var body map[string]int64
	require.NoError(t, json.Unmarshal(req.Payload, &body))
	assert.Equal(t, int64(1700000000000), body["timestamp"])

	end := protocol.NewCallEnd("B", protocol.ReasonHangup)
	assert.Equal(t, protocol.ReasonHangup, protocol.Reason(end))

	offline := protocol.NewUserOffline("C")
	id, err := protocol.OfflineClient(offline)
	require.NoError(t, err)
	assert.Equal(t, "C", id)
	assert.Equal(t, protocol.ServerID, offline.From)
}

// TestClientList verifies an empty list encodes as an empty array.
func TestClientList(t *testing.T) {
	msg := protocol.NewClientList(nil)
	assert.JSONEq(t, `{"clients":[]}`, string(msg.Payload))

	clients, err := protocol.Clients(protocol.NewClientList([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, []protocol.Client{{ID: "a"}, {ID: "b"}}, clients)
}
