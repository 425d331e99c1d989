package relay_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/relay"
)

func startRelay(t *testing.T, opts ...relay.Option) (*relay.Server, *httptest.Server) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := relay.New(append([]relay.Option{relay.WithLogger(logger)}, opts...)...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, uid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/webrtc?uid=" + uid
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ protocol.Type) *protocol.Message {
	t.Helper()
	for {
		if msg := read(t, conn); msg.Type == typ {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func clientIDs(t *testing.T, msg *protocol.Message) []string {
	t.Helper()
	clients, err := protocol.Clients(msg)
	require.NoError(t, err)
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	return ids
}

// TestHTTPEndpoints verifies the health check and the uid requirement.
func TestHTTPEndpoints(t *testing.T) {
	_, ts := startRelay(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(ts.URL + "/ws/webrtc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestRegistrationGreeting verifies a newcomer first receives registered with
// the configured ICE servers, then the client list.
func TestRegistrationGreeting(t *testing.T) {
	servers := []protocol.ICEServer{{URLs: []string{"stun:stun.example:3478"}}}
	_, ts := startRelay(t, relay.WithICEServers(servers))

	conn := dial(t, ts, "alice")

	first := read(t, conn)
	require.Equal(t, protocol.TypeRegistered, first.Type)
	assert.Equal(t, "alice", first.From)
	got, err := protocol.ICEServers(first)
	require.NoError(t, err)
	assert.Equal(t, servers, got)

	second := read(t, conn)
	require.Equal(t, protocol.TypeClientList, second.Type)
	assert.Equal(t, []string{"alice"}, clientIDs(t, second))
}

// TestRelayRouting verifies targeted messages reach only their recipient
// with the sender id stamped by the relay.
func TestRelayRouting(t *testing.T) {
	_, ts := startRelay(t)

	alice := dial(t, ts, "alice")
	readUntil(t, alice, protocol.TypeRegistered)
	bob := dial(t, ts, "bob")
	readUntil(t, bob, protocol.TypeRegistered)

	offer := protocol.NewOffer("bob", "v=0\r\n")
	offer.From = "mallory"
	send(t, alice, offer)

	got := readUntil(t, bob, protocol.TypeOffer)
	assert.Equal(t, "alice", got.From)
	assert.Equal(t, "bob", got.To)
	desc, err := protocol.ExtractSDP(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, "v=0\r\n", desc.SDP)

	send(t, bob, protocol.NewCallResponse("alice", false, protocol.ReasonBusy))
	resp := readUntil(t, alice, protocol.TypeCallResponse)
	accepted, reason, err := protocol.CallResponse(resp)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, protocol.ReasonBusy, reason)
}

// TestListClients verifies list-clients is answered with every uid.
func TestListClients(t *testing.T) {
	_, ts := startRelay(t)

	alice := dial(t, ts, "alice")
	readUntil(t, alice, protocol.TypeRegistered)
	bob := dial(t, ts, "bob")
	readUntil(t, bob, protocol.TypeRegistered)
	read(t, bob) // own client list

	send(t, bob, protocol.NewListClients())
	msg := readUntil(t, bob, protocol.TypeClientList)
	assert.Equal(t, []string{"alice", "bob"}, clientIDs(t, msg))
}

// TestUserOffline verifies the remaining clients learn about a disconnect.
func TestUserOffline(t *testing.T) {
	s, ts := startRelay(t)

	alice := dial(t, ts, "alice")
	readUntil(t, alice, protocol.TypeRegistered)
	bob := dial(t, ts, "bob")
	readUntil(t, bob, protocol.TypeRegistered)

	require.NoError(t, bob.Close())

	msg := readUntil(t, alice, protocol.TypeUserOffline)
	assert.Equal(t, protocol.ServerID, msg.From)
	id, err := protocol.OfflineClient(msg)
	require.NoError(t, err)
	assert.Equal(t, "bob", id)

	list := readUntil(t, alice, protocol.TypeClientList)
	assert.Equal(t, []string{"alice"}, clientIDs(t, list))
	assert.Equal(t, []string{"alice"}, s.ClientIDs())
}

// TestDuplicateLogin verifies a second connection with the same uid replaces
// the first, and the stale disconnect does not evict it.
func TestDuplicateLogin(t *testing.T) {
	s, ts := startRelay(t)

	first := dial(t, ts, "alice")
	readUntil(t, first, protocol.TypeRegistered)
	second := dial(t, ts, "alice")
	readUntil(t, second, protocol.TypeRegistered)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	bob := dial(t, ts, "bob")
	readUntil(t, bob, protocol.TypeRegistered)
	send(t, bob, protocol.NewCallRequest("alice", time.Now()))

	msg := readUntil(t, second, protocol.TypeCallRequest)
	assert.Equal(t, "bob", msg.From)
	assert.ElementsMatch(t, []string{"alice", "bob"}, s.ClientIDs())
}
