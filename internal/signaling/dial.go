package signaling

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// dialFunc opens the WebSocket; tests replace it.
type dialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// connect dials the given WebSocket URL and returns the connection.
func connect(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}
	return conn, nil
}

// withUID appends the client id as the uid query parameter, e.g.
//
//	ws://relay.example:8081/ws/webrtc?uid=4f2a9c1e
func withUID(base, clientID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "uid=" + url.QueryEscape(clientID)
}
