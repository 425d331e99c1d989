package signaling

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/peercall/internal/protocol"
)

const writeWait = 10 * time.Second

// sender serializes outgoing frames; gorilla connections allow only one
// concurrent writer.
type sender struct {
	mu sync.Mutex
}

// write encodes msg and writes it as a text frame, guarded by a mutex.
func (s *sender) write(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}

// close sends a normal close frame and closes conn.
func (s *sender) close(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(writeWait))
	conn.Close()
}

// Send stamps msg with our client id and writes it to the relay.
func (c *Channel) Send(msg *protocol.Message) error {
	c.mu.Lock()
	conn, id, connected := c.conn, c.clientID, c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	msg.From = id
	return c.sender.write(conn, msg)
}

// RequestClientList asks the relay for the current client list.
func (c *Channel) RequestClientList() error {
	return c.Send(protocol.NewListClients())
}
