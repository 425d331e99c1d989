package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/1ureka/peercall/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1 << 20
)

// client is one registered connection. Only writePump writes to conn.
type client struct {
	uid    string
	conn   *websocket.Conn
	server *Server

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(s *Server, uid string, conn *websocket.Conn) *client {
	return &client{
		uid:    uid,
		conn:   conn,
		server: s,
		send:   make(chan []byte, s.sendBuffer),
	}
}

// enqueue encodes msg onto the send queue. A full queue drops the message.
func (c *client) enqueue(msg *protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.server.log.WithError(err).WithField("uid", c.uid).Error("encode failed")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.server.log.WithFields(logrus.Fields{"uid": c.uid, "type": msg.Type}).Warn("send buffer full, dropping")
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.server.log.WithError(err).WithField("uid", c.uid).Debug("read failed")
			}
			return
		}
		c.server.handle(c, data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.server.log.WithError(err).WithField("uid", c.uid).Debug("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
