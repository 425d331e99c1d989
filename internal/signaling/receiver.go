package signaling

import (
	"errors"

	"github.com/gorilla/websocket"

	"github.com/1ureka/peercall/internal/protocol"
	"github.com/1ureka/peercall/internal/util"
)

// watch reads frames from conn until it fails, dispatching each message.
func (c *Channel) watch(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes one frame and hands it to the matching observer method.
// Malformed and unknown messages are logged and dropped.
func (c *Channel) dispatch(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			util.LogWarning("dropping message from %s: %v", msg.From, err)
		} else {
			util.LogWarning("dropping message: %v", err)
		}
		return
	}

	util.LogDebug("received %s from %q", msg.Type, msg.From)

	switch msg.Type {
	case protocol.TypeRegistered:
		servers, err := protocol.ICEServers(msg)
		if err != nil {
			util.LogWarning("registered without usable ICE servers: %v", err)
		} else {
			c.mu.Lock()
			c.iceServers = servers
			c.mu.Unlock()
			util.LogInfo("registered, %d ICE server(s) offered", len(servers))
			c.obs.OnICEServers(servers)
		}
		if err := c.RequestClientList(); err != nil {
			util.LogWarning("failed to request client list: %v", err)
		}

	case protocol.TypeClientList:
		clients, err := protocol.Clients(msg)
		if err != nil {
			util.LogWarning("dropping client list: %v", err)
			return
		}
		c.obs.OnClientList(clients)

	case protocol.TypeUserOffline:
		id, err := protocol.OfflineClient(msg)
		if err != nil || id == "" {
			util.LogWarning("dropping user-offline without client id")
			return
		}
		c.obs.OnUserOffline(id)

	case protocol.TypeCallRequest:
		c.obs.OnCallRequest(msg.From)

	case protocol.TypeCallResponse:
		accepted, reason, err := protocol.CallResponse(msg)
		if err != nil {
			util.LogWarning("dropping call response from %s: %v", msg.From, err)
			return
		}
		c.obs.OnCallResponse(msg.From, accepted, reason)

	case protocol.TypeCallCancel:
		c.obs.OnCallCancel(msg.From, protocol.Reason(msg))

	case protocol.TypeCallEnd:
		c.obs.OnCallEnd(msg.From, protocol.Reason(msg))

	case protocol.TypeOffer:
		c.obs.OnOffer(msg.From, msg.Payload)

	case protocol.TypeAnswer:
		c.obs.OnAnswer(msg.From, msg.Payload)

	case protocol.TypeCandidate:
		c.obs.OnICECandidate(msg.From, msg.Payload)

	default:
		util.LogDebug("ignoring %s on the client side", msg.Type)
	}
}
