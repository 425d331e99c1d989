// Package relay implements the signaling relay: clients register by uid over
// a WebSocket and the relay forwards call and negotiation messages between
// them. It never inspects SDP or candidates.
package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/1ureka/peercall/internal/protocol"
)

const defaultSendBuffer = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DefaultICEServers is what the relay hands out when none are configured.
var DefaultICEServers = []protocol.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
	{URLs: []string{"turn:openrelay.metered.ca:80"}, Username: "openrelayproject", Credential: "openrelayproject"},
	{URLs: []string{"turn:openrelay.metered.ca:443"}, Username: "openrelayproject", Credential: "openrelayproject"},
	{URLs: []string{"turn:openrelay.metered.ca:443?transport=tcp"}, Username: "openrelayproject", Credential: "openrelayproject"},
}

// Server is the relay. Create it with New and mount Handler, or call Serve.
type Server struct {
	log        *logrus.Logger
	iceServers []protocol.ICEServer
	sendBuffer int

	mu      sync.RWMutex
	clients map[string]*client

	httpMu  sync.Mutex
	httpSrv *http.Server
}

type Option func(*Server)

func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithICEServers sets the servers sent in every registered message.
func WithICEServers(servers []protocol.ICEServer) Option {
	return func(s *Server) {
		if len(servers) > 0 {
			s.iceServers = servers
		}
	}
}

// WithSendBuffer sets the per-client outgoing queue length.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		log:        logrus.StandardLogger(),
		iceServers: DefaultICEServers,
		sendBuffer: defaultSendBuffer,
		clients:    make(map[string]*client),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler routes /ws/webrtc and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/webrtc", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{Handler: s.Handler()}

	s.httpMu.Lock()
	s.httpSrv = srv
	s.httpMu.Unlock()

	s.log.WithField("addr", listener.Addr().String()).Info("relay listening")

	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Shutdown stops the HTTP server and drops every client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpMu.Lock()
	srv := s.httpSrv
	s.httpMu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
	s.log.WithField("clients", len(clients)).Info("relay stopped")
	return err
}

// ClientIDs returns the registered uids in sorted order.
func (s *Server) ClientIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idsLocked()
}

func (s *Server) idsLocked() []string {
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "missing uid", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).WithField("uid", uid).Warn("websocket upgrade failed")
		return
	}

	s.register(newClient(s, uid, conn))
}

// register installs c under its uid, replacing any previous connection,
// queues the greeting and starts the pumps.
func (s *Server) register(c *client) {
	s.mu.Lock()
	old := s.clients[c.uid]
	s.clients[c.uid] = c
	s.mu.Unlock()

	entry := s.log.WithField("uid", c.uid)
	if old != nil {
		entry.Info("duplicate login, closing previous connection")
		old.conn.Close()
	}
	entry.Info("client connected")

	// Queued before the pumps start so the newcomer sees registered first.
	c.enqueue(protocol.NewRegistered(c.uid, s.iceServers))
	c.enqueue(protocol.NewClientList(s.ClientIDs()))
	s.broadcastClientList()

	go c.writePump()
	go c.readPump()
}

// unregister removes c unless a newer connection already took its uid.
func (s *Server) unregister(c *client) {
	s.mu.Lock()
	current, ok := s.clients[c.uid]
	removed := ok && current == c
	if removed {
		delete(s.clients, c.uid)
	}
	s.mu.Unlock()

	c.close()

	entry := s.log.WithField("uid", c.uid)
	if !removed {
		entry.Debug("stale connection closed")
		return
	}
	entry.Info("client disconnected")

	s.notifyOffline(c.uid)
	s.broadcastClientList()
}

func (s *Server) notifyOffline(uid string) {
	msg := protocol.NewUserOffline(uid)
	for _, c := range s.snapshot() {
		if c.uid != uid {
			c.enqueue(msg)
		}
	}
}

func (s *Server) broadcastClientList() {
	msg := protocol.NewClientList(s.ClientIDs())
	for _, c := range s.snapshot() {
		c.enqueue(msg)
	}
}

func (s *Server) snapshot() []*client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *Server) lookup(uid string) (*client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[uid]
	return c, ok
}

// handle processes one frame read from sender.
func (s *Server) handle(sender *client, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.log.WithError(err).WithField("uid", sender.uid).Warn("dropping message")
		return
	}
	msg.From = sender.uid

	switch {
	case msg.Type == protocol.TypeRegister:
		// The uid query parameter already registered the client.
	case msg.Type == protocol.TypeListClients:
		sender.enqueue(protocol.NewClientList(s.ClientIDs()))
	case msg.Type.Relayed():
		s.relay(msg)
	default:
		s.log.WithFields(logrus.Fields{"uid": sender.uid, "type": msg.Type}).Warn("unexpected message type")
	}
}

func (s *Server) relay(msg *protocol.Message) {
	fields := logrus.Fields{"from": msg.From, "to": msg.To, "type": msg.Type}
	if msg.To == "" {
		s.log.WithFields(fields).Warn("relay target missing")
		return
	}
	target, ok := s.lookup(msg.To)
	if !ok {
		s.log.WithFields(fields).Warn("relay target offline")
		return
	}
	if target.enqueue(msg) {
		s.log.WithFields(fields).Debug("relayed")
	}
}
