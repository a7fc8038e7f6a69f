// Package relay is a minimal signaling server: every text frame a client sends
// is forwarded to all other connected clients.
package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"peerlink/native/internal/util"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Server forwards signaling frames between connected websocket clients.
// It implements http.Handler.
type Server struct {
	log logging.LeveledLogger

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

// NewServer creates a relay server.
func NewServer(factory logging.LoggerFactory) *Server {
	return &Server{
		log:     util.Scoped(factory, "relay"),
		clients: make(map[string]*client),
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	if !s.add(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay closed"))
		conn.Close()
		return
	}
	defer s.remove(c)

	s.log.Infof("client %s connected from %s", c.id, r.RemoteAddr)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Infof("client %s disconnected: %v", c.id, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.broadcast(c, data)
	}
}

func (s *Server) add(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c.id] = c
	return true
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.conn.Close()
}

func (s *Server) broadcast(from *client, data []byte) {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for id, c := range s.clients {
		if id != from.id {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	s.log.Debugf("forwarding %d bytes from %s to %d clients", len(data), from.id, len(targets))
	for _, c := range targets {
		if err := c.write(data); err != nil {
			s.log.Warnf("forward to %s failed: %v", c.id, err)
			c.conn.Close()
		}
	}
}

// Close disconnects all clients and refuses new ones.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
