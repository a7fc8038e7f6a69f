package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"peerlink/native/internal/domain"
	"peerlink/native/internal/util"
)

var _ domain.Transport = (*WebSocket)(nil)

const (
	defaultPingInterval   = 20 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	writeTimeout          = 5 * time.Second
	handshakeTimeout      = 10 * time.Second
)

// WebSocketConfig configures the websocket transport.
type WebSocketConfig struct {
	// URL of the signaling server (ws:// or wss://). Required.
	URL string

	// PingInterval between keepalive pings. Defaults to 20s.
	PingInterval time.Duration

	// InitialBackoff and MaxBackoff bound the reconnect delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// LoggerFactory creates the transport logger. Optional.
	LoggerFactory logging.LoggerFactory
}

// WebSocket is an auto-reconnecting transport session. Each successful dial
// produces OnOpen; each lost connection produces OnClose.
type WebSocket struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	log    logging.LeveledLogger

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex // guards conn and serializes writes
	conn    *websocket.Conn
	handler domain.TransportHandler
}

// NewWebSocket creates a transport. Nothing is dialed until Connect.
func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:    util.Scoped(cfg.LoggerFactory, "ws"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// SetHandler registers the receiver of transport events.
func (w *WebSocket) SetHandler(h domain.TransportHandler) {
	w.mu.Lock()
	w.handler = h
	w.mu.Unlock()
}

func (w *WebSocket) currentHandler() domain.TransportHandler {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handler
}

// Connect starts the connection loop. Calling it more than once has no effect.
func (w *WebSocket) Connect() {
	w.startOnce.Do(func() {
		go w.runLoop()
	})
}

// Connected reports whether a connection is currently established.
func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Send writes one text frame. It fails with domain.ErrTransportUnavailable when
// no connection is established.
func (w *WebSocket) Send(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return domain.ErrTransportUnavailable
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}
	return nil
}

// Close stops reconnecting and closes the current connection.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		w.cancel()

		w.mu.Lock()
		if w.conn != nil {
			w.conn.Close()
		}
		w.mu.Unlock()

		started := true
		w.startOnce.Do(func() {
			started = false
			close(w.done)
		})
		if started {
			select {
			case <-w.done:
			case <-time.After(2 * time.Second):
				w.log.Warn("close timed out, forcing shutdown")
			}
		}
	})
	return nil
}

func (w *WebSocket) runLoop() {
	defer close(w.done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.InitialBackoff
	b.MaxInterval = w.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		if w.ctx.Err() != nil {
			return
		}

		conn, _, err := w.dialer.DialContext(w.ctx, w.cfg.URL, nil)
		if err != nil {
			delay := b.NextBackOff()
			w.log.Warnf("dial %s failed, retrying in %v: %v", w.cfg.URL, delay, err)
			select {
			case <-time.After(delay):
				continue
			case <-w.ctx.Done():
				return
			}
		}
		b.Reset()

		w.mu.Lock()
		if w.ctx.Err() != nil {
			w.mu.Unlock()
			conn.Close()
			return
		}
		w.conn = conn
		w.mu.Unlock()

		w.log.Infof("connected to %s", w.cfg.URL)
		if h := w.currentHandler(); h != nil {
			h.OnOpen()
		}

		err = w.serve(conn)

		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()
		conn.Close()

		if w.ctx.Err() == nil {
			w.log.Warnf("connection lost: %v", err)
		}
		if h := w.currentHandler(); h != nil {
			h.OnClose()
		}
	}
}

// serve runs the read loop and keepalive for one connection until either fails.
func (w *WebSocket) serve(conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go w.pingLoop(conn, stop)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			w.log.Debugf("ignoring non-text frame (type=%d)", msgType)
			continue
		}
		if h := w.currentHandler(); h != nil {
			h.OnTextMessage(data)
		}
	}
}

func (w *WebSocket) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout))
			w.mu.Unlock()
			if err != nil {
				w.log.Debugf("ping error: %v", err)
				conn.Close()
				return
			}
		}
	}
}
