// Package signal implements the signaling side of a session: the wire codec,
// the websocket transport and the client that ties them together.
package signal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/logging"

	"peerlink/native/internal/domain"
	"peerlink/native/internal/util"
)

var _ domain.Signaler = (*Client)(nil)

// Client applies the codec on top of a transport and reports typed events to
// a single handler.
type Client struct {
	transport domain.Transport
	log       logging.LeveledLogger

	mu      sync.RWMutex
	handler domain.SignalHandler
}

// NewClient creates a signaling client over transport.
func NewClient(transport domain.Transport, factory logging.LoggerFactory) *Client {
	c := &Client{
		transport: transport,
		log:       util.Scoped(factory, "signal"),
	}
	transport.SetHandler(c)
	return c
}

// SetHandler registers the receiver of signaling events.
func (c *Client) SetHandler(h domain.SignalHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Client) currentHandler() domain.SignalHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// Connect opens the transport. Completion is reported through OnConnected.
func (c *Client) Connect() {
	c.transport.Connect()
}

// Close shuts down the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Send encodes msg and writes it to the transport. Messages sent while the
// transport is down are lost and reported as domain.ErrTransportUnavailable.
func (c *Client) Send(msg domain.SignalingMessage) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.log.Debugf(">>> %s", data)
	if err := c.transport.Send(data); err != nil {
		if errors.Is(err, domain.ErrTransportUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}
	return nil
}

// OnOpen implements domain.TransportHandler.
func (c *Client) OnOpen() {
	c.log.Info("signaling connected")
	if h := c.currentHandler(); h != nil {
		h.OnConnected()
	}
}

// OnClose implements domain.TransportHandler.
func (c *Client) OnClose() {
	c.log.Info("signaling disconnected")
	if h := c.currentHandler(); h != nil {
		h.OnDisconnected()
	}
}

// OnTextMessage implements domain.TransportHandler.
func (c *Client) OnTextMessage(data []byte) {
	c.log.Debugf("<<< %s", data)

	msg, err := Decode(data)
	h := c.currentHandler()
	if err != nil {
		c.log.Warnf("dropping message: %v", err)
		if h != nil {
			h.OnDecodeError(err)
		}
		return
	}

	if h != nil {
		h.OnMessage(msg)
	}
}
