// Package api fetches ICE server configuration from a provisioning endpoint.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"peerlink/native/internal/domain"
	"peerlink/native/internal/util"
)

var _ domain.ICEServerFetcher = (*Client)(nil)

const requestTimeout = 10 * time.Second

type iceRequest struct {
	RequestID string `json:"requestId"`
	Client    string `json:"client"`
}

// envelope wraps every provisioning response. A non-zero Result carries a
// server-side failure described by Msg.
type envelope[T any] struct {
	Result int    `json:"result"`
	Msg    string `json:"msg"`
	Data   T      `json:"data"`
}

type iceData struct {
	ICEServers []domain.ICEServer `json:"iceServers"`
}

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

// Client fetches ICE servers over HTTP.
type Client struct {
	url   string
	token string
	http  *http.Client
	log   logging.LeveledLogger
}

// NewClient creates an API client for the given endpoint and bearer token.
func NewClient(url, token string, factory logging.LoggerFactory) *Client {
	return &Client{
		url:   url,
		token: token,
		http:  &http.Client{Timeout: requestTimeout},
		log:   util.Scoped(factory, "api"),
	}
}

// FetchICEServers requests the current STUN/TURN servers and their credentials.
func (c *Client) FetchICEServers() ([]domain.ICEServer, error) {
	body, err := json.Marshal(iceRequest{
		RequestID: uuid.NewString(),
		Client:    "peerlink",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ice request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := decodeEnvelope[iceData](resp)
	if err != nil {
		return nil, fmt.Errorf("fetch ice servers: %w", err)
	}
	if len(data.ICEServers) == 0 {
		return nil, fmt.Errorf("fetch ice servers: no ICE servers in response")
	}

	c.log.Infof("fetched %d ICE servers", len(data.ICEServers))
	return data.ICEServers, nil
}

// decodeEnvelope checks the HTTP status and the envelope result, then returns
// the payload.
func decodeEnvelope[T any](resp *http.Response) (T, error) {
	var env envelope[T]
	body := io.LimitReader(resp.Body, maxResponseSize)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, 256))
		return env.Data, fmt.Errorf("status %s: %q", resp.Status, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return env.Data, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Result != 0 {
		return env.Data, fmt.Errorf("result %d: %s", env.Result, env.Msg)
	}
	return env.Data, nil
}
