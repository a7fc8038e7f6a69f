package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"peerlink/native/internal/domain"
)

const (
	defaultSignalingURL = "ws://127.0.0.1:8080/ws"
	defaultICEServers   = "stun:stun.l.google.com:19302"
	defaultPingInterval = 20 * time.Second
	defaultRelayAddr    = ":8080"
)

// Config holds the application configuration.
type Config struct {
	SignalingURL string
	ICEServers   []domain.ICEServer

	// ICEURL and ICEToken configure the optional provisioning endpoint. When
	// ICEURL is set, the fetched servers replace ICEServers.
	ICEURL   string
	ICEToken string

	PingInterval time.Duration
	RelayAddr    string
	DisableMDNS  bool
	Debug        bool
}

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Config{
		SignalingURL: getenv("PEERLINK_SIGNALING_URL", defaultSignalingURL),
		ICEServers:   parseICEServers(getenv("PEERLINK_ICE_SERVERS", defaultICEServers)),
		ICEURL:       os.Getenv("PEERLINK_ICE_URL"),
		ICEToken:     os.Getenv("PEERLINK_ICE_TOKEN"),
		PingInterval: defaultPingInterval,
		RelayAddr:    getenv("PEERLINK_RELAY_ADDR", defaultRelayAddr),
	}

	if err := validateSignalingURL(cfg.SignalingURL); err != nil {
		return nil, err
	}

	if v := os.Getenv("PEERLINK_PING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("PEERLINK_PING_INTERVAL must be a positive duration, got %q", v)
		}
		cfg.PingInterval = d
	}

	var err error
	if cfg.DisableMDNS, err = getbool("PEERLINK_DISABLE_MDNS"); err != nil {
		return nil, err
	}
	if cfg.Debug, err = getbool("PEERLINK_DEBUG"); err != nil {
		return nil, err
	}

	if cfg.ICEToken != "" && cfg.ICEURL == "" {
		return nil, fmt.Errorf("PEERLINK_ICE_TOKEN is set but PEERLINK_ICE_URL is empty")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func validateSignalingURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("PEERLINK_SIGNALING_URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("PEERLINK_SIGNALING_URL must use ws or wss, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("PEERLINK_SIGNALING_URL has no host: %q", raw)
	}
	return nil
}

// parseICEServers turns a comma-separated URL list into one server per URL.
// Blank entries are skipped.
func parseICEServers(list string) []domain.ICEServer {
	var servers []domain.ICEServer
	for _, u := range strings.Split(list, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		servers = append(servers, domain.ICEServer{URLs: []string{u}})
	}
	return servers
}
