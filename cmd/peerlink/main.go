package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/pion/logging"
	"github.com/pterm/pterm"

	"peerlink/native/internal/api"
	"peerlink/native/internal/config"
	"peerlink/native/internal/coordinator"
	"peerlink/native/internal/domain"
	sigclient "peerlink/native/internal/signal"
	"peerlink/native/internal/util"
	"peerlink/native/internal/webrtc"
)

const helpText = `peerlink - Negotiate a WebRTC session with a remote peer

Usage:
  peerlink [options]

Both sides connect to the same signaling relay. One side sends an offer,
the other answers once the offer has arrived. ICE candidates are exchanged
automatically. After the connection is up, text can be sent over the data
channel.

Environment Variables:
  PEERLINK_SIGNALING_URL  Signaling relay URL (default ws://127.0.0.1:8080/ws)
  PEERLINK_ICE_SERVERS    Comma-separated STUN/TURN URLs
  PEERLINK_ICE_URL        Optional ICE provisioning endpoint
  PEERLINK_ICE_TOKEN      Bearer token for the provisioning endpoint
  PEERLINK_PING_INTERVAL  Websocket keepalive interval (default 20s)
  PEERLINK_DISABLE_MDNS   Disable mDNS host candidates
  PEERLINK_DEBUG          Enable debug logging

Examples:
  # Start a relay, then run peerlink in two terminals
  peerlink-relay
  peerlink

Options:
  -h, --help  Show this help message
`

const (
	actionOffer   = "Send offer"
	actionAnswer  = "Send answer"
	actionData    = "Send data"
	actionMute    = "Toggle mute"
	actionSpeaker = "Toggle speaker"
	actionStatus  = "Show status"
	actionQuit    = "Quit"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	factory := util.NewLoggerFactory(os.Stderr, cfg.Debug)
	log := factory.NewLogger("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Resolve ICE servers
	iceServers := cfg.ICEServers
	if cfg.ICEURL != "" {
		servers, err := api.NewClient(cfg.ICEURL, cfg.ICEToken, factory).FetchICEServers()
		if err != nil {
			log.Errorf("fetch ICE servers: %v", err)
			os.Exit(1)
		}
		iceServers = servers
	}

	// Step 2: Create peer connection
	peer, err := webrtc.NewPeer(webrtc.Config{
		ICEServers:    iceServers,
		LoggerFactory: factory,
		DisableMDNS:   cfg.DisableMDNS,
	})
	if err != nil {
		log.Errorf("create peer: %v", err)
		os.Exit(1)
	}

	// Step 3: Create signaling client over the websocket transport
	ws := sigclient.NewWebSocket(sigclient.WebSocketConfig{
		URL:           cfg.SignalingURL,
		PingInterval:  cfg.PingInterval,
		LoggerFactory: factory,
	})
	sc := sigclient.NewClient(ws, factory)

	// Step 4: Create coordinator (registers itself with peer and signaling)
	c := coordinator.New(peer, sc, factory)
	c.SetObserver(newRenderer(factory))
	c.Start(ctx)
	defer func() {
		if err := c.Close(); err != nil {
			log.Warnf("close: %v", err)
		}
		log.Info("done")
	}()

	pterm.Info.Printfln("session %s, signaling via %s", c.ID(), cfg.SignalingURL)

	// Step 5: Serve the interactive menu until quit or interrupt
	quit := make(chan struct{})
	go func() {
		defer close(quit)
		runMenu(ctx, c)
	}()

	select {
	case <-ctx.Done():
	case <-quit:
	case <-c.Done():
	}
	log.Info("shutting down")
}

// runMenu prompts for actions until the user quits.
func runMenu(ctx context.Context, c *coordinator.Coordinator) {
	muted := false
	route := domain.AudioRouteEarpiece

	for ctx.Err() == nil {
		action, err := pterm.DefaultInteractiveSelect.
			WithOptions([]string{actionOffer, actionAnswer, actionData, actionMute, actionSpeaker, actionStatus, actionQuit}).
			WithDefaultText("Select an action").
			Show()
		if err != nil || action == actionQuit {
			return
		}

		switch action {
		case actionOffer:
			report(c.MakeOffer(ctx), "offer sent")
		case actionAnswer:
			report(c.MakeAnswer(ctx), "answer sent")
		case actionData:
			text, _ := pterm.DefaultInteractiveTextInput.
				WithDefaultText("Message").
				Show()
			report(c.SendApplicationData([]byte(text)), "data sent")
		case actionMute:
			if muted {
				err = c.UnmuteAudio()
			} else {
				err = c.MuteAudio()
			}
			if err == nil {
				muted = !muted
			}
			report(err, fmt.Sprintf("audio muted: %v", muted))
		case actionSpeaker:
			next := domain.AudioRouteSpeaker
			if route == domain.AudioRouteSpeaker {
				next = domain.AudioRouteEarpiece
			}
			err = c.SetAudioRoute(next)
			if err == nil {
				route = next
			}
			report(err, fmt.Sprintf("audio output: %s", route))
		case actionStatus:
			renderStatus(c.Snapshot())
		}
		pterm.Println()
	}
}

func report(err error, success string) {
	if err != nil {
		pterm.Error.Println(err)
		return
	}
	pterm.Success.Println(success)
}

// renderer prints connection changes, inbound data and errors. It runs on
// the coordinator loop, so it only prints.
type renderer struct {
	log  logging.LeveledLogger
	last coordinator.Snapshot
}

func newRenderer(factory logging.LoggerFactory) *renderer {
	return &renderer{log: factory.NewLogger("ui")}
}

func (r *renderer) OnSnapshot(s coordinator.Snapshot) {
	if s.ConnectionState != r.last.ConnectionState {
		pterm.Println("Status: " + severityStyle(s.Severity()).Sprint(s.StatusLabel()))
	}
	if s.SignalingConnected != r.last.SignalingConnected {
		r.log.Infof("signaling connected: %v", s.SignalingConnected)
	}
	if s.Terminated && !r.last.Terminated {
		pterm.Warning.Println("negotiation terminated; restart to negotiate again")
	}
	r.last = s
}

func (r *renderer) OnInboundData(text string) {
	pterm.Info.Printfln("Received: %s", text)
}

func (r *renderer) OnError(err error) {
	r.log.Warnf("%v", err)
}

func severityStyle(s domain.Severity) pterm.Color {
	switch s {
	case domain.SeverityGood:
		return pterm.FgGreen
	case domain.SeverityWarning:
		return pterm.FgYellow
	case domain.SeverityCritical:
		return pterm.FgRed
	default:
		return pterm.FgGray
	}
}

func renderStatus(s coordinator.Snapshot) {
	lastErr := "-"
	if s.LastError != nil {
		lastErr = s.LastError.Error()
	}
	lastInbound := s.LastInbound
	if strings.TrimSpace(lastInbound) == "" {
		lastInbound = "-"
	}

	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Field", "Value"},
		{"Session", s.SessionID},
		{"Status", severityStyle(s.Severity()).Sprint(s.StatusLabel())},
		{"Signaling", fmt.Sprint(s.SignalingConnected)},
		{"Local SDP", fmt.Sprint(s.HasLocalSDP)},
		{"Remote SDP", fmt.Sprint(s.HasRemoteSDP)},
		{"Local candidates", fmt.Sprint(s.LocalCandidateCount)},
		{"Remote candidates", fmt.Sprint(s.RemoteCandidateCount)},
		{"Buffered", fmt.Sprint(s.BufferedCandidates)},
		{"Terminated", fmt.Sprint(s.Terminated)},
		{"Last error", lastErr},
		{"Last inbound", lastInbound},
	}).Render()
}
