package webrtc

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"

	"peerlink/native/internal/domain"
)

// peerEvents collects handler callbacks on channels.
type peerEvents struct {
	candidates chan domain.ICECandidate
	states     chan domain.ConnectionState
	data       chan []byte
}

func newPeerEvents() *peerEvents {
	return &peerEvents{
		candidates: make(chan domain.ICECandidate, 64),
		states:     make(chan domain.ConnectionState, 16),
		data:       make(chan []byte, 16),
	}
}

func (e *peerEvents) OnLocalCandidate(c domain.ICECandidate)          { e.candidates <- c }
func (e *peerEvents) OnConnectionStateChange(s domain.ConnectionState) { e.states <- s }
func (e *peerEvents) OnData(data []byte)                              { e.data <- data }

// recordingRouter remembers every route request.
type recordingRouter struct {
	mu     sync.Mutex
	routes []domain.AudioRoute
	err    error
}

func (r *recordingRouter) Route(route domain.AudioRoute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	return r.err
}

// newVNetPair builds a virtual LAN with two hosts so peers connect without
// touching real interfaces.
func newVNetPair(t *testing.T) (*vnet.Net, *vnet.Net) {
	t.Helper()

	wan, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "1.2.3.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("create router: %v", err)
	}

	var nets []*vnet.Net
	for _, ip := range []string{"1.2.3.4", "1.2.3.5"} {
		n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{ip}})
		if err != nil {
			t.Fatalf("create net %s: %v", ip, err)
		}
		if err := wan.AddNet(n); err != nil {
			t.Fatalf("add net %s: %v", ip, err)
		}
		nets = append(nets, n)
	}

	if err := wan.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	t.Cleanup(func() { wan.Stop() })

	return nets[0], nets[1]
}

func newTestPeer(t *testing.T, cfg Config) (*Peer, *peerEvents) {
	t.Helper()
	cfg.DisableMDNS = true
	p, err := NewPeer(cfg)
	if err != nil {
		t.Fatalf("NewPeer: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	ev := newPeerEvents()
	p.SetHandler(ev)
	return p, ev
}

func TestCreateOffer_DescribesMedia(t *testing.T) {
	net, _ := newVNetPair(t)
	p, _ := newTestPeer(t, Config{Net: net})

	offer, err := p.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.Type != domain.SDPTypeOffer {
		t.Errorf("Type = %s, want offer", offer.Type)
	}

	for _, want := range []string{"m=audio", "m=video", "m=application", "opus/48000", "H264/90000", "PCMU/8000"} {
		if !strings.Contains(offer.SDP, want) {
			t.Errorf("offer SDP missing %q", want)
		}
	}
	if got := describeSDP(offer.SDP); got != "audio/sendrecv video/recvonly application" {
		t.Errorf("describeSDP(offer) = %q", got)
	}
}

func TestCreateAnswer_WithoutRemoteOffer(t *testing.T) {
	net, _ := newVNetPair(t)
	p, _ := newTestPeer(t, Config{Net: net})

	if _, err := p.CreateAnswer(); err == nil {
		t.Fatal("expected CreateAnswer to fail without a remote offer")
	}
}

func TestSetRemoteDescription_RejectsGarbage(t *testing.T) {
	net, _ := newVNetPair(t)
	p, _ := newTestPeer(t, Config{Net: net})

	err := p.SetRemoteDescription(domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: "not sdp"})
	if err == nil {
		t.Fatal("expected an error for an invalid remote description")
	}
}

func TestAddRemoteCandidate_BeforeRemoteDescription(t *testing.T) {
	net, _ := newVNetPair(t)
	p, _ := newTestPeer(t, Config{Net: net})

	err := p.AddRemoteCandidate(domain.ICECandidate{
		Candidate: "candidate:1 1 udp 2130706431 1.2.3.5 5000 typ host",
	})
	if err == nil {
		t.Fatal("expected AddRemoteCandidate to fail before a remote description")
	}
}

func TestSendData_BeforeOpen(t *testing.T) {
	net, _ := newVNetPair(t)
	p, _ := newTestPeer(t, Config{Net: net})

	if err := p.SendData([]byte("hi")); err == nil {
		t.Fatal("expected SendData to fail before the channel opens")
	}
}

func TestMuteUnmute(t *testing.T) {
	net, _ := newVNetPair(t)
	p, _ := newTestPeer(t, Config{Net: net})

	if err := p.MuteAudio(); err != nil {
		t.Fatalf("MuteAudio: %v", err)
	}
	if p.sender.Track() != nil {
		t.Error("expected no track on the sender while muted")
	}

	if err := p.UnmuteAudio(); err != nil {
		t.Fatalf("UnmuteAudio: %v", err)
	}
	if p.sender.Track() != p.AudioTrack() {
		t.Error("expected local audio track on the sender after unmute")
	}
}

func TestSetAudioOutputRoute(t *testing.T) {
	net, _ := newVNetPair(t)
	router := &recordingRouter{}
	p, _ := newTestPeer(t, Config{Net: net, AudioRouter: router})

	if err := p.SetAudioOutputRoute(domain.AudioRouteSpeaker); err != nil {
		t.Fatalf("SetAudioOutputRoute: %v", err)
	}
	router.err = errors.New("no hardware")
	if err := p.SetAudioOutputRoute(domain.AudioRouteEarpiece); err == nil {
		t.Fatal("expected router error to be returned")
	}

	router.mu.Lock()
	defer router.mu.Unlock()
	if len(router.routes) != 2 || router.routes[0] != domain.AudioRouteSpeaker {
		t.Errorf("routes = %v", router.routes)
	}
}

func TestClose_Idempotent(t *testing.T) {
	net, _ := newVNetPair(t)
	p, err := NewPeer(Config{Net: net, DisableMDNS: true})
	if err != nil {
		t.Fatalf("NewPeer: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPeers_NegotiateOverVNet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping negotiation test in short mode")
	}

	netA, netB := newVNetPair(t)
	a, evA := newTestPeer(t, Config{Net: netA, Label: "chat"})
	b, evB := newTestPeer(t, Config{Net: netB, Label: "chat"})

	offer, err := a.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := b.SetRemoteDescription(offer); err != nil {
		t.Fatalf("b.SetRemoteDescription: %v", err)
	}
	answer, err := b.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if err := a.SetRemoteDescription(answer); err != nil {
		t.Fatalf("a.SetRemoteDescription: %v", err)
	}

	// Both remote descriptions are applied, so trickled candidates can flow.
	done := make(chan struct{})
	defer close(done)
	forward := func(from *peerEvents, to *Peer) {
		for {
			select {
			case c := <-from.candidates:
				if err := to.AddRemoteCandidate(c); err != nil {
					t.Errorf("AddRemoteCandidate: %v", err)
				}
			case <-done:
				return
			}
		}
	}
	go forward(evA, b)
	go forward(evB, a)

	waitConnected := func(name string, ev *peerEvents) {
		timeout := time.After(10 * time.Second)
		for {
			select {
			case s := <-ev.states:
				if s == domain.ConnectionStateConnected || s == domain.ConnectionStateCompleted {
					return
				}
				if s.Terminal() {
					t.Fatalf("%s reached %s", name, s)
				}
			case <-timeout:
				t.Fatalf("%s did not connect", name)
			}
		}
	}
	waitConnected("a", evA)
	waitConnected("b", evB)

	// The negotiated channel opens shortly after ICE connects.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := a.SendData([]byte("hello")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("data channel never opened")
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case got := <-evB.data:
		if string(got) != "hello" {
			t.Errorf("b received %q, want hello", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("b did not receive data")
	}
}
