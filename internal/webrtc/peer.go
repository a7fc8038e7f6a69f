// Package webrtc implements domain.PeerSession on top of Pion.
package webrtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/logging"
	"github.com/pion/transport/v3"
	pion "github.com/pion/webrtc/v4"

	"peerlink/native/internal/domain"
	"peerlink/native/internal/util"
)

var _ domain.PeerSession = (*Peer)(nil)

const (
	defaultLabel = "data"

	opusPayloadType = 111
	pcmuPayloadType = 0
	h264PayloadType = 102
)

// Config configures a Peer.
type Config struct {
	// ICEServers are handed to the engine as-is.
	ICEServers []domain.ICEServer

	// Label of the pre-negotiated data channel. Both sides must agree.
	Label string

	// LoggerFactory is used for peer logs and installed on the engine.
	LoggerFactory logging.LoggerFactory

	// Net overrides the network stack, e.g. with a vnet for tests.
	Net transport.Net

	// DisableMDNS turns off mDNS host candidate obfuscation.
	DisableMDNS bool

	// AudioRouter controls the output route. Defaults to a logging router.
	AudioRouter domain.AudioRouter
}

// Peer wraps a Pion PeerConnection with one data channel, a local audio track
// and a receive-only video transceiver.
type Peer struct {
	pc     *pion.PeerConnection
	dc     *pion.DataChannel
	audio  *pion.TrackLocalStaticSample
	sender *pion.RTPSender
	router domain.AudioRouter
	log    logging.LeveledLogger

	mu      sync.RWMutex
	handler domain.PeerHandler

	closeOnce sync.Once
}

// NewPeer creates a PeerConnection with Opus/PCMU audio, H264 video, NACK
// interceptors and a negotiated data channel.
func NewPeer(cfg Config) (*Peer, error) {
	log := util.Scoped(cfg.LoggerFactory, "webrtc")

	m := &pion.MediaEngine{}
	if err := registerCodecs(m); err != nil {
		return nil, err
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)

	generatorFactory, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	i.Add(generatorFactory)

	se := pion.SettingEngine{}
	if cfg.LoggerFactory != nil {
		se.LoggerFactory = cfg.LoggerFactory
	}
	if cfg.Net != nil {
		se.SetNet(cfg.Net)
	}
	if cfg.DisableMDNS {
		se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   toPionServers(cfg.ICEServers),
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{
		pc:     pc,
		router: cfg.AudioRouter,
		log:    log,
	}
	if p.router == nil {
		p.router = NewLogRouter(cfg.LoggerFactory)
	}

	if err := p.addMedia(); err != nil {
		pc.Close()
		return nil, err
	}

	label := cfg.Label
	if label == "" {
		label = defaultLabel
	}
	if err := p.openDataChannel(label); err != nil {
		pc.Close()
		return nil, err
	}

	p.wireEvents()
	return p, nil
}

func registerCodecs(m *pion.MediaEngine) error {
	codecs := []struct {
		name   string
		kind   pion.RTPCodecType
		params pion.RTPCodecParameters
	}{
		{"Opus", pion.RTPCodecTypeAudio, pion.RTPCodecParameters{
			RTPCodecCapability: pion.RTPCodecCapability{
				MimeType:    pion.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: opusPayloadType,
		}},
		{"PCMU", pion.RTPCodecTypeAudio, pion.RTPCodecParameters{
			RTPCodecCapability: pion.RTPCodecCapability{
				MimeType:  pion.MimeTypePCMU,
				ClockRate: 8000,
				Channels:  1,
			},
			PayloadType: pcmuPayloadType,
		}},
		{"H264", pion.RTPCodecTypeVideo, pion.RTPCodecParameters{
			RTPCodecCapability: pion.RTPCodecCapability{
				MimeType:     pion.MimeTypeH264,
				ClockRate:    90000,
				SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
				RTCPFeedback: []pion.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}},
			},
			PayloadType: h264PayloadType,
		}},
	}

	for _, c := range codecs {
		if err := m.RegisterCodec(c.params, c.kind); err != nil {
			return fmt.Errorf("register %s: %w", c.name, err)
		}
	}
	return nil
}

func toPionServers(servers []domain.ICEServer) []pion.ICEServer {
	var out []pion.ICEServer
	for _, s := range servers {
		out = append(out, pion.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}

// addMedia adds a sendrecv audio transceiver carrying the local track and a
// recvonly video transceiver.
func (p *Peer) addMedia() error {
	audio, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "peerlink",
	)
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}

	t, err := p.pc.AddTransceiverFromTrack(audio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionSendrecv,
	})
	if err != nil {
		return fmt.Errorf("add audio transceiver: %w", err)
	}
	p.audio = audio
	p.sender = t.Sender()
	go p.drainRTCP(p.sender)

	_, err = p.pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add video transceiver: %w", err)
	}

	return nil
}

// openDataChannel creates a pre-negotiated channel with ID 0 so both sides
// open it without relying on OnDataChannel.
func (p *Peer) openDataChannel(label string) error {
	negotiated := true
	id := uint16(0)

	dc, err := p.pc.CreateDataChannel(label, &pion.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	p.dc = dc

	dc.OnOpen(func() {
		p.log.Infof("data channel %q opened", label)
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		p.log.Debugf("data channel message: %d bytes", len(msg.Data))
		if h := p.currentHandler(); h != nil {
			h.OnData(msg.Data)
		}
	})
	dc.OnClose(func() {
		p.log.Infof("data channel %q closed", label)
	})
	return nil
}

func (p *Peer) wireEvents() {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			p.log.Debug("ICE gathering complete")
			return
		}

		init := c.ToJSON()
		cand := domain.ICECandidate{
			Candidate: init.Candidate,
			SDPMid:    init.SDPMid,
		}
		if init.SDPMLineIndex != nil {
			cand.SDPMLineIndex = int(*init.SDPMLineIndex)
		}

		p.log.Debugf("local ICE candidate: %s", cand.Candidate)
		if h := p.currentHandler(); h != nil {
			h.OnLocalCandidate(cand)
		}
	})

	p.pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		p.log.Infof("ICE connection state: %s", state.String())
		if h := p.currentHandler(); h != nil {
			h.OnConnectionStateChange(toConnectionState(state))
		}
	})

	p.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Debugf("peer connection state: %s", state.String())
	})

	p.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		codec := track.Codec()
		p.log.Infof("got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)
		go p.drainTrack(track)
	})
}

func toConnectionState(state pion.ICEConnectionState) domain.ConnectionState {
	switch state {
	case pion.ICEConnectionStateChecking:
		return domain.ConnectionStateChecking
	case pion.ICEConnectionStateConnected:
		return domain.ConnectionStateConnected
	case pion.ICEConnectionStateCompleted:
		return domain.ConnectionStateCompleted
	case pion.ICEConnectionStateDisconnected:
		return domain.ConnectionStateDisconnected
	case pion.ICEConnectionStateFailed:
		return domain.ConnectionStateFailed
	case pion.ICEConnectionStateClosed:
		return domain.ConnectionStateClosed
	default:
		return domain.ConnectionStateNew
	}
}

// drainTrack reads and discards remote media so interceptors keep running.
// Rendering is left to the host.
func (p *Peer) drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

// drainRTCP reads incoming RTCP for the audio sender so NACKs are processed.
func (p *Peer) drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// SetHandler registers the receiver of peer events.
func (p *Peer) SetHandler(h domain.PeerHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *Peer) currentHandler() domain.PeerHandler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handler
}

// AudioTrack returns the local audio track. An external capture stack writes
// Opus samples to it.
func (p *Peer) AudioTrack() *pion.TrackLocalStaticSample {
	return p.audio
}

// CreateOffer creates an SDP offer and sets it as the local description.
func (p *Peer) CreateOffer() (domain.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	p.log.Infof("local offer set: %s", describeSDP(offer.SDP))
	return domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: offer.SDP}, nil
}

// CreateAnswer creates an SDP answer to the remote offer and sets it as the
// local description.
func (p *Peer) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	p.log.Infof("local answer set: %s", describeSDP(answer.SDP))
	return domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: answer.SDP}, nil
}

// SetRemoteDescription applies the remote offer or answer.
func (p *Peer) SetRemoteDescription(desc domain.SessionDescription) error {
	sdpType := pion.SDPTypeOffer
	if desc.Type == domain.SDPTypeAnswer {
		sdpType = pion.SDPTypeAnswer
	}

	if err := p.pc.SetRemoteDescription(pion.SessionDescription{Type: sdpType, SDP: desc.SDP}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.log.Infof("remote %s set: %s", desc.Type, describeSDP(desc.SDP))
	return nil
}

// AddRemoteCandidate adds a remote ICE candidate. The remote description must
// already be applied.
func (p *Peer) AddRemoteCandidate(c domain.ICECandidate) error {
	sdpMLineIndex := uint16(c.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: &sdpMLineIndex,
	}

	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}

	p.log.Debugf("added remote ICE candidate: %s", c.Candidate)
	return nil
}

// SendData writes data to the data channel.
func (p *Peer) SendData(data []byte) error {
	if state := p.dc.ReadyState(); state != pion.DataChannelStateOpen {
		return fmt.Errorf("send data: channel %s", state)
	}
	if err := p.dc.Send(data); err != nil {
		return fmt.Errorf("send data: %w", err)
	}
	return nil
}

// MuteAudio detaches the local track from the audio sender.
func (p *Peer) MuteAudio() error {
	if err := p.sender.ReplaceTrack(nil); err != nil {
		return fmt.Errorf("mute audio: %w", err)
	}
	p.log.Info("audio muted")
	return nil
}

// UnmuteAudio reattaches the local track to the audio sender.
func (p *Peer) UnmuteAudio() error {
	if err := p.sender.ReplaceTrack(p.audio); err != nil {
		return fmt.Errorf("unmute audio: %w", err)
	}
	p.log.Info("audio unmuted")
	return nil
}

// SetAudioOutputRoute switches audio output through the configured router.
func (p *Peer) SetAudioOutputRoute(route domain.AudioRoute) error {
	if err := p.router.Route(route); err != nil {
		return fmt.Errorf("route audio to %s: %w", route, err)
	}
	return nil
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		var dcErr error
		if p.dc != nil {
			dcErr = p.dc.Close()
		}
		err = errors.Join(dcErr, p.pc.Close())
	})
	return err
}
