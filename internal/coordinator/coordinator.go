// Package coordinator drives one peer session through offer/answer negotiation.
//
// Every input (signaling messages, engine events, host actions and engine call
// completions) is funnelled into a single event loop goroutine that owns all
// negotiation state. Engine calls run on a separate FIFO worker so the loop
// never blocks on the engine. Observers see immutable snapshots published after
// each processed event.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"peerlink/native/internal/domain"
	"peerlink/native/internal/util"
)

var (
	_ domain.SignalHandler = (*Coordinator)(nil)
	_ domain.PeerHandler   = (*Coordinator)(nil)
)

const eventBufferSize = 64

// Observer receives coordinator output. Callbacks run on the event loop
// goroutine and must not block or call back into negotiation actions.
type Observer interface {
	OnSnapshot(s Snapshot)
	OnInboundData(text string)
	OnError(err error)
}

type nopObserver struct{}

func (nopObserver) OnSnapshot(Snapshot)  {}
func (nopObserver) OnInboundData(string) {}
func (nopObserver) OnError(error)        {}

type localPhase int

const (
	localIdle localPhase = iota
	localPending
	localSet
)

type remotePhase int

const (
	remoteNone remotePhase = iota
	remotePending
	remoteSet
)

// Coordinator owns the negotiation state of one peer session.
type Coordinator struct {
	id     string
	peer   domain.PeerSession
	signal domain.Signaler
	log    logging.LeveledLogger

	observer Observer
	events   chan func()
	engine   *engineQueue

	// halted mirrors terminated for engine jobs that run off the loop.
	halted atomic.Bool

	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}

	snapMu sync.RWMutex
	snap   Snapshot

	// Loop-owned state.
	connected   bool
	local       localPhase
	remote      remotePhase
	buffer      []domain.ICECandidate
	localCount  int
	remoteCount int
	state       domain.ConnectionState
	terminated  bool
	lastErr     error
	lastInbound string
}

// New creates a Coordinator and registers it as the sole handler of peer and
// signaler events. Call Start to begin processing.
func New(peer domain.PeerSession, signaler domain.Signaler, factory logging.LoggerFactory) *Coordinator {
	c := &Coordinator{
		id:       uuid.NewString(),
		peer:     peer,
		signal:   signaler,
		log:      util.Scoped(factory, "coordinator"),
		observer: nopObserver{},
		events:   make(chan func(), eventBufferSize),
		engine:   newEngineQueue(),
		done:     make(chan struct{}),
		state:    domain.ConnectionStateNew,
	}
	c.snap = c.snapshot()

	peer.SetHandler(c)
	signaler.SetHandler(c)
	return c
}

// SetObserver installs the output observer. It must be called before Start.
func (c *Coordinator) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	c.observer = o
}

// ID returns the session id used in logs and snapshots.
func (c *Coordinator) ID() string {
	return c.id
}

// Start launches the event loop and the engine worker, then opens signaling.
// The coordinator stops when ctx is cancelled or Close is called. Negotiation
// actions issued before Start wait until it runs; control actions do not.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		go c.engine.run(ctx)
		go c.loop(ctx)

		c.log.Infof("session %s started", c.id)
		c.signal.Connect()
	})
}

// Done is closed once the event loop has exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Close stops the loop and releases the signaling client and peer session.
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		started := true
		c.startOnce.Do(func() {
			started = false
			close(c.done)
		})
		if started {
			c.cancel()
			<-c.done
		}

		err = errors.Join(c.signal.Close(), c.peer.Close())
		c.log.Infof("session %s closed", c.id)
	})
	return err
}

// Snapshot returns the most recently published state.
func (c *Coordinator) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

func (c *Coordinator) loop(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case ev := <-c.events:
			ev()
			c.publish()
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// post queues fn for the loop. It drops fn once the loop has exited.
func (c *Coordinator) post(fn func()) bool {
	if c.closed() {
		return false
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) publish() {
	s := c.snapshot()

	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()

	c.observer.OnSnapshot(s)
}

func (c *Coordinator) snapshot() Snapshot {
	return Snapshot{
		SessionID:            c.id,
		SignalingConnected:   c.connected,
		HasLocalSDP:          c.local == localSet,
		HasRemoteSDP:         c.remote == remoteSet,
		LocalCandidateCount:  c.localCount,
		RemoteCandidateCount: c.remoteCount,
		BufferedCandidates:   len(c.buffer),
		ConnectionState:      c.state,
		Terminated:           c.terminated,
		LastError:            c.lastErr,
		LastInbound:          c.lastInbound,
	}
}

func (c *Coordinator) report(err error) {
	c.lastErr = err
	c.observer.OnError(err)
}

func (c *Coordinator) terminate(err error) {
	if err != nil {
		c.log.Errorf("negotiation failed: %v", err)
		c.report(err)
	}
	if c.terminated {
		return
	}
	c.terminated = true
	c.halted.Store(true)
}

// MakeOffer creates a local offer and sends it to the remote side. It returns
// once the offer has been created and the send attempted.
func (c *Coordinator) MakeOffer(ctx context.Context) error {
	return c.negotiate(ctx, domain.SDPTypeOffer)
}

// MakeAnswer creates a local answer to the applied remote offer and sends it.
func (c *Coordinator) MakeAnswer(ctx context.Context) error {
	return c.negotiate(ctx, domain.SDPTypeAnswer)
}

func (c *Coordinator) negotiate(ctx context.Context, kind domain.SDPType) error {
	result := make(chan error, 1)
	if !c.post(func() { c.beginLocal(kind, result) }) {
		return domain.ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return domain.ErrClosed
	}
}

func (c *Coordinator) beginLocal(kind domain.SDPType, result chan<- error) {
	switch {
	case c.terminated:
		result <- domain.ErrSessionTerminated
		return
	case c.local == localPending:
		result <- domain.ErrNegotiationInFlight
		return
	case c.local == localSet:
		result <- domain.ErrLocalDescriptionSet
		return
	}

	c.local = localPending
	c.log.Debugf("creating %s", kind)

	c.engine.submit(func() {
		var (
			desc domain.SessionDescription
			err  error
		)
		if kind == domain.SDPTypeOffer {
			desc, err = c.peer.CreateOffer()
		} else {
			desc, err = c.peer.CreateAnswer()
		}
		if !c.post(func() { c.finishLocal(kind, desc, err, result) }) {
			result <- domain.ErrClosed
		}
	})
}

func (c *Coordinator) finishLocal(kind domain.SDPType, desc domain.SessionDescription, err error, result chan<- error) {
	if err != nil {
		c.local = localIdle
		nerr := &domain.NegotiationError{Op: "create " + string(kind), Err: err}
		c.log.Warnf("%v", nerr)
		c.report(nerr)
		result <- nerr
		return
	}

	c.local = localSet
	if err := c.signal.Send(domain.DescriptionMessage(desc)); err != nil {
		err = fmt.Errorf("send %s: %w", kind, err)
		c.log.Warnf("%v", err)
		c.report(err)
		result <- err
		return
	}

	c.log.Infof("%s sent", kind)
	result <- nil
}

// SendApplicationData sends data over the peer data channel. It does not
// depend on signaling connectivity.
func (c *Coordinator) SendApplicationData(data []byte) error {
	return c.control(func() error { return c.peer.SendData(data) })
}

// MuteAudio stops sending local audio.
func (c *Coordinator) MuteAudio() error {
	return c.control(c.peer.MuteAudio)
}

// UnmuteAudio resumes sending local audio.
func (c *Coordinator) UnmuteAudio() error {
	return c.control(c.peer.UnmuteAudio)
}

// SetAudioRoute switches audio output between speaker and earpiece.
func (c *Coordinator) SetAudioRoute(route domain.AudioRoute) error {
	return c.control(func() error { return c.peer.SetAudioOutputRoute(route) })
}

// control calls op on the caller's goroutine. It does not queue behind engine
// negotiation calls and works before Start and after negotiation failure.
func (c *Coordinator) control(op func() error) error {
	if c.closed() {
		return domain.ErrClosed
	}
	return op()
}

// OnConnected implements domain.SignalHandler.
func (c *Coordinator) OnConnected() {
	c.post(func() { c.connected = true })
}

// OnDisconnected implements domain.SignalHandler.
func (c *Coordinator) OnDisconnected() {
	c.post(func() { c.connected = false })
}

// OnMessage implements domain.SignalHandler.
func (c *Coordinator) OnMessage(msg domain.SignalingMessage) {
	c.post(func() { c.handleMessage(msg) })
}

// OnDecodeError implements domain.SignalHandler.
func (c *Coordinator) OnDecodeError(err error) {
	c.post(func() { c.observer.OnError(err) })
}

// OnLocalCandidate implements domain.PeerHandler.
func (c *Coordinator) OnLocalCandidate(cand domain.ICECandidate) {
	c.post(func() { c.handleLocalCandidate(cand) })
}

// OnConnectionStateChange implements domain.PeerHandler.
func (c *Coordinator) OnConnectionStateChange(s domain.ConnectionState) {
	c.post(func() { c.handleState(s) })
}

// OnData implements domain.PeerHandler.
func (c *Coordinator) OnData(data []byte) {
	c.post(func() { c.handleData(data) })
}

func (c *Coordinator) handleMessage(msg domain.SignalingMessage) {
	switch m := msg.(type) {
	case domain.SDPOffer:
		c.applyRemoteDescription(domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: m.SDP})
	case domain.SDPAnswer:
		c.applyRemoteDescription(domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: m.SDP})
	case domain.CandidateMessage:
		c.handleRemoteCandidate(m.Candidate)
	}
}

func (c *Coordinator) applyRemoteDescription(desc domain.SessionDescription) {
	if c.terminated {
		c.log.Warnf("ignoring remote %s: session terminated", desc.Type)
		return
	}
	if c.remote != remoteNone {
		c.log.Warnf("ignoring duplicate remote %s", desc.Type)
		return
	}

	c.remote = remotePending
	c.engine.submit(func() {
		if c.halted.Load() {
			return
		}
		err := c.peer.SetRemoteDescription(desc)
		c.post(func() { c.finishRemote(desc, err) })
	})
}

func (c *Coordinator) finishRemote(desc domain.SessionDescription, err error) {
	if err != nil {
		c.terminate(&domain.NegotiationError{Op: "set remote " + string(desc.Type), Err: err})
		return
	}

	c.remote = remoteSet
	c.log.Infof("remote %s applied, draining %d buffered candidates", desc.Type, len(c.buffer))

	pending := c.buffer
	c.buffer = nil
	for _, cand := range pending {
		c.addRemoteCandidate(cand)
	}
}

func (c *Coordinator) handleRemoteCandidate(cand domain.ICECandidate) {
	c.remoteCount++

	switch {
	case c.terminated:
		c.log.Debugf("ignoring remote candidate: session terminated")
	case c.remote == remoteSet:
		c.addRemoteCandidate(cand)
	default:
		c.buffer = append(c.buffer, cand)
	}
}

func (c *Coordinator) addRemoteCandidate(cand domain.ICECandidate) {
	c.engine.submit(func() {
		if c.halted.Load() {
			return
		}
		if err := c.peer.AddRemoteCandidate(cand); err != nil {
			c.post(func() {
				c.terminate(&domain.NegotiationError{Op: "add remote candidate", Err: err})
			})
		}
	})
}

func (c *Coordinator) handleLocalCandidate(cand domain.ICECandidate) {
	c.localCount++
	if c.terminated {
		return
	}

	if err := c.signal.Send(domain.CandidateMessage{Candidate: cand}); err != nil {
		err = fmt.Errorf("send candidate: %w", err)
		c.log.Warnf("%v", err)
		c.report(err)
	}
}

func (c *Coordinator) handleState(s domain.ConnectionState) {
	c.state = s
	c.log.Infof("connection state: %s", s.Label())
	if s.Terminal() {
		c.terminate(nil)
	}
}

func (c *Coordinator) handleData(data []byte) {
	text := describeData(data)
	c.lastInbound = text
	c.observer.OnInboundData(text)
}

// describeData renders an inbound payload as text, or as a byte count when it
// is not valid UTF-8.
func describeData(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return fmt.Sprintf("(Binary: %d bytes)", len(data))
}
