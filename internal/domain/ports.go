package domain

// TransportHandler receives transport session events.
type TransportHandler interface {
	OnOpen()
	OnClose()
	OnTextMessage(data []byte)
}

// Transport is a duplex, message-oriented, auto-reconnecting channel to the
// signaling server.
type Transport interface {
	Connect()
	Send(data []byte) error
	SetHandler(h TransportHandler)
	Close() error
}

// SignalHandler receives decoded signaling events.
type SignalHandler interface {
	OnConnected()
	OnDisconnected()
	OnMessage(msg SignalingMessage)
	OnDecodeError(err error)
}

// Signaler manages the signaling session.
type Signaler interface {
	Connect()
	Send(msg SignalingMessage) error
	SetHandler(h SignalHandler)
	Close() error
}

// PeerHandler receives negotiation engine events.
type PeerHandler interface {
	OnLocalCandidate(c ICECandidate)
	OnConnectionStateChange(s ConnectionState)
	OnData(data []byte)
}

// PeerSession manages the WebRTC peer connection.
type PeerSession interface {
	SetHandler(h PeerHandler)
	CreateOffer() (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetRemoteDescription(desc SessionDescription) error
	AddRemoteCandidate(c ICECandidate) error
	SendData(data []byte) error
	MuteAudio() error
	UnmuteAudio() error
	SetAudioOutputRoute(route AudioRoute) error
	Close() error
}

// AudioRouter switches the audio output hardware.
type AudioRouter interface {
	Route(route AudioRoute) error
}

// ICEServerFetcher retrieves ICE server configuration from a provisioning API.
type ICEServerFetcher interface {
	FetchICEServers() ([]ICEServer, error)
}
