package domain

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// AudioRoute selects the audio output device.
type AudioRoute string

const (
	AudioRouteSpeaker  AudioRoute = "speaker"
	AudioRouteEarpiece AudioRoute = "earpiece"
)
