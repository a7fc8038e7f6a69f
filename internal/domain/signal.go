package domain

// MessageType is the wire tag of a signaling message.
type MessageType string

const (
	MessageTypeOffer     MessageType = "offer"
	MessageTypeAnswer    MessageType = "answer"
	MessageTypeCandidate MessageType = "candidate"
)

// SignalingMessage is one of SDPOffer, SDPAnswer or CandidateMessage.
type SignalingMessage interface {
	Type() MessageType
	signalingMessage()
}

// SDPOffer carries the offerer's session description.
type SDPOffer struct {
	SDP string
}

// SDPAnswer carries the answerer's session description.
type SDPAnswer struct {
	SDP string
}

// CandidateMessage carries one trickled ICE candidate.
type CandidateMessage struct {
	Candidate ICECandidate
}

func (SDPOffer) Type() MessageType         { return MessageTypeOffer }
func (SDPAnswer) Type() MessageType        { return MessageTypeAnswer }
func (CandidateMessage) Type() MessageType { return MessageTypeCandidate }

func (SDPOffer) signalingMessage()         {}
func (SDPAnswer) signalingMessage()        {}
func (CandidateMessage) signalingMessage() {}

// SDPType distinguishes offers from answers.
type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

// SessionDescription is an immutable SDP blob tagged with its role.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidate is a single network path advertised by a peer.
// SDPMid is optional; nil means the peer did not send one.
type ICECandidate struct {
	Candidate     string
	SDPMLineIndex int
	SDPMid        *string
}

// DescriptionMessage wraps a local description in the matching signaling message.
func DescriptionMessage(desc SessionDescription) SignalingMessage {
	if desc.Type == SDPTypeAnswer {
		return SDPAnswer{SDP: desc.SDP}
	}
	return SDPOffer{SDP: desc.SDP}
}
