package signal

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"peerlink/native/internal/domain"
)

// wireMessage is the JSON envelope exchanged with the signaling server.
// Pointer fields distinguish absent keys from zero values.
type wireMessage struct {
	Type          *string `json:"type"`
	SDP           *string `json:"sdp"`
	SDPMLineIndex *int    `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
}

// Encode serializes a signaling message into its wire representation. Strings
// must be valid UTF-8 and a candidate index must fit in 0..65535.
func Encode(msg domain.SignalingMessage) ([]byte, error) {
	var w wireMessage

	switch m := msg.(type) {
	case domain.SDPOffer:
		w = wireMessage{Type: ptr(string(domain.MessageTypeOffer)), SDP: ptr(m.SDP)}
	case domain.SDPAnswer:
		w = wireMessage{Type: ptr(string(domain.MessageTypeAnswer)), SDP: ptr(m.SDP)}
	case domain.CandidateMessage:
		w = wireMessage{
			Type:          ptr(string(domain.MessageTypeCandidate)),
			SDP:           ptr(m.Candidate.Candidate),
			SDPMLineIndex: ptr(m.Candidate.SDPMLineIndex),
			SDPMid:        m.Candidate.SDPMid,
		}
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", msg)
	}

	if err := w.check(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", *w.Type, err)
	}
	return json.Marshal(w)
}

// check rejects fields that encoding/json would silently rewrite or that the
// engine cannot represent.
func (w wireMessage) check() error {
	if w.SDP != nil && !utf8.ValidString(*w.SDP) {
		return fmt.Errorf("sdp is not valid UTF-8")
	}
	if w.SDPMid != nil && !utf8.ValidString(*w.SDPMid) {
		return fmt.Errorf("sdpMid is not valid UTF-8")
	}
	if w.SDPMLineIndex != nil && (*w.SDPMLineIndex < 0 || *w.SDPMLineIndex > math.MaxUint16) {
		return fmt.Errorf("sdpMLineIndex %d out of range", *w.SDPMLineIndex)
	}
	return nil
}

// Decode parses a wire payload. Every failure wraps domain.ErrMalformedMessage.
func Decode(data []byte) (domain.SignalingMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if w.Type == nil {
		return nil, malformed("missing type")
	}
	if w.SDP == nil {
		return nil, malformed("%s: missing sdp", *w.Type)
	}

	switch domain.MessageType(*w.Type) {
	case domain.MessageTypeOffer:
		return domain.SDPOffer{SDP: *w.SDP}, nil

	case domain.MessageTypeAnswer:
		return domain.SDPAnswer{SDP: *w.SDP}, nil

	case domain.MessageTypeCandidate:
		if w.SDPMLineIndex == nil {
			return nil, malformed("candidate: missing sdpMLineIndex")
		}
		if err := w.check(); err != nil {
			return nil, malformed("candidate: %v", err)
		}
		return domain.CandidateMessage{Candidate: domain.ICECandidate{
			Candidate:     *w.SDP,
			SDPMLineIndex: *w.SDPMLineIndex,
			SDPMid:        w.SDPMid,
		}}, nil

	default:
		return nil, malformed("unknown type %q", *w.Type)
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedMessage, fmt.Sprintf(format, args...))
}

func ptr[T any](v T) *T {
	return &v
}
