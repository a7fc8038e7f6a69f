package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage is returned when a signaling payload cannot be decoded.
	ErrMalformedMessage = errors.New("peerlink: malformed signaling message")

	// ErrTransportUnavailable is returned when a send is attempted while the
	// signaling transport is disconnected. The message is dropped.
	ErrTransportUnavailable = errors.New("peerlink: signaling transport unavailable")

	// ErrNegotiationInFlight is returned when an offer or answer is requested
	// while another one has not completed.
	ErrNegotiationInFlight = errors.New("peerlink: negotiation already in flight")

	// ErrLocalDescriptionSet is returned when a second local description is requested.
	ErrLocalDescriptionSet = errors.New("peerlink: local description already created")

	// ErrSessionTerminated is returned for negotiation actions after a terminal failure.
	ErrSessionTerminated = errors.New("peerlink: negotiation terminated")

	// ErrClosed is returned when the component has been shut down.
	ErrClosed = errors.New("peerlink: closed")
)

// NegotiationError reports that the engine rejected a description or candidate.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("peerlink: %s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}
