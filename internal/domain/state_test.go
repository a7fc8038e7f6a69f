package domain

import "testing"

func TestConnectionStateLabel(t *testing.T) {
	cases := map[ConnectionState]string{
		ConnectionStateNew:          "New",
		ConnectionStateChecking:     "Checking",
		ConnectionStateDisconnected: "Disconnected",
		ConnectionState(""):         "Unknown",
	}
	for state, want := range cases {
		if got := state.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", state, got, want)
		}
	}
}

func TestConnectionStateSeverity(t *testing.T) {
	cases := map[ConnectionState]Severity{
		ConnectionStateNew:          SeverityNeutral,
		ConnectionStateChecking:     SeverityNeutral,
		ConnectionStateConnected:    SeverityGood,
		ConnectionStateCompleted:    SeverityGood,
		ConnectionStateDisconnected: SeverityWarning,
		ConnectionStateFailed:       SeverityCritical,
		ConnectionStateClosed:       SeverityCritical,
	}
	for state, want := range cases {
		if got := state.Severity(); got != want {
			t.Errorf("%q.Severity() = %v, want %v", state, got, want)
		}
	}
}

func TestConnectionStateTerminal(t *testing.T) {
	if ConnectionStateDisconnected.Terminal() {
		t.Error("disconnected must not be terminal")
	}
	if !ConnectionStateFailed.Terminal() || !ConnectionStateClosed.Terminal() {
		t.Error("failed and closed must be terminal")
	}
}

func TestDescriptionMessage(t *testing.T) {
	if _, ok := DescriptionMessage(SessionDescription{Type: SDPTypeOffer, SDP: "o"}).(SDPOffer); !ok {
		t.Error("offer description should map to SDPOffer")
	}
	msg, ok := DescriptionMessage(SessionDescription{Type: SDPTypeAnswer, SDP: "a"}).(SDPAnswer)
	if !ok || msg.SDP != "a" {
		t.Errorf("answer description mapped to %#v", msg)
	}
}
