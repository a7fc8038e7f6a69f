package coordinator

import "peerlink/native/internal/domain"

// Snapshot is an immutable view of the session state, published after every
// processed event.
type Snapshot struct {
	SessionID            string
	SignalingConnected   bool
	HasLocalSDP          bool
	HasRemoteSDP         bool
	LocalCandidateCount  int
	RemoteCandidateCount int
	BufferedCandidates   int
	ConnectionState      domain.ConnectionState
	Terminated           bool
	LastError            error
	LastInbound          string
}

// StatusLabel is the user-facing connection status.
func (s Snapshot) StatusLabel() string {
	return s.ConnectionState.Label()
}

// Severity classifies the connection status for display.
func (s Snapshot) Severity() domain.Severity {
	return s.ConnectionState.Severity()
}
