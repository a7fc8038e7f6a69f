package domain

import "strings"

// ConnectionState mirrors the ICE connection state reported by the engine.
type ConnectionState string

const (
	ConnectionStateNew          ConnectionState = "new"
	ConnectionStateChecking     ConnectionState = "checking"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateCompleted    ConnectionState = "completed"
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateFailed       ConnectionState = "failed"
	ConnectionStateClosed       ConnectionState = "closed"
)

// Severity classifies a state for display.
type Severity int

const (
	SeverityNeutral Severity = iota
	SeverityGood
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityGood:
		return "good"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "neutral"
	}
}

// Terminal reports whether no further transitions are expected.
func (s ConnectionState) Terminal() bool {
	return s == ConnectionStateFailed || s == ConnectionStateClosed
}

// Label is the capitalized state name shown to users.
func (s ConnectionState) Label() string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Severity maps the state onto a display severity.
func (s ConnectionState) Severity() Severity {
	switch s {
	case ConnectionStateConnected, ConnectionStateCompleted:
		return SeverityGood
	case ConnectionStateDisconnected:
		return SeverityWarning
	case ConnectionStateFailed, ConnectionStateClosed:
		return SeverityCritical
	default:
		return SeverityNeutral
	}
}
