package domain

import "fmt"

// Status is the state of a session's transport.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusHandshaking
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusHandshaking:
		return "handshaking"
	case StatusConnected:
		return "connected"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// MarshalText encodes the status as its lower-case name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a name produced by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = StatusDisconnected
	case "handshaking":
		*s = StatusHandshaking
	case "connected":
		*s = StatusConnected
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}
