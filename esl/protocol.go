package esl

import "time"

// Protocol constants for the event socket.
const (
	// FrameTerminator ends every request and response frame.
	FrameTerminator = "\n\n"

	// AuthRequestBanner is the content type the server greets new
	// connections with.
	AuthRequestBanner = "Content-Type: auth/request"

	// OKMarker marks a positive acknowledgement in a reply.
	OKMarker = "+OK"

	// ErrMarker marks a negative acknowledgement in a reply.
	ErrMarker = "-ERR"

	// EventNameHeader is the header used to route events to callbacks.
	EventNameHeader = "Event-Name"

	// DefaultPort is the default event socket port.
	DefaultPort = 8021

	// DefaultRefreshInterval is the pacing delay between dispatch loop reads.
	DefaultRefreshInterval = 100 * time.Millisecond

	// DefaultDialTimeout bounds establishing the TCP connection.
	DefaultDialTimeout = 5 * time.Second

	// MaxFrameLength is the largest frame (or declared body) accepted, in bytes.
	MaxFrameLength = 4 << 20
)

// Content types seen in header frames.
const (
	ContentTypeAuthRequest      = "auth/request"
	ContentTypeCommandReply     = "command/reply"
	ContentTypeAPIResponse      = "api/response"
	ContentTypeEventJSON        = "text/event-json"
	ContentTypeDisconnectNotice = "text/disconnect-notice"
)

// State is the connection state of a Session.
type State int

const (
	// StateDisconnected means no transport is open.
	StateDisconnected State = iota
	// StateConnected means the banner was received.
	StateConnected
	// StateAuthenticated means the server accepted the password.
	StateAuthenticated
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
