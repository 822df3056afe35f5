package peer

import "encoding/json"

// ConnState is the adapter's connectivity state, mapped from the
// transport's low-level signals.
type ConnState int

const (
	StateNew ConnState = iota
	StateChecking
	StateConnected
	StateCompleted
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateChecking:
		return "checking"
	case StateConnected:
		return "connected"
	case StateCompleted:
		return "completed"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DataChannel is an ordered message channel carrying text control
// frames and binary chunk frames. Frames of both kinds arrive in send
// order.
type DataChannel interface {
	Label() string
	Send(data []byte) error
	SendText(text string) error
	BufferedAmount() uint64
	OnOpen(fn func())
	OnClose(fn func())
	OnMessage(fn func(data []byte, isText bool))
	Close() error
}

// Adapter is the opaque point-to-point transport: negotiation
// primitives plus data channels. Descriptions travel as SDP strings and
// candidates as raw JSON, so the orchestrator never interprets either.
//
// The adapter buffers remote candidates that arrive before a remote
// description; callers hand them over in arrival order and nothing
// else.
type Adapter interface {
	// CreateDataChannel opens a channel before negotiation; the far
	// side observes it via OnDataChannel once connected.
	CreateDataChannel(label string) (DataChannel, error)
	OnDataChannel(fn func(DataChannel))

	// CreateOffer produces a local offer description. HandleOffer
	// consumes a remote offer and produces the answer. HandleAnswer
	// consumes a remote answer. All three fail when the negotiation
	// state does not permit them.
	CreateOffer() (string, error)
	HandleOffer(sdp string) (string, error)
	HandleAnswer(sdp string) error

	// AddCandidate applies a remote connectivity candidate.
	AddCandidate(candidate json.RawMessage) error
	// OnCandidate reports locally discovered candidates as they
	// surface.
	OnCandidate(fn func(candidate json.RawMessage))

	OnStateChange(fn func(ConnState))

	Close() error
}
