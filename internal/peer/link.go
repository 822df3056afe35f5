package peer

import "sync"

// LinkState is the lifecycle of one peer link. Disconnected can recover
// back to Connected if the adapter reports recovery; Failed and Closed
// are terminal.
type LinkState int

const (
	LinkUninitialized LinkState = iota
	LinkNegotiating
	LinkConnected
	LinkDisconnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkUninitialized:
		return "uninitialized"
	case LinkNegotiating:
		return "negotiating"
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Link is the negotiated point-to-point connection to one remote
// participant: its adapter, connectivity state and display name. At
// most one Link exists per remote at a time.
type Link struct {
	RemoteID   string
	RemoteName string

	adapter Adapter

	mu      sync.Mutex
	state   LinkState
	channel DataChannel
	chOpen  bool
}

// State returns the current link state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Usable reports whether the link can carry transfer traffic: the
// adapter reports connectivity and the data channel is open.
func (l *Link) Usable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == LinkConnected && l.chOpen
}

// Channel returns the link's data channel, nil until one is attached.
func (l *Link) Channel() DataChannel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.channel
}

func (l *Link) setState(state LinkState) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

func (l *Link) setChannel(ch DataChannel) {
	l.mu.Lock()
	l.channel = ch
	l.mu.Unlock()
}

func (l *Link) setChannelOpen(open bool) {
	l.mu.Lock()
	l.chOpen = open
	l.mu.Unlock()
}
