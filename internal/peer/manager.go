package peer

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
)

// channelLabel names the single data channel used per peer pair.
const channelLabel = "fileChannel"

// defaultRetryDelay spaces the single retry allowed to a negotiation
// step that hit an invalid adapter state.
const defaultRetryDelay = 500 * time.Millisecond

// SignalFunc transmits a negotiation payload to one remote participant
// via the relay.
type SignalFunc func(targetUserID string, payload *protocol.SignalPayload)

// Initiates reports whether the local participant offers toward the
// remote one. The comparison is a total order on ids, so for any pair
// exactly one side initiates and both sides compute the same answer
// independently.
func Initiates(localID, remoteID string) bool {
	return localID > remoteID
}

// Manager is the connection orchestrator: it owns one Link per known
// remote participant and drives each through negotiation to an open
// data channel.
type Manager struct {
	localID    string
	newAdapter func() (Adapter, error)
	signal     SignalFunc
	retryDelay time.Duration

	mu    sync.Mutex
	links map[string]*Link

	// OnChannelOpen fires when a link's data channel opens; the
	// transfer layer attaches there.
	OnChannelOpen func(link *Link)

	// OnStateChange fires on every link state transition.
	OnStateChange func(link *Link)

	// OnClosed fires after a link has been torn down, so dependent
	// state (transfer sessions, selection sets) can be destroyed.
	OnClosed func(remoteID string)
}

// NewManager creates an orchestrator for the given local participant.
func NewManager(localID string, newAdapter func() (Adapter, error), signal SignalFunc) *Manager {
	return &Manager{
		localID:    localID,
		newAdapter: newAdapter,
		signal:     signal,
		retryDelay: defaultRetryDelay,
		links:      make(map[string]*Link),
	}
}

// EnsureLink creates the link toward a newly known remote participant
// and, when the local side is the initiator, starts negotiation. A
// second call for an existing remote is a no-op.
func (m *Manager) EnsureLink(remoteID, remoteName string) {
	if remoteID == m.localID {
		return
	}

	m.mu.Lock()
	if _, ok := m.links[remoteID]; ok {
		m.mu.Unlock()
		return
	}

	link, err := m.newLink(remoteID, remoteName)
	if err != nil {
		m.mu.Unlock()
		slog.Error("failed to create peer link", "remote", remoteID, "error", err)
		return
	}
	m.links[remoteID] = link
	m.mu.Unlock()

	if !Initiates(m.localID, remoteID) {
		// The remote offers; we answer when it arrives.
		return
	}

	ch, err := link.adapter.CreateDataChannel(channelLabel)
	if err != nil {
		slog.Error("failed to create data channel", "remote", remoteID, "error", err)
		m.teardown(remoteID, LinkFailed)
		return
	}
	m.attachChannel(link, ch)

	link.setState(LinkNegotiating)
	m.notifyState(link)

	m.withRetry("send offer", remoteID, func() error {
		sdp, err := link.adapter.CreateOffer()
		if err != nil {
			return err
		}
		m.signal(remoteID, &protocol.SignalPayload{
			Type: protocol.SignalTypeOffer,
			SDP:  sdp,
		})
		return nil
	})
}

// newLink wires a fresh adapter for one remote. Caller holds m.mu.
func (m *Manager) newLink(remoteID, remoteName string) (*Link, error) {
	adapter, err := m.newAdapter()
	if err != nil {
		return nil, err
	}

	link := &Link{
		RemoteID:   remoteID,
		RemoteName: remoteName,
		adapter:    adapter,
		state:      LinkUninitialized,
	}

	adapter.OnCandidate(func(candidate json.RawMessage) {
		m.signal(remoteID, &protocol.SignalPayload{
			Type:      protocol.SignalTypeICECandidate,
			Candidate: candidate,
		})
	})

	adapter.OnStateChange(func(state ConnState) {
		m.handleConnState(link, state)
	})

	// The responder side receives the channel from the initiator.
	adapter.OnDataChannel(func(ch DataChannel) {
		m.attachChannel(link, ch)
	})

	return link, nil
}

// attachChannel registers open/close observation for a link's channel.
func (m *Manager) attachChannel(link *Link, ch DataChannel) {
	link.setChannel(ch)

	ch.OnOpen(func() {
		link.setChannelOpen(true)
		slog.Debug("data channel open", "remote", link.RemoteID, "label", ch.Label())
		if m.OnChannelOpen != nil {
			m.OnChannelOpen(link)
		}
	})

	ch.OnClose(func() {
		link.setChannelOpen(false)
	})
}

// handleConnState maps adapter connectivity signals onto the link state
// machine.
func (m *Manager) handleConnState(link *Link, state ConnState) {
	slog.Debug("connectivity state", "remote", link.RemoteID, "state", state)

	switch state {
	case StateChecking:
		link.setState(LinkNegotiating)
		m.notifyState(link)
	case StateConnected, StateCompleted:
		link.setState(LinkConnected)
		m.notifyState(link)
	case StateDisconnected:
		// Unusable for now, but the adapter may recover without
		// renegotiation; keep the link object.
		link.setState(LinkDisconnected)
		m.notifyState(link)
	case StateFailed:
		m.teardown(link.RemoteID, LinkFailed)
	case StateClosed:
		m.teardown(link.RemoteID, LinkClosed)
	}
}

// HandleSignal processes a relayed negotiation payload from a remote
// participant. Offers create the link on first contact; candidates are
// handed to the adapter untouched.
func (m *Manager) HandleSignal(fromUserID string, payload *protocol.SignalPayload) {
	switch payload.Type {
	case protocol.SignalTypeOffer:
		m.handleOffer(fromUserID, payload.SDP)
	case protocol.SignalTypeAnswer:
		m.handleAnswer(fromUserID, payload.SDP)
	case protocol.SignalTypeICECandidate:
		m.handleCandidate(fromUserID, payload.Candidate)
	default:
		slog.Debug("ignoring unknown signal payload", "from", fromUserID, "type", payload.Type)
	}
}

func (m *Manager) handleOffer(fromUserID, sdp string) {
	// First knowledge of this remote may arrive as its offer.
	m.EnsureLink(fromUserID, "")

	link := m.Link(fromUserID)
	if link == nil {
		return
	}

	link.setState(LinkNegotiating)
	m.notifyState(link)

	m.withRetry("answer offer", fromUserID, func() error {
		answer, err := link.adapter.HandleOffer(sdp)
		if err != nil {
			return err
		}
		m.signal(fromUserID, &protocol.SignalPayload{
			Type: protocol.SignalTypeAnswer,
			SDP:  answer,
		})
		return nil
	})
}

func (m *Manager) handleAnswer(fromUserID, sdp string) {
	link := m.Link(fromUserID)
	if link == nil {
		slog.Debug("answer from unknown peer", "from", fromUserID)
		return
	}

	m.withRetry("apply answer", fromUserID, func() error {
		return link.adapter.HandleAnswer(sdp)
	})
}

func (m *Manager) handleCandidate(fromUserID string, candidate json.RawMessage) {
	link := m.Link(fromUserID)
	if link == nil || candidate == nil {
		return
	}

	// Candidates may race offer/answer completion; the adapter buffers
	// them until it has a remote description, never this layer.
	if err := link.adapter.AddCandidate(candidate); err != nil {
		slog.Warn("failed to add candidate", "from", fromUserID, "error", err)
	}
}

// withRetry runs a negotiation step, and on failure schedules exactly
// one retry after a fixed delay. Negotiation races are expected to
// resolve once the adapter reaches a stable state; a second failure is
// abandoned with a log line only.
func (m *Manager) withRetry(op, remoteID string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}
	slog.Debug("negotiation step failed, retrying once", "op", op, "remote", remoteID, "error", err)

	time.AfterFunc(m.retryDelay, func() {
		if m.Link(remoteID) == nil {
			return
		}
		if err := fn(); err != nil {
			slog.Warn("negotiation step abandoned", "op", op, "remote", remoteID, "error", err)
		}
	})
}

// Link returns the link for a remote participant, or nil.
func (m *Manager) Link(remoteID string) *Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[remoteID]
}

// Links returns all current links.
func (m *Manager) Links() []*Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	return links
}

// AnyUsable reports whether at least one peer link carries traffic;
// this gates the overall "connected" status.
func (m *Manager) AnyUsable() bool {
	for _, l := range m.Links() {
		if l.Usable() {
			return true
		}
	}
	return false
}

// AllUsable reports whether every known peer link carries traffic. A
// stronger, display-only condition; no data operation requires it.
func (m *Manager) AllUsable() bool {
	links := m.Links()
	if len(links) == 0 {
		return false
	}
	for _, l := range links {
		if !l.Usable() {
			return false
		}
	}
	return true
}

// Remove tears down the link for a departed participant.
func (m *Manager) Remove(remoteID string) {
	m.teardown(remoteID, LinkClosed)
}

// CloseAll tears down every link, e.g. when leaving the room.
func (m *Manager) CloseAll() {
	for _, l := range m.Links() {
		m.teardown(l.RemoteID, LinkClosed)
	}
}

// teardown closes a link's channel and adapter, removes it, and lets
// dependents clean up after it. Safe to call for unknown remotes.
func (m *Manager) teardown(remoteID string, final LinkState) {
	m.mu.Lock()
	link, ok := m.links[remoteID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.links, remoteID)
	m.mu.Unlock()

	link.setState(final)
	m.notifyState(link)

	if ch := link.Channel(); ch != nil {
		ch.Close()
	}
	link.adapter.Close()

	slog.Info("peer link closed", "remote", remoteID, "state", final)

	if m.OnClosed != nil {
		m.OnClosed(remoteID)
	}
}

func (m *Manager) notifyState(link *Link) {
	if m.OnStateChange != nil {
		m.OnStateChange(link)
	}
}
