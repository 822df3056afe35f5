package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
)

func TestInitiates(t *testing.T) {
	a, b := "user_a", "user_b"

	// Exactly one side of any pair initiates, and both sides agree.
	if Initiates(a, b) == Initiates(b, a) {
		t.Error("both sides computed the same role")
	}
	if !Initiates(b, a) {
		t.Error("the greater id should initiate")
	}
	if Initiates(a, a) {
		t.Error("a participant never initiates toward itself")
	}
}

// fakeChannel is an in-memory DataChannel.
type fakeChannel struct {
	label string

	mu       sync.Mutex
	onOpen   func()
	onClose  func()
	closed   bool
	sent     [][]byte
	sentText []string
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentText = append(c.sentText, text)
	return nil
}

func (c *fakeChannel) BufferedAmount() uint64                  { return 0 }
func (c *fakeChannel) OnOpen(fn func())                        { c.onOpen = fn }
func (c *fakeChannel) OnClose(fn func())                       { c.onClose = fn }
func (c *fakeChannel) OnMessage(fn func(data []byte, isText bool)) {}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) open() {
	if c.onOpen != nil {
		c.onOpen()
	}
}

// fakeAdapter scripts negotiation outcomes.
type fakeAdapter struct {
	mu sync.Mutex

	channel       *fakeChannel
	onDataChannel func(DataChannel)
	onCandidate   func(json.RawMessage)
	onState       func(ConnState)

	offerErrs  int
	answerErrs int

	offers     int
	answers    int
	handled    int
	candidates []json.RawMessage
	closed     bool
}

func (a *fakeAdapter) CreateDataChannel(label string) (DataChannel, error) {
	a.channel = &fakeChannel{label: label}
	return a.channel, nil
}

func (a *fakeAdapter) OnDataChannel(fn func(DataChannel)) { a.onDataChannel = fn }

func (a *fakeAdapter) CreateOffer() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.offerErrs > 0 {
		a.offerErrs--
		return "", errors.New("invalid state")
	}
	a.offers++
	return fmt.Sprintf("offer-%d", a.offers), nil
}

func (a *fakeAdapter) HandleOffer(sdp string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.answerErrs > 0 {
		a.answerErrs--
		return "", errors.New("invalid state")
	}
	a.answers++
	return "answer-" + sdp, nil
}

func (a *fakeAdapter) HandleAnswer(sdp string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handled++
	return nil
}

func (a *fakeAdapter) AddCandidate(candidate json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.candidates = append(a.candidates, candidate)
	return nil
}

func (a *fakeAdapter) OnCandidate(fn func(json.RawMessage)) { a.onCandidate = fn }
func (a *fakeAdapter) OnStateChange(fn func(ConnState))     { a.onState = fn }

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

type sentSignal struct {
	target  string
	payload *protocol.SignalPayload
}

type harness struct {
	manager  *Manager
	adapters []*fakeAdapter

	mu      sync.Mutex
	signals []sentSignal
}

func newHarness(localID string) *harness {
	h := &harness{}
	h.manager = NewManager(localID,
		func() (Adapter, error) {
			a := &fakeAdapter{}
			h.adapters = append(h.adapters, a)
			return a, nil
		},
		func(target string, payload *protocol.SignalPayload) {
			h.mu.Lock()
			h.signals = append(h.signals, sentSignal{target: target, payload: payload})
			h.mu.Unlock()
		},
	)
	h.manager.retryDelay = 10 * time.Millisecond
	return h
}

func (h *harness) sent() []sentSignal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sentSignal(nil), h.signals...)
}

func TestInitiatorSendsOffer(t *testing.T) {
	h := newHarness("user_b")
	h.manager.EnsureLink("user_a", "Ada")

	signals := h.sent()
	if len(signals) != 1 {
		t.Fatalf("sent %d signals, want 1", len(signals))
	}
	if signals[0].target != "user_a" || signals[0].payload.Type != protocol.SignalTypeOffer {
		t.Errorf("unexpected signal: %+v", signals[0])
	}
	if h.adapters[0].channel == nil || h.adapters[0].channel.label != channelLabel {
		t.Error("initiator should create the data channel before offering")
	}

	link := h.manager.Link("user_a")
	if link == nil || link.State() != LinkNegotiating {
		t.Errorf("link should be negotiating, got %v", link.State())
	}
}

func TestResponderWaitsForOffer(t *testing.T) {
	h := newHarness("user_a")
	h.manager.EnsureLink("user_b", "Lin")

	if len(h.sent()) != 0 {
		t.Error("responder must not send an offer")
	}
	if h.adapters[0].channel != nil {
		t.Error("responder must not create the data channel")
	}

	h.manager.HandleSignal("user_b", &protocol.SignalPayload{
		Type: protocol.SignalTypeOffer,
		SDP:  "v=0",
	})

	signals := h.sent()
	if len(signals) != 1 || signals[0].payload.Type != protocol.SignalTypeAnswer {
		t.Fatalf("expected one answer, got %+v", signals)
	}
	if signals[0].payload.SDP != "answer-v=0" {
		t.Errorf("answer SDP = %q", signals[0].payload.SDP)
	}
}

func TestEnsureLinkIdempotent(t *testing.T) {
	h := newHarness("user_b")
	h.manager.EnsureLink("user_a", "Ada")
	h.manager.EnsureLink("user_a", "Ada")

	if len(h.adapters) != 1 {
		t.Errorf("created %d adapters, want 1", len(h.adapters))
	}
	if len(h.sent()) != 1 {
		t.Errorf("sent %d signals, want 1", len(h.sent()))
	}
}

func TestEnsureLinkSelfIgnored(t *testing.T) {
	h := newHarness("user_b")
	h.manager.EnsureLink("user_b", "Me")

	if len(h.adapters) != 0 {
		t.Error("no link toward self")
	}
}

func TestOfferFromUnknownPeerCreatesLink(t *testing.T) {
	h := newHarness("user_a")

	// First contact arrives as the remote's offer.
	h.manager.HandleSignal("user_b", &protocol.SignalPayload{
		Type: protocol.SignalTypeOffer,
		SDP:  "v=0",
	})

	if h.manager.Link("user_b") == nil {
		t.Fatal("offer should create the link")
	}
	signals := h.sent()
	if len(signals) != 1 || signals[0].payload.Type != protocol.SignalTypeAnswer {
		t.Errorf("expected an answer, got %+v", signals)
	}
}

func TestOfferRetriedOnce(t *testing.T) {
	h := newHarness("user_b")
	h.manager = NewManager("user_b",
		func() (Adapter, error) {
			a := &fakeAdapter{offerErrs: 1}
			h.adapters = append(h.adapters, a)
			return a, nil
		},
		func(target string, payload *protocol.SignalPayload) {
			h.mu.Lock()
			h.signals = append(h.signals, sentSignal{target: target, payload: payload})
			h.mu.Unlock()
		},
	)
	h.manager.retryDelay = 10 * time.Millisecond

	h.manager.EnsureLink("user_a", "Ada")
	if len(h.sent()) != 0 {
		t.Fatal("first attempt should have failed")
	}

	time.Sleep(50 * time.Millisecond)

	signals := h.sent()
	if len(signals) != 1 || signals[0].payload.Type != protocol.SignalTypeOffer {
		t.Errorf("expected the retried offer, got %+v", signals)
	}
}

func TestAnswerApplied(t *testing.T) {
	h := newHarness("user_b")
	h.manager.EnsureLink("user_a", "Ada")

	h.manager.HandleSignal("user_a", &protocol.SignalPayload{
		Type: protocol.SignalTypeAnswer,
		SDP:  "v=0",
	})

	if h.adapters[0].handled != 1 {
		t.Error("answer not handed to the adapter")
	}
}

func TestCandidateForwarded(t *testing.T) {
	h := newHarness("user_b")
	h.manager.EnsureLink("user_a", "Ada")

	candidate := json.RawMessage(`{"candidate":"host 1"}`)
	h.manager.HandleSignal("user_a", &protocol.SignalPayload{
		Type:      protocol.SignalTypeICECandidate,
		Candidate: candidate,
	})

	if len(h.adapters[0].candidates) != 1 {
		t.Fatal("candidate not forwarded to the adapter")
	}
	if string(h.adapters[0].candidates[0]) != string(candidate) {
		t.Error("candidate modified in transit")
	}

	// A candidate for an unknown peer is dropped without effect.
	h.manager.HandleSignal("user_x", &protocol.SignalPayload{
		Type:      protocol.SignalTypeICECandidate,
		Candidate: candidate,
	})
}

func TestLocalCandidateSignalled(t *testing.T) {
	h := newHarness("user_b")
	h.manager.EnsureLink("user_a", "Ada")

	h.adapters[0].onCandidate(json.RawMessage(`{"candidate":"srflx 1"}`))

	signals := h.sent()
	last := signals[len(signals)-1]
	if last.payload.Type != protocol.SignalTypeICECandidate || last.target != "user_a" {
		t.Errorf("local candidate should be relayed to the remote: %+v", last)
	}
}

func TestChannelOpenCallback(t *testing.T) {
	h := newHarness("user_b")

	opened := make(chan *Link, 1)
	h.manager.OnChannelOpen = func(l *Link) { opened <- l }

	h.manager.EnsureLink("user_a", "Ada")
	h.adapters[0].onState(StateConnected)
	h.adapters[0].channel.open()

	select {
	case l := <-opened:
		if !l.Usable() {
			t.Error("link with an open channel should be usable")
		}
	default:
		t.Fatal("OnChannelOpen not fired")
	}

	if !h.manager.AnyUsable() || !h.manager.AllUsable() {
		t.Error("usable link not reflected in aggregates")
	}
}

func TestConnStateMapping(t *testing.T) {
	h := newHarness("user_b")
	h.manager.EnsureLink("user_a", "Ada")
	link := h.manager.Link("user_a")

	h.adapters[0].onState(StateChecking)
	if link.State() != LinkNegotiating {
		t.Errorf("checking should map to negotiating, got %v", link.State())
	}

	h.adapters[0].onState(StateConnected)
	if link.State() != LinkConnected {
		t.Errorf("connected should map to connected, got %v", link.State())
	}

	h.adapters[0].onState(StateDisconnected)
	if link.State() != LinkDisconnected {
		t.Errorf("disconnected should map to disconnected, got %v", link.State())
	}
	if h.manager.Link("user_a") == nil {
		t.Error("disconnected link must be kept for possible recovery")
	}

	h.adapters[0].onState(StateFailed)
	if h.manager.Link("user_a") != nil {
		t.Error("failed link must be torn down")
	}
}

func TestOnStateChangeTransitions(t *testing.T) {
	h := newHarness("user_b")

	var seen []LinkState
	h.manager.OnStateChange = func(l *Link) {
		seen = append(seen, l.State())
	}

	h.manager.EnsureLink("user_a", "Ada")
	h.adapters[0].onState(StateConnected)
	h.manager.Remove("user_a")

	want := []LinkState{LinkNegotiating, LinkConnected, LinkClosed}
	if len(seen) != len(want) {
		t.Fatalf("state transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("state transitions = %v, want %v", seen, want)
		}
	}
}

func TestRemoveTearsDown(t *testing.T) {
	h := newHarness("user_b")

	var closedID string
	h.manager.OnClosed = func(remoteID string) { closedID = remoteID }

	h.manager.EnsureLink("user_a", "Ada")
	h.adapters[0].onState(StateConnected)
	h.adapters[0].channel.open()

	h.manager.Remove("user_a")

	if h.manager.Link("user_a") != nil {
		t.Error("link should be gone")
	}
	if !h.adapters[0].closed {
		t.Error("adapter should be closed")
	}
	if !h.adapters[0].channel.closed {
		t.Error("channel should be closed")
	}
	if closedID != "user_a" {
		t.Error("OnClosed should report the removed remote")
	}

	// Safe for unknown remotes.
	h.manager.Remove("user_x")
}

func TestCloseAll(t *testing.T) {
	h := newHarness("user_z")
	h.manager.EnsureLink("user_a", "Ada")
	h.manager.EnsureLink("user_b", "Lin")

	h.manager.CloseAll()

	if len(h.manager.Links()) != 0 {
		t.Error("all links should be gone")
	}
	for _, a := range h.adapters {
		if !a.closed {
			t.Error("every adapter should be closed")
		}
	}
}
