package transfer

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

// pipeEnd is an in-memory Channel endpoint delivering frames directly
// to the opposite engine, preserving send order.
type pipeEnd struct {
	mu     sync.Mutex
	peer   *Engine
	binary int
	text   int

	// afterBinary runs after each delivered binary frame.
	afterBinary func(n int)
}

func (p *pipeEnd) Send(data []byte) error {
	frame := make([]byte, len(data))
	copy(frame, data)

	p.mu.Lock()
	p.binary++
	n := p.binary
	hook := p.afterBinary
	p.mu.Unlock()

	p.peer.HandleMessage(frame, false)
	if hook != nil {
		hook(n)
	}
	return nil
}

func (p *pipeEnd) SendText(text string) error {
	p.mu.Lock()
	p.text++
	p.mu.Unlock()

	p.peer.HandleMessage([]byte(text), true)
	return nil
}

func (p *pipeEnd) BufferedAmount() uint64 { return 0 }

func (p *pipeEnd) binaryFrames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.binary
}

// memSink records stored files.
type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte)}
}

func (s *memSink) Store(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	return nil
}

func (s *memSink) get(name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[name]
}

type pair struct {
	sender   *Engine
	receiver *Engine
	wire     *pipeEnd
	sink     *memSink

	senderDone   chan error
	receiverDone chan error
	offers       chan Offer
}

// newPair wires two engines back to back. The sender side is "user_b",
// the receiver "user_a".
func newPair() *pair {
	p := &pair{
		sink:         newMemSink(),
		senderDone:   make(chan error, 1),
		receiverDone: make(chan error, 1),
		offers:       make(chan Offer, 1),
	}

	senderWire := &pipeEnd{}
	receiverWire := &pipeEnd{}

	p.sender = NewEngine("user_a", senderWire, newMemSink())
	p.receiver = NewEngine("user_b", receiverWire, p.sink)
	senderWire.peer = p.receiver
	receiverWire.peer = p.sender
	p.wire = senderWire

	p.sender.OnDone(func(s *Session, err error) { p.senderDone <- err })
	p.receiver.OnDone(func(s *Session, err error) { p.receiverDone <- err })
	p.receiver.OnOffer(func(o Offer) { p.offers <- o })

	return p
}

func wait(t *testing.T, ch chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func waitOffer(t *testing.T, ch chan Offer) Offer {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for offer")
		return Offer{}
	}
}

func payload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestTransferRoundTrip(t *testing.T) {
	p := newPair()
	content := payload(40 * 1024)

	if err := p.sender.OfferFile("report.pdf", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}

	offer := waitOffer(t, p.offers)
	if offer.Name != "report.pdf" || offer.Size != int64(len(content)) {
		t.Fatalf("unexpected offer: %+v", offer)
	}

	// No chunk moves before acceptance.
	if p.wire.binaryFrames() != 0 {
		t.Fatal("chunks sent before accept")
	}

	if err := p.receiver.Accept(); err != nil {
		t.Fatal(err)
	}

	if err := wait(t, p.senderDone, "sender completion"); err != nil {
		t.Fatalf("sender failed: %v", err)
	}
	if err := wait(t, p.receiverDone, "receiver completion"); err != nil {
		t.Fatalf("receiver failed: %v", err)
	}

	// 40 KiB at 16 KiB per frame is three chunks.
	if got := p.wire.binaryFrames(); got != 3 {
		t.Errorf("sent %d chunks, want 3", got)
	}

	stored := p.sink.get("report.pdf")
	if !bytes.Equal(stored, content) {
		t.Errorf("stored %d bytes, content mismatch", len(stored))
	}

	// Both sides are idle again.
	if p.sender.Session() != nil || p.receiver.Session() != nil {
		t.Error("sessions should be cleared after completion")
	}
}

func TestExactMultipleChunks(t *testing.T) {
	p := newPair()
	content := payload(2 * ChunkSize)

	if err := p.sender.OfferFile("a.bin", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	waitOffer(t, p.offers)
	if err := p.receiver.Accept(); err != nil {
		t.Fatal(err)
	}

	wait(t, p.senderDone, "sender completion")
	wait(t, p.receiverDone, "receiver completion")

	if got := p.wire.binaryFrames(); got != 2 {
		t.Errorf("sent %d chunks, want 2", got)
	}
	if !bytes.Equal(p.sink.get("a.bin"), content) {
		t.Error("content mismatch")
	}
}

func TestRejectSendsNothing(t *testing.T) {
	p := newPair()
	content := payload(ChunkSize)

	if err := p.sender.OfferFile("a.bin", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	waitOffer(t, p.offers)

	if err := p.receiver.Reject(); err != nil {
		t.Fatal(err)
	}

	err := wait(t, p.senderDone, "sender termination")
	if !errors.Is(err, ErrTransferDeclined) {
		t.Errorf("sender should see declined, got %v", err)
	}
	if p.wire.binaryFrames() != 0 {
		t.Error("no chunk may be sent for a rejected offer")
	}
	if p.sender.Session() != nil {
		t.Error("sender session should be cleared")
	}
	if p.receiver.Pending() != nil {
		t.Error("pending offer should be cleared")
	}
}

func TestOfferWhileBusy(t *testing.T) {
	p := newPair()
	content := payload(ChunkSize)

	if err := p.sender.OfferFile("a.bin", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}

	err := p.sender.OfferFile("b.bin", int64(len(content)), bytes.NewReader(content))
	if !errors.Is(err, ErrTransferBusy) {
		t.Errorf("second offer should fail busy, got %v", err)
	}
}

func TestInboundOfferWhileBusyAutoRejected(t *testing.T) {
	p := newPair()
	content := payload(ChunkSize)

	// Receiver has an undecided inbound offer.
	if err := p.sender.OfferFile("a.bin", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	waitOffer(t, p.offers)

	// Now the receiver tries to offer a file back over its own engine;
	// its slot is occupied by the pending offer.
	err := p.receiver.OfferFile("b.bin", int64(len(content)), bytes.NewReader(content))
	if !errors.Is(err, ErrTransferBusy) {
		t.Errorf("outbound offer on busy slot should fail, got %v", err)
	}

	// A second inbound file-info while the slot is busy draws an
	// automatic reject: simulate the sender's engine being cleared and
	// re-offering.
	p.receiver.HandleMessage([]byte(`{"type":"file-info","name":"c.bin","size":16}`), true)

	err = wait(t, p.senderDone, "auto reject")
	if !errors.Is(err, ErrTransferDeclined) {
		t.Errorf("sender should see declined from the auto reject, got %v", err)
	}
}

func TestCancelMidStream(t *testing.T) {
	p := newPair()
	content := payload(64 * ChunkSize)

	// The receiver cancels as soon as the first chunk lands.
	p.wire.afterBinary = func(n int) {
		if n == 1 {
			p.receiver.Cancel()
		}
	}

	if err := p.sender.OfferFile("big.bin", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	waitOffer(t, p.offers)
	if err := p.receiver.Accept(); err != nil {
		t.Fatal(err)
	}

	senderErr := wait(t, p.senderDone, "sender termination")
	if !errors.Is(senderErr, ErrTransferCancelled) {
		t.Errorf("sender should see cancelled, got %v", senderErr)
	}
	receiverErr := wait(t, p.receiverDone, "receiver termination")
	if !errors.Is(receiverErr, ErrTransferCancelled) {
		t.Errorf("receiver should see cancelled, got %v", receiverErr)
	}

	// The stream stops promptly; a chunk already in flight may land but
	// the full file never does.
	if got := p.wire.binaryFrames(); got >= 64 {
		t.Errorf("stream did not stop after cancellation, sent %d chunks", got)
	}

	if p.sink.get("big.bin") != nil {
		t.Error("cancelled transfer must not be stored")
	}
}

func TestSenderCancelBeforeAccept(t *testing.T) {
	p := newPair()
	content := payload(ChunkSize)

	if err := p.sender.OfferFile("a.bin", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	waitOffer(t, p.offers)

	if err := p.sender.Cancel(); err != nil {
		t.Fatal(err)
	}

	err := wait(t, p.senderDone, "sender termination")
	if !errors.Is(err, ErrTransferCancelled) {
		t.Errorf("got %v", err)
	}

	// The receiver's pending offer is withdrawn.
	if p.receiver.Pending() != nil {
		t.Error("receiver should drop the withdrawn offer")
	}
	if p.wire.binaryFrames() != 0 {
		t.Error("no chunk may move for a withdrawn offer")
	}

	// Cancel is idempotent when nothing is active.
	if err := p.sender.Cancel(); err != nil {
		t.Errorf("idle cancel should be a no-op, got %v", err)
	}
}

func TestAcceptWithoutPendingOffer(t *testing.T) {
	p := newPair()

	if err := p.receiver.Accept(); !errors.Is(err, ErrNoPendingOffer) {
		t.Errorf("Accept() = %v, want ErrNoPendingOffer", err)
	}
	if err := p.receiver.Reject(); !errors.Is(err, ErrNoPendingOffer) {
		t.Errorf("Reject() = %v, want ErrNoPendingOffer", err)
	}
}

func TestChunkWithoutSessionDiscarded(t *testing.T) {
	p := newPair()

	p.receiver.HandleMessage(payload(128), false)

	if len(p.sink.files) != 0 {
		t.Error("stray chunk must not be stored")
	}
	if p.receiver.Session() != nil {
		t.Error("stray chunk must not create a session")
	}
}

func TestCloseAbortsInFlight(t *testing.T) {
	p := newPair()
	content := payload(ChunkSize)

	if err := p.sender.OfferFile("a.bin", int64(len(content)), bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}

	p.sender.Close()

	err := wait(t, p.senderDone, "sender termination")
	if !errors.Is(err, ErrPeerDisconnected) {
		t.Errorf("got %v, want ErrPeerDisconnected", err)
	}
	if p.sender.Session() != nil {
		t.Error("session should be cleared")
	}
}

func TestMalformedControlIgnored(t *testing.T) {
	p := newPair()

	p.receiver.HandleMessage([]byte("not json"), true)
	p.receiver.HandleMessage([]byte(`{"type":"mystery"}`), true)

	if p.receiver.Session() != nil || p.receiver.Pending() != nil {
		t.Error("malformed or unknown control frames must be no-ops")
	}
}
