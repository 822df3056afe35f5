package transfer

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
)

const (
	// ChunkSize is the fixed size of outbound binary frames.
	ChunkSize = 16 * 1024

	// highWaterMark bounds how far the sender runs ahead of the
	// channel's internal buffer.
	highWaterMark = 2 * 1024 * 1024

	// drainPoll is how often the sender re-checks a full buffer.
	drainPoll = 10 * time.Millisecond

	// sendTimeout gives up on a buffer that stopped draining.
	sendTimeout = 60 * time.Second
)

// Offer describes an incoming file before it is accepted.
type Offer struct {
	Name string
	Size int64
}

// Sink persists a fully reassembled inbound artifact.
type Sink interface {
	Store(name string, data []byte) error
}

// Engine runs the file transfer protocol with one remote participant
// over that peer's open data channel: offer, accept/reject, chunk
// streaming, completion and cancellation. One session at a time per
// peer, regardless of direction.
type Engine struct {
	remoteID string
	ch       Channel
	sink     Sink

	mu      sync.Mutex
	session *Session
	pending *Offer

	// onOffer hands an inbound file offer to the decision layer.
	onOffer func(Offer)
	// onProgress fires on every chunk event, both directions.
	onProgress func(*Session)
	// onDone fires once per session with nil for completion or the
	// terminal cause otherwise.
	onDone func(*Session, error)
}

// NewEngine creates a transfer engine bound to one peer's channel.
func NewEngine(remoteID string, ch Channel, sink Sink) *Engine {
	return &Engine{remoteID: remoteID, ch: ch, sink: sink}
}

// OnOffer registers the accept/reject decision callback.
func (e *Engine) OnOffer(fn func(Offer)) { e.onOffer = fn }

// OnProgress registers the chunk event callback.
func (e *Engine) OnProgress(fn func(*Session)) { e.onProgress = fn }

// OnDone registers the terminal event callback.
func (e *Engine) OnDone(fn func(*Session, error)) { e.onDone = fn }

// Session returns the active session, nil when idle.
func (e *Engine) Session() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Pending returns the undecided inbound offer, nil when there is none.
func (e *Engine) Pending() *Offer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// OfferFile announces an outbound file to the peer and queues its
// content. No chunk moves until the peer accepts. A second offer while
// a session or undecided offer exists fails with ErrTransferBusy.
func (e *Engine) OfferFile(name string, size int64, source io.Reader) error {
	e.mu.Lock()
	if e.session != nil || e.pending != nil {
		e.mu.Unlock()
		return ErrTransferBusy
	}
	s := newSession(Outbound, name, size, source)
	e.session = s
	e.mu.Unlock()

	if err := sendFileInfo(e.ch, name, size); err != nil {
		e.clear(s)
		return NewFileError("offer file", name, err)
	}
	return nil
}

// Accept turns the pending inbound offer into an active session and
// tells the sender to start streaming.
func (e *Engine) Accept() error {
	e.mu.Lock()
	offer := e.pending
	if offer == nil {
		e.mu.Unlock()
		return ErrNoPendingOffer
	}
	e.pending = nil
	s := newSession(Inbound, offer.Name, offer.Size, nil)
	e.session = s
	e.mu.Unlock()

	if err := sendSimple(e.ch, protocol.ControlTypeFileAccept); err != nil {
		e.clear(s)
		return NewFileError("accept file", offer.Name, err)
	}
	return nil
}

// Reject declines the pending inbound offer. The sender discards its
// queued content; no chunk is ever sent for a rejected offer.
func (e *Engine) Reject() error {
	e.mu.Lock()
	offer := e.pending
	if offer == nil {
		e.mu.Unlock()
		return ErrNoPendingOffer
	}
	e.pending = nil
	e.mu.Unlock()

	if err := sendSimple(e.ch, protocol.ControlTypeFileReject); err != nil {
		return NewFileError("reject file", offer.Name, err)
	}
	return nil
}

// Cancel aborts the active session from either side. The streaming loop
// observes the flag before its next chunk; a chunk already handed to
// the transport cannot be recalled. Idempotent when nothing is active.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.pending = nil
	e.mu.Unlock()

	if s == nil {
		return nil
	}
	s.Cancel()

	err := sendSimple(e.ch, protocol.ControlTypeFileCancel)
	e.done(s, ErrTransferCancelled)
	if err != nil {
		return NewError("cancel transfer", err)
	}
	return nil
}

// Close tears the engine down with its peer link, aborting whatever is
// in flight without notifying the gone peer.
func (e *Engine) Close() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.pending = nil
	e.mu.Unlock()

	if s != nil {
		s.Cancel()
		e.done(s, ErrPeerDisconnected)
	}
}

// HandleMessage dispatches one data channel frame: JSON text frames are
// control messages, binary frames are chunks of the inbound session.
// Both kinds arrive in send order on the one channel.
func (e *Engine) HandleMessage(data []byte, isText bool) {
	if !isText {
		e.handleChunk(data)
		return
	}

	msg, err := protocol.DecodeControl(data)
	if err != nil {
		slog.Warn("malformed control message", "remote", e.remoteID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.ControlTypeFileInfo:
		e.handleFileInfo(msg)
	case protocol.ControlTypeFileAccept:
		e.handleAccepted()
	case protocol.ControlTypeFileReject:
		e.handleRejected()
	case protocol.ControlTypeFileComplete:
		e.handleComplete()
	case protocol.ControlTypeFileCancel:
		e.handleCancelled()
	default:
		slog.Debug("ignoring unknown control message", "remote", e.remoteID, "type", msg.Type)
	}
}

func (e *Engine) handleFileInfo(msg protocol.ControlMessage) {
	e.mu.Lock()
	if e.session != nil || e.pending != nil {
		e.mu.Unlock()
		// Single slot per peer: a second offer while busy is answered
		// with an automatic reject.
		slog.Info("rejecting file offer, transfer slot busy", "remote", e.remoteID, "name", msg.Name)
		sendSimple(e.ch, protocol.ControlTypeFileReject)
		return
	}
	offer := &Offer{Name: msg.Name, Size: msg.Size}
	e.pending = offer
	fn := e.onOffer
	e.mu.Unlock()

	if fn != nil {
		fn(*offer)
	}
}

func (e *Engine) handleAccepted() {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil || s.Direction != Outbound {
		slog.Warn("file-accept without queued outbound file", "remote", e.remoteID)
		return
	}

	go e.stream(s)
}

func (e *Engine) handleRejected() {
	e.mu.Lock()
	s := e.session
	if s == nil || s.Direction != Outbound {
		e.mu.Unlock()
		return
	}
	e.session = nil
	e.mu.Unlock()

	// Discard the queued source; nothing was streamed.
	e.done(s, ErrTransferDeclined)
}

func (e *Engine) handleComplete() {
	e.mu.Lock()
	s := e.session
	if s == nil || s.Direction != Inbound {
		e.mu.Unlock()
		return
	}
	e.session = nil
	e.mu.Unlock()

	// The explicit completion signal is the only end-of-file marker;
	// byte counts are display-only.
	data := s.assemble()
	if err := e.sink.Store(s.Name, data); err != nil {
		e.done(s, NewFileError("store file", s.Name, err))
		return
	}
	e.done(s, nil)
}

func (e *Engine) handleCancelled() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.pending = nil
	e.mu.Unlock()

	if s == nil {
		return
	}
	s.Cancel()
	e.done(s, ErrTransferCancelled)
}

// handleChunk appends one binary frame to the inbound session. Data
// without an accepted session is discarded.
func (e *Engine) handleChunk(data []byte) {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil || s.Direction != Inbound || s.Cancelled() {
		slog.Debug("discarding chunk without active session", "remote", e.remoteID, "bytes", len(data))
		return
	}

	s.appendChunk(data)
	e.progress(s)
}

// stream reads the source in fixed-size chunks and sends each as one
// binary frame, checking the cancellation flag before every send, then
// announces completion with an explicit control message.
func (e *Engine) stream(s *Session) {
	buf := make([]byte, ChunkSize)

	for {
		if s.Cancelled() {
			return
		}

		if err := e.waitForWindow(s); err != nil {
			e.fail(s, err)
			return
		}

		n, err := s.source.Read(buf)
		if n > 0 {
			if s.Cancelled() {
				return
			}
			if serr := e.ch.Send(buf[:n]); serr != nil {
				e.fail(s, NewError("send chunk", serr))
				return
			}
			s.addBytes(int64(n))
			e.progress(s)
		}

		if err != nil {
			if err == io.EOF {
				e.finish(s)
				return
			}
			e.fail(s, NewFileError("read", s.Name, err))
			return
		}
	}
}

// waitForWindow blocks while the channel buffer sits above the high
// water mark, so a fast reader cannot balloon memory in the transport.
func (e *Engine) waitForWindow(s *Session) error {
	if e.ch.BufferedAmount() < highWaterMark {
		return nil
	}

	deadline := time.Now().Add(sendTimeout)
	for e.ch.BufferedAmount() >= highWaterMark {
		if s.Cancelled() {
			return ErrTransferCancelled
		}
		if time.Now().After(deadline) {
			return WrapError("send", ErrBufferTimeout, "buffer not draining")
		}
		time.Sleep(drainPoll)
	}
	return nil
}

func (e *Engine) finish(s *Session) {
	e.mu.Lock()
	if e.session == s {
		e.session = nil
	}
	e.mu.Unlock()

	if err := sendSimple(e.ch, protocol.ControlTypeFileComplete); err != nil {
		e.done(s, NewError("send file-complete", err))
		return
	}
	e.done(s, nil)
}

// fail aborts an outbound stream, telling the peer to discard the
// partial content.
func (e *Engine) fail(s *Session, err error) {
	e.mu.Lock()
	if e.session == s {
		e.session = nil
	}
	e.mu.Unlock()

	s.Cancel()
	sendSimple(e.ch, protocol.ControlTypeFileCancel)
	e.done(s, err)
}

// clear drops a session that never got underway.
func (e *Engine) clear(s *Session) {
	e.mu.Lock()
	if e.session == s {
		e.session = nil
	}
	e.mu.Unlock()
}

func (e *Engine) progress(s *Session) {
	if e.onProgress != nil {
		e.onProgress(s)
	}
}

func (e *Engine) done(s *Session, err error) {
	if c, ok := s.source.(io.Closer); ok {
		c.Close()
	}
	if e.onDone != nil {
		e.onDone(s, err)
	}
}
