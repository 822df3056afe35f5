package transfer

import (
	"io"
	"sync"
	"time"
)

// Direction of a transfer session relative to the local participant.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "send"
	}
	return "receive"
}

// Session is the protocol state for moving one file between two
// participants. One session exists per peer at a time, regardless of
// direction.
type Session struct {
	Direction Direction
	Name      string
	Size      int64

	// source is the outbound file content.
	source io.Reader

	mu        sync.Mutex
	bytes     int64
	startedAt time.Time
	cancelled bool
	// chunks accumulates inbound binary frames in receipt order.
	chunks [][]byte
}

func newSession(direction Direction, name string, size int64, source io.Reader) *Session {
	return &Session{
		Direction: direction,
		Name:      name,
		Size:      size,
		source:    source,
		startedAt: time.Now(),
	}
}

// Bytes returns the number of bytes moved so far.
func (s *Session) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

func (s *Session) addBytes(n int64) {
	s.mu.Lock()
	s.bytes += n
	s.mu.Unlock()
}

// Progress returns the percentage of the declared size moved so far,
// clamped to [0,100]. Completion is signalled explicitly, never
// inferred from this value.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Size <= 0 {
		return 0
	}
	pct := float64(s.bytes) / float64(s.Size) * 100
	return min(100, max(0, pct))
}

// Speed returns the instantaneous average throughput in bytes per
// second: bytes moved over elapsed time since session start.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.bytes) / elapsed
}

// Cancel marks the session cancelled. The streaming loop observes the
// flag before each chunk send.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Cancelled reports whether the session was cancelled.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// appendChunk records one inbound binary frame.
func (s *Session) appendChunk(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)

	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.bytes += int64(len(chunk))
	s.mu.Unlock()
}

// assemble concatenates received chunks in receipt order into the final
// artifact.
func (s *Session) assemble() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, 0, s.bytes)
	for _, chunk := range s.chunks {
		out = append(out, chunk...)
	}
	return out
}
