package signalclient

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
)

// RoomEvent reports a successful create or join, with the membership
// snapshot returned by the server.
type RoomEvent struct {
	RoomCode string
	UserID   string
	UserName string
	Users    []protocol.User
}

// PeerEvent reports a membership change in the joined room.
type PeerEvent struct {
	UserID   string
	UserName string
	Users    []protocol.User
}

// SignalEvent is a relayed negotiation payload from another peer.
type SignalEvent struct {
	FromUserID string
	Payload    *protocol.SignalPayload
}

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client

	RoomReady        chan *RoomEvent
	UserList         chan []protocol.User
	PeerJoined       chan *PeerEvent
	PeerDisconnected chan *PeerEvent
	Signal           chan *SignalEvent
	RoomError        chan string
	Closed           chan struct{}

	// done stops event delivery; only Start closes or sends on the
	// channels above, so a late message never hits a closed channel.
	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:           client,
		RoomReady:        make(chan *RoomEvent, 1),
		UserList:         make(chan []protocol.User, 4),
		PeerJoined:       make(chan *PeerEvent, 8),
		PeerDisconnected: make(chan *PeerEvent, 8),
		Signal:           make(chan *SignalEvent, 32),
		RoomError:        make(chan string, 1),
		Closed:           make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start listens to incoming messages and routes them until the
// connection closes. Unparseable or unknown messages are dropped with a
// log line; they never stop the loop.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		select {
		case <-h.done:
			// Shutting down; keep draining so the read pump is never
			// blocked, but route nothing.
			continue
		default:
		}

		switch msg.Type {

		case protocol.MessageTypeRoomCreated, protocol.MessageTypeRoomJoined:
			select {
			case h.RoomReady <- &RoomEvent{
				RoomCode: msg.RoomCode,
				UserID:   msg.UserID,
				UserName: msg.UserName,
				Users:    msg.UserList,
			}:
			case <-h.done:
			}

		case protocol.MessageTypeUserList:
			select {
			case h.UserList <- msg.UserList:
			case <-h.done:
			}

		case protocol.MessageTypePeerJoined:
			select {
			case h.PeerJoined <- &PeerEvent{
				UserID:   msg.NewUserID,
				UserName: msg.NewUserName,
				Users:    msg.UserList,
			}:
			case <-h.done:
			}

		case protocol.MessageTypePeerDisconnected:
			select {
			case h.PeerDisconnected <- &PeerEvent{
				UserID: msg.DisconnectedUserID,
				Users:  msg.UserList,
			}:
			case <-h.done:
			}

		case protocol.MessageTypeSignal:
			h.handleSignal(msg)

		case protocol.MessageTypeRoomError:
			select {
			case h.RoomError <- msg.Reason:
			case <-h.done:
			}

		default:
			slog.Debug("ignoring unknown signaling message", "type", msg.Type)
		}
	}

	close(h.Closed)
}

// handleSignal parses the negotiation payload and forwards it.
func (h *Handler) handleSignal(msg *protocol.Message) {
	if msg.FromUserID == "" || msg.Payload == nil {
		return
	}

	var payload protocol.SignalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("malformed signal payload", "from", msg.FromUserID, "error", err)
		return
	}

	select {
	case h.Signal <- &SignalEvent{FromUserID: msg.FromUserID, Payload: &payload}:
	case <-h.done:
	}
}

// Close stops event delivery. The routing loop keeps draining the
// connection until it closes, dropping anything that arrives in the
// shutdown window.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
