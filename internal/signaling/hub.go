package signaling

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
)

// Hub is the central brain of the signaling server. It owns all rooms
// and routes negotiation payloads between their members. All state
// mutation happens on the single Run goroutine, so no locking is needed
// for the room map.
type Hub struct {
	// Rooms maps 6-digit codes to Room instances.
	Rooms map[string]*Room

	// Register is a channel for newly connected clients.
	Register chan *Client

	// Unregister is a channel for disconnecting clients.
	Unregister chan *Client

	// Broadcast carries inbound client messages for processing.
	Broadcast chan *inbound
}

// inbound pairs a client message with its sender.
type inbound struct {
	client *Client
	msg    *protocol.Message
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *inbound),
	}
}

// generateUserID creates an opaque participant identifier. IDs are
// unique per connection and never reused; their total order also drives
// the client-side initiator tie-break.
func generateUserID() string {
	return "user_" + uuid.NewString()
}

// displayName trims and defaults a requested name.
func displayName(requested, userID string) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		name = "User " + userID[len(userID)-6:]
	}
	return name
}

// Run starts the hub's main processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// The client is not in a room yet; it has to send
			// create-room or join-room first.
			slog.Debug("client registered", "userId", client.ID)

		case client := <-h.Unregister:
			h.removeClient(client)
			close(client.Send)

		case in := <-h.Broadcast:
			h.dispatch(in.client, in.msg)
		}
	}
}

// dispatch routes one client message. Unknown types are a no-op; one
// bad message never affects other participants.
func (h *Hub) dispatch(client *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeCreateRoom:
		h.handleCreateRoom(client, msg)
	case protocol.MessageTypeJoinRoom:
		h.handleJoinRoom(client, msg)
	case protocol.MessageTypeSignal:
		h.handleSignal(client, msg)
	case protocol.MessageTypeLeaveRoom:
		h.removeClient(client)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "userId", client.ID)
	}
}

// handleCreateRoom registers the caller in the room with the requested
// code. A create against an existing code joins it: the original
// members stay and the caller is appended like any joiner, so two
// concurrent creators of the same code simply end up sharing a room.
func (h *Hub) handleCreateRoom(client *Client, msg *protocol.Message) {
	code := strings.TrimSpace(msg.RoomCode)
	if !protocol.ValidRoomCode(code) {
		client.deliver(&protocol.Message{
			Type:   protocol.MessageTypeRoomError,
			Reason: "Invalid room code format.",
		})
		return
	}

	room, existed := h.Rooms[code]
	if !existed {
		room = &Room{Code: code}
		h.Rooms[code] = room
	}

	userID := generateUserID()
	client.ID = userID
	client.Name = displayName(msg.UserName, userID)
	client.RoomCode = code
	room.Add(client)

	slog.Info("room created", "roomCode", code, "userId", userID, "existing", existed)

	users := room.Users()
	client.deliver(&protocol.Message{
		Type:     protocol.MessageTypeRoomCreated,
		RoomCode: code,
		UserID:   userID,
		UserName: client.Name,
		UserList: users,
	})

	if existed {
		h.notifyJoin(room, client, users)
	}
}

// handleJoinRoom appends the caller to an existing, non-empty room.
func (h *Hub) handleJoinRoom(client *Client, msg *protocol.Message) {
	code := strings.TrimSpace(msg.RoomCode)
	if !protocol.ValidRoomCode(code) {
		client.deliver(&protocol.Message{
			Type:   protocol.MessageTypeRoomError,
			Reason: "Invalid room code format.",
		})
		return
	}

	room, ok := h.Rooms[code]
	if !ok || room.Empty() {
		client.deliver(&protocol.Message{
			Type:   protocol.MessageTypeRoomError,
			Reason: "Room not found or empty.",
		})
		return
	}

	userID := generateUserID()
	client.ID = userID
	client.Name = displayName(msg.UserName, userID)
	client.RoomCode = code
	room.Add(client)

	slog.Info("client joined room", "roomCode", code, "userId", userID, "members", room.Size())

	users := room.Users()

	// The joiner gets the full membership including itself.
	client.deliver(&protocol.Message{
		Type:     protocol.MessageTypeRoomJoined,
		RoomCode: code,
		UserID:   userID,
		UserName: client.Name,
		UserList: users,
	})

	h.notifyJoin(room, client, users)
}

// notifyJoin sends peer-joined to every member except the newcomer.
func (h *Hub) notifyJoin(room *Room, newcomer *Client, users []protocol.User) {
	for _, member := range room.members {
		if member.ID == newcomer.ID {
			continue
		}
		member.deliver(&protocol.Message{
			Type:        protocol.MessageTypePeerJoined,
			NewUserID:   newcomer.ID,
			NewUserName: newcomer.Name,
			UserList:    users,
		})
	}
}

// broadcastUserList sends the current membership to every member.
func (h *Hub) broadcastUserList(room *Room) {
	users := room.Users()
	for _, member := range room.members {
		member.deliver(&protocol.Message{
			Type:     protocol.MessageTypeUserList,
			UserList: users,
		})
	}
}

// handleSignal relays a negotiation payload to one target member, or to
// every other member when no target is named. The payload is forwarded
// verbatim; a vanished target is dropped silently.
func (h *Hub) handleSignal(client *Client, msg *protocol.Message) {
	code := strings.TrimSpace(msg.RoomCode)
	if code == "" || client.RoomCode == "" || client.RoomCode != code {
		slog.Debug("signal outside joined room", "userId", client.ID, "roomCode", code)
		return
	}

	room, ok := h.Rooms[code]
	if !ok {
		return
	}

	payload := msg.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	relay := &protocol.Message{
		Type:       protocol.MessageTypeSignal,
		RoomCode:   code,
		FromUserID: client.ID,
		Payload:    payload,
	}

	if msg.TargetUserID != "" {
		if target := room.Get(msg.TargetUserID); target != nil {
			target.deliver(relay)
		}
		return
	}

	for _, member := range room.members {
		if member.ID == client.ID {
			continue
		}
		member.deliver(relay)
	}
}

// removeClient takes a participant out of its room, deleting the room
// when it empties and notifying survivors otherwise. Idempotent: a
// client that already left is a no-op.
func (h *Hub) removeClient(client *Client) {
	code := client.RoomCode
	userID := client.ID
	if code == "" || userID == "" {
		return
	}

	room, ok := h.Rooms[code]
	if !ok {
		return
	}
	if !room.Remove(userID) {
		return
	}

	client.RoomCode = ""

	if room.Empty() {
		delete(h.Rooms, code)
		slog.Info("room deleted", "roomCode", code)
		return
	}

	slog.Info("client left room", "roomCode", code, "userId", userID, "members", room.Size())

	users := room.Users()
	for _, member := range room.members {
		member.deliver(&protocol.Message{
			Type:               protocol.MessageTypePeerDisconnected,
			DisconnectedUserID: userID,
			UserList:           users,
		})
	}
}
