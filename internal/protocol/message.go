package protocol

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages. One struct covers
// the whole taxonomy; unused fields are omitted on the wire.
type Message struct {
	Type string `json:"type"`

	// Room addressing and identity.
	RoomCode string `json:"roomCode,omitempty"`
	UserName string `json:"userName,omitempty"`
	UserID   string `json:"userId,omitempty"`

	// Signal routing. TargetUserID is set by the sender for
	// point-to-point delivery; FromUserID is stamped by the server.
	TargetUserID string `json:"targetUserId,omitempty"`
	FromUserID   string `json:"fromUserId,omitempty"`

	// Membership change notifications.
	NewUserID          string `json:"newUserId,omitempty"`
	NewUserName        string `json:"newUserName,omitempty"`
	DisconnectedUserID string `json:"disconnectedUserId,omitempty"`
	UserList           []User `json:"userList,omitempty"`

	// Reason accompanies room-error.
	Reason string `json:"reason,omitempty"`

	// Payload carries negotiation data verbatim. The server never
	// inspects it beyond forwarding.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// User is one membership list entry. Lists carry id and display name
// only; no transport details leak to peers.
type User struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Message type constants.
const (
	MessageTypeCreateRoom = "create-room"
	MessageTypeJoinRoom   = "join-room"
	MessageTypeLeaveRoom  = "leave-room"
	MessageTypeSignal     = "signal"

	MessageTypeRoomCreated      = "room-created"
	MessageTypeRoomJoined       = "room-joined"
	MessageTypeRoomError        = "room-error"
	MessageTypeUserList         = "user-list"
	MessageTypePeerJoined       = "peer-joined"
	MessageTypePeerDisconnected = "peer-disconnected"
)

// SignalPayload is the negotiation payload relayed between two peers.
// Its shape is owned by the connection layer, not the relay.
type SignalPayload struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Signal payload type constants.
const (
	SignalTypeOffer        = "offer"
	SignalTypeAnswer       = "answer"
	SignalTypeICECandidate = "ice-candidate"
)

var roomCodePattern = regexp.MustCompile(`^\d{6}$`)

// ValidRoomCode reports whether code is exactly six ASCII digits.
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// GenerateRoomCode returns a random 6-digit room code with leading
// zeros preserved.
func GenerateRoomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand failing means the platform is broken; there is
		// no reasonable fallback for a rendezvous code.
		panic(fmt.Sprintf("generate room code: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
