package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. One
	// missed probe interval reclaims the participant.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Enough for SDP payloads.
	maxMessageSize = 64 * 1024
)

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	// Hub is the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection. Nil in tests that exercise the
	// hub directly.
	Conn *websocket.Conn

	// ID is the opaque participant identifier, assigned on room entry
	// and never reused.
	ID string

	// Name is the display name, defaulted when blank.
	Name string

	// RoomCode is the code of the room the client is in, empty until
	// create/join succeeds.
	RoomCode string

	// Send is a buffered channel for all outbound messages. The hub
	// writes to it; writePump drains it onto the websocket.
	Send chan *protocol.Message
}

// deliver hands a message to the client without blocking the hub. A
// participant whose channel is not writable misses the message; relay
// delivery is not guaranteed and callers tolerate loss.
func (c *Client) deliver(msg *protocol.Message) {
	select {
	case c.Send <- msg:
	default:
		slog.Warn("dropping message for slow client", "userId", c.ID, "type", msg.Type)
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine, ensuring
// at most one reader per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read failed", "userId", c.ID, "error", err)
			}
			// Malformed JSON also lands here and closes the
			// connection; the unregister path cleans the room up.
			break
		}

		c.Hub.Broadcast <- &inbound{client: c, msg: &msg}
	}
}

// WritePump pumps messages from the hub to the websocket connection and
// keeps the liveness probe ticking.
//
// One goroutine per connection, ensuring at most one writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Debug("websocket write failed", "userId", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
