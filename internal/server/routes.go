package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/netutil"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/signaling"
)

// Configure the websocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Peers join from arbitrary LAN hosts via the shared join link, so
	// origin checking stays open.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades requests to
// websocket connections and hands them to the hub.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		client := &signaling.Client{
			Hub:  hub,
			Conn: conn,
			Send: make(chan *protocol.Message, 256),
		}

		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

// Health responds to liveness probes.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// AddressResponse is the payload of /api/server-address, used by peers
// to build a human-shareable join reference.
type AddressResponse struct {
	BaseURL string `json:"baseUrl"`
	Host    string `json:"host"`
	Port    string `json:"port"`
}

// ServerAddress returns a handler exposing the server's LAN address so
// join links point other devices at the right host.
func ServerAddress(port string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := netutil.LocalAddress()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AddressResponse{
			BaseURL: "http://" + host + ":" + port,
			Host:    host,
			Port:    port,
		})
	}
}
