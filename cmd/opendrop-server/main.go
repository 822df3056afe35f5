package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/logging"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/server"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/signaling"
)

func main() {
	logging.Init(slog.LevelInfo)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// The hub owns all room state; its event loop runs for the life of
	// the process.
	hub := signaling.NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.Health)
	mux.HandleFunc("/api/server-address", server.ServerAddress(port))
	mux.HandleFunc("/ws", server.ServeWs(hub))

	slog.Info("signaling server listening", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
