package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/config"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/files"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/peer"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/signalclient"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/transfer"
)

// Session ties one signaling connection, the connection orchestrator
// and per-peer transfer engines together into the client-side event
// loop. The CLI observes it through callbacks only.
type Session struct {
	cfg     *config.Config
	client  *signalclient.Client
	handler *signalclient.Handler
	manager *peer.Manager
	sink    transfer.Sink

	mu      sync.Mutex
	engines map[string]*transfer.Engine

	LocalID   string
	LocalName string
	RoomCode  string

	// OnPeerUsable fires when a peer's data channel opens.
	OnPeerUsable func(remoteID, name string)
	// OnPeerState fires on every link state transition, for status
	// display.
	OnPeerState func(remoteID string, state peer.LinkState)
	// OnPeerGone fires after a peer link and its transfer state are
	// torn down.
	OnPeerGone func(remoteID string)
	// OnOffer hands an inbound file offer to the decision layer.
	OnOffer func(remoteID string, offer transfer.Offer)
	// OnProgress fires on every chunk event.
	OnProgress func(remoteID string, s *transfer.Session)
	// OnDone fires when a session reaches a terminal state; err is nil
	// for completion.
	OnDone func(remoteID string, s *transfer.Session, err error)
}

// New creates a session against the configured signaling server.
// Received files are handed to sink.
func New(cfg *config.Config, sink transfer.Sink) *Session {
	return &Session{
		cfg:     cfg,
		sink:    sink,
		engines: make(map[string]*transfer.Engine),
	}
}

// Connect dials the signaling server and starts the message router.
func (s *Session) Connect() error {
	s.client = signalclient.NewClient(s.cfg.WebSocketURL)
	if err := s.client.Connect(); err != nil {
		return transfer.NewError("connect to server", err)
	}

	s.handler = signalclient.NewHandler(s.client)
	go s.handler.Start()
	return nil
}

// Create registers a room with the given code (join-or-create on the
// server side) and waits for the server's acknowledgment.
func (s *Session) Create(code, name string) error {
	return s.enterRoom(protocol.MessageTypeCreateRoom, code, name)
}

// Join enters an existing room by code.
func (s *Session) Join(code, name string) error {
	return s.enterRoom(protocol.MessageTypeJoinRoom, code, name)
}

func (s *Session) enterRoom(msgType, code, name string) error {
	if !protocol.ValidRoomCode(code) {
		return transfer.ErrInvalidCode
	}

	s.client.SendMessage(&protocol.Message{
		Type:     msgType,
		RoomCode: code,
		UserName: name,
	})

	select {
	case ev, ok := <-s.handler.RoomReady:
		if !ok {
			return transfer.ErrSignalingError
		}
		s.LocalID = ev.UserID
		s.LocalName = ev.UserName
		s.RoomCode = ev.RoomCode
		s.setupManager()
		for _, u := range ev.Users {
			s.manager.EnsureLink(u.UserID, u.UserName)
		}
		return nil

	case reason, ok := <-s.handler.RoomError:
		if !ok {
			return transfer.ErrSignalingError
		}
		return roomError(reason)

	case <-s.handler.Closed:
		return transfer.ErrSignalingError
	}
}

// roomError maps server reasons onto the client error taxonomy.
func roomError(reason string) error {
	switch {
	case strings.Contains(reason, "Invalid room code"):
		return transfer.WrapError("enter room", transfer.ErrInvalidCode, reason)
	case strings.Contains(reason, "not found"):
		return transfer.WrapError("enter room", transfer.ErrRoomNotFound, reason)
	default:
		return transfer.WrapError("enter room", transfer.ErrSignalingError, reason)
	}
}

func (s *Session) setupManager() {
	s.manager = peer.NewManager(s.LocalID,
		func() (peer.Adapter, error) { return peer.NewPionAdapter(s.cfg) },
		s.sendSignal,
	)
	s.manager.OnChannelOpen = s.channelOpened
	s.manager.OnClosed = s.linkClosed
	s.manager.OnStateChange = func(link *peer.Link) {
		if s.OnPeerState != nil {
			s.OnPeerState(link.RemoteID, link.State())
		}
	}
}

// sendSignal forwards a negotiation payload through the relay, targeted
// at one participant.
func (s *Session) sendSignal(targetUserID string, payload *protocol.SignalPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal signal payload", "error", err)
		return
	}
	s.client.SendMessage(&protocol.Message{
		Type:         protocol.MessageTypeSignal,
		RoomCode:     s.RoomCode,
		TargetUserID: targetUserID,
		Payload:      data,
	})
}

// channelOpened attaches a transfer engine to a freshly opened peer
// data channel.
func (s *Session) channelOpened(link *peer.Link) {
	remoteID := link.RemoteID
	ch := link.Channel()

	engine := transfer.NewEngine(remoteID, ch, s.sink)
	engine.OnOffer(func(offer transfer.Offer) {
		if s.OnOffer != nil {
			s.OnOffer(remoteID, offer)
		}
	})
	engine.OnProgress(func(ts *transfer.Session) {
		if s.OnProgress != nil {
			s.OnProgress(remoteID, ts)
		}
	})
	engine.OnDone(func(ts *transfer.Session, err error) {
		if s.OnDone != nil {
			s.OnDone(remoteID, ts, err)
		}
	})

	ch.OnMessage(engine.HandleMessage)

	s.mu.Lock()
	s.engines[remoteID] = engine
	s.mu.Unlock()

	if s.OnPeerUsable != nil {
		s.OnPeerUsable(remoteID, link.RemoteName)
	}
}

// linkClosed destroys the transfer engine riding the departed link.
func (s *Session) linkClosed(remoteID string) {
	s.mu.Lock()
	engine := s.engines[remoteID]
	delete(s.engines, remoteID)
	s.mu.Unlock()

	if engine != nil {
		engine.Close()
	}
	if s.OnPeerGone != nil {
		s.OnPeerGone(remoteID)
	}
}

// Run consumes signaling events until the connection closes. All
// orchestration happens in response to these events.
func (s *Session) Run() {
	for {
		select {
		case ev, ok := <-s.handler.PeerJoined:
			if !ok {
				return
			}
			s.manager.EnsureLink(ev.UserID, ev.UserName)

		case users, ok := <-s.handler.UserList:
			if !ok {
				return
			}
			for _, u := range users {
				s.manager.EnsureLink(u.UserID, u.UserName)
			}

		case ev, ok := <-s.handler.PeerDisconnected:
			if !ok {
				return
			}
			s.manager.Remove(ev.UserID)

		case ev, ok := <-s.handler.Signal:
			if !ok {
				return
			}
			s.manager.HandleSignal(ev.FromUserID, ev.Payload)

		case <-s.handler.Closed:
			return
		}
	}
}

// Engine returns the transfer engine for a connected peer.
func (s *Session) Engine(remoteID string) (*transfer.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine, ok := s.engines[remoteID]
	if !ok {
		return nil, transfer.ErrChannelNotOpen
	}
	return engine, nil
}

// SendFile offers a validated file to one connected peer. Streaming
// starts when the peer accepts.
func (s *Session) SendFile(remoteID string, info files.FileInfo) error {
	engine, err := s.Engine(remoteID)
	if err != nil {
		return err
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return transfer.NewFileError("open", info.Name, err)
	}

	if err := engine.OfferFile(info.Name, info.Size, f); err != nil {
		f.Close()
		return err
	}
	return nil
}

// AnyPeerUsable reports whether at least one peer link carries traffic.
func (s *Session) AnyPeerUsable() bool {
	return s.manager != nil && s.manager.AnyUsable()
}

// Leave exits the room and closes everything down.
func (s *Session) Leave() {
	if s.client != nil {
		s.client.SendMessage(&protocol.Message{Type: protocol.MessageTypeLeaveRoom})
	}
	if s.manager != nil {
		s.manager.CloseAll()
	}
	if s.handler != nil {
		s.handler.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
}

// RoomLink returns the shareable join reference for the current room.
func (s *Session) RoomLink() string {
	return s.cfg.GetRoomLink(s.RoomCode)
}

// DirSink persists received artifacts into a directory, deduplicating
// file names.
type DirSink struct {
	Dir string
}

func (d DirSink) Store(name string, data []byte) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	target := files.UniqueName(dir, name)
	return os.WriteFile(filepath.Join(dir, target), data, 0o644)
}
