package peer

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/config"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/netutil"
)

// PionAdapter implements Adapter on top of pion/webrtc.
type PionAdapter struct {
	pc *webrtc.PeerConnection

	mu sync.Mutex
	// pending buffers remote candidates that arrive before the remote
	// description is set; pion rejects them otherwise.
	pending    []webrtc.ICECandidateInit
	haveRemote bool
}

// NewPionAdapter builds a peer connection from the configured ICE
// servers.
func NewPionAdapter(cfg *config.Config) (*PionAdapter, error) {
	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if cfg.GetTURNServers() != nil && (cfg.ForceRelay || netutil.ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, err
	}

	return &PionAdapter{pc: pc}, nil
}

func (a *PionAdapter) CreateDataChannel(label string) (DataChannel, error) {
	ordered := true
	dc, err := a.pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, err
	}
	return &pionChannel{dc: dc}, nil
}

func (a *PionAdapter) OnDataChannel(fn func(DataChannel)) {
	a.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		fn(&pionChannel{dc: dc})
	})
}

func (a *PionAdapter) CreateOffer() (string, error) {
	offer, err := a.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err = a.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	// Trickle ICE: return immediately, candidates follow via
	// OnCandidate.
	return a.pc.LocalDescription().SDP, nil
}

func (a *PionAdapter) HandleOffer(sdp string) (string, error) {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := a.pc.SetRemoteDescription(desc); err != nil {
		return "", err
	}
	a.flushPending()

	answer, err := a.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err = a.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return a.pc.LocalDescription().SDP, nil
}

func (a *PionAdapter) HandleAnswer(sdp string) error {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := a.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	a.flushPending()
	return nil
}

func (a *PionAdapter) AddCandidate(candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return err
	}

	a.mu.Lock()
	if !a.haveRemote {
		a.pending = append(a.pending, init)
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	return a.pc.AddICECandidate(init)
}

// flushPending applies candidates buffered before the remote
// description arrived, in arrival order.
func (a *PionAdapter) flushPending() {
	a.mu.Lock()
	a.haveRemote = true
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, init := range pending {
		a.pc.AddICECandidate(init)
	}
}

func (a *PionAdapter) OnCandidate(fn func(json.RawMessage)) {
	a.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(data)
	})
}

func (a *PionAdapter) OnStateChange(fn func(ConnState)) {
	a.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		fn(mapICEState(state))
	})
}

func (a *PionAdapter) Close() error {
	return a.pc.Close()
}

func mapICEState(state webrtc.ICEConnectionState) ConnState {
	switch state {
	case webrtc.ICEConnectionStateChecking:
		return StateChecking
	case webrtc.ICEConnectionStateConnected:
		return StateConnected
	case webrtc.ICEConnectionStateCompleted:
		return StateCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return StateDisconnected
	case webrtc.ICEConnectionStateFailed:
		return StateFailed
	case webrtc.ICEConnectionStateClosed:
		return StateClosed
	default:
		return StateNew
	}
}

// pionChannel adapts *webrtc.DataChannel to the DataChannel interface.
type pionChannel struct {
	dc *webrtc.DataChannel
}

func (c *pionChannel) Label() string          { return c.dc.Label() }
func (c *pionChannel) Send(data []byte) error { return c.dc.Send(data) }
func (c *pionChannel) SendText(text string) error {
	return c.dc.SendText(text)
}
func (c *pionChannel) BufferedAmount() uint64 { return c.dc.BufferedAmount() }
func (c *pionChannel) OnOpen(fn func())       { c.dc.OnOpen(fn) }
func (c *pionChannel) OnClose(fn func())      { c.dc.OnClose(fn) }
func (c *pionChannel) OnMessage(fn func(data []byte, isText bool)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data, msg.IsString)
	})
}
func (c *pionChannel) Close() error { return c.dc.Close() }
