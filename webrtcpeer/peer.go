package webrtcpeer

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// ICERelay is the subset of signaling.Client this package needs: relaying
// a local ICE candidate and an SDP answer back to the remote peer. Kept as
// an interface so peer connection setup can be tested without a live
// signaling session.
type ICERelay interface {
	SendICE(candidate json.RawMessage) error
	SendAnswer(sdp string, requestID string) error
}

// Handler receives data channel lifecycle events. A Peer built from an
// incoming offer fires these once the browser side opens its data channel.
type Handler interface {
	OnOpen()
	OnClose()
	OnMessage(data []byte)
}

// Config configures a Peer.
type Config struct {
	ICEServers []webrtc.ICEServer
	Relay      ICERelay
	Handler    Handler
	Logger     *zap.Logger
}

func (c Config) withDefaults() Config {
	if len(c.ICEServers) == 0 {
		c.ICEServers = []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Peer wraps a single pion/webrtc peer connection and the one data channel
// it carries, relaying ICE candidates and SDP answers through an ICERelay.
type Peer struct {
	pc         *webrtc.PeerConnection
	dataCh     *webrtc.DataChannel
	relay      ICERelay
	handler    Handler
	logger     *zap.Logger
	mu         sync.RWMutex
	pendingICE []webrtc.ICECandidateInit
}

// New creates a peer connection, wiring ICE candidate and connection-state
// callbacks. The data channel itself arrives later, either via an incoming
// offer (HandleOffer) or the browser's OnDataChannel callback.
func New(config Config) (*Peer, error) {
	config = config.withDefaults()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: config.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	peer := &Peer{
		pc:      pc,
		relay:   config.Relay,
		handler: config.Handler,
		logger:  config.Logger,
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil || peer.relay == nil {
			return
		}
		candidateJSON, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			peer.logger.Warn("marshal ICE candidate failed", zap.Error(err))
			return
		}
		if err := peer.relay.SendICE(candidateJSON); err != nil {
			peer.logger.Warn("relay ICE candidate failed", zap.Error(err))
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if peer.handler != nil {
				peer.handler.OnClose()
			}
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		peer.bindDataChannel(dc)
	})

	return peer, nil
}

// HandleOffer applies a remote SDP offer, drains any ICE candidates that
// arrived before the offer did, and sends the local answer back through
// the relay tagged with requestID.
func (p *Peer) HandleOffer(sdp, requestID string) error {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.mu.Lock()
	pending := p.pendingICE
	p.pendingICE = nil
	p.mu.Unlock()
	for _, candidate := range pending {
		if err := p.pc.AddICECandidate(candidate); err != nil {
			p.logger.Warn("add pending ICE candidate failed", zap.Error(err))
		}
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	if p.relay != nil {
		if err := p.relay.SendAnswer(answer.SDP, requestID); err != nil {
			return fmt.Errorf("send answer: %w", err)
		}
	}
	return nil
}

// AddICECandidate applies a remote ICE candidate, queuing it if the remote
// description hasn't been set yet.
func (p *Peer) AddICECandidate(candidateJSON json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(candidateJSON, &candidate); err != nil {
		return fmt.Errorf("unmarshal ICE candidate: %w", err)
	}

	if p.pc.RemoteDescription() == nil {
		p.mu.Lock()
		p.pendingICE = append(p.pendingICE, candidate)
		p.mu.Unlock()
		return nil
	}
	return p.pc.AddICECandidate(candidate)
}

// DataChannel returns the bound data channel, or nil if negotiation hasn't
// produced one yet. The returned channel is the value to hand to
// transport.NewServer.
func (p *Peer) DataChannel() *webrtc.DataChannel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dataCh
}

// Close tears down the data channel and peer connection.
func (p *Peer) Close() error {
	p.mu.Lock()
	dc := p.dataCh
	p.dataCh = nil
	p.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
	if p.pc != nil {
		return p.pc.Close()
	}
	return nil
}

// ConnectionState reports the current peer connection state.
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	if p.pc == nil {
		return webrtc.PeerConnectionStateClosed
	}
	return p.pc.ConnectionState()
}

func (p *Peer) bindDataChannel(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.dataCh = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		if p.handler != nil {
			p.handler.OnOpen()
		}
	})
	dc.OnClose(func() {
		if p.handler != nil {
			p.handler.OnClose()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.handler != nil {
			p.handler.OnMessage(msg.Data)
		}
	})
}
