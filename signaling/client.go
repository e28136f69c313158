package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// EventHandler receives signaling events as they arrive over the socket.
type EventHandler interface {
	OnAuthenticated(payload AuthOKPayload)
	OnAuthError(payload AuthErrorPayload)
	OnAppRegistered(payload AppRegisteredPayload)
	OnOffer(sdp string, requestID string)
	OnAnswer(sdp string, appID string)
	OnICE(candidate json.RawMessage)
	OnError(message string)
	OnConnected()
	OnDisconnected()
}

// Config configures a Client.
type Config struct {
	ServerURL    string
	APIKey       string
	AppName      string
	Capabilities []string
	Handler      EventHandler
	PingInterval time.Duration
	Logger       *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Client manages a WebSocket connection to a signaling server: connecting,
// authenticating, registering as an app, and relaying WebRTC negotiation
// messages to the configured EventHandler.
type Client struct {
	config          Config
	conn            *websocket.Conn
	mu              sync.RWMutex
	isConnected     bool
	isAuthenticated bool
	ctx             context.Context
	cancel          context.CancelFunc
}

// NewClient builds a Client from config.
func NewClient(config Config) *Client {
	return &Client{config: config.withDefaults()}
}

// Connect dials the signaling server, authenticates, and starts the
// read and ping pumps in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.isConnected {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", c.config.APIKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.isConnected = true
	c.mu.Unlock()

	if c.config.Handler != nil {
		c.config.Handler.OnConnected()
	}

	go c.readPump()
	go c.pingPump()

	if err := c.sendAuth(); err != nil {
		c.Close()
		return fmt.Errorf("auth failed: %w", err)
	}
	return nil
}

// Close disconnects from the server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected {
		return nil
	}
	c.isConnected = false
	c.isAuthenticated = false

	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected reports whether the client is connected and authenticated.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected && c.isAuthenticated
}

// SendAnswer sends a WebRTC answer SDP in response to requestID.
func (c *Client) SendAnswer(sdp string, requestID string) error {
	return c.sendMessage(MsgTypeAnswer, AnswerPayload{SDP: sdp}, requestID)
}

// SendICE relays an ICE candidate to the peer.
func (c *Client) SendICE(candidate json.RawMessage) error {
	return c.sendMessage(MsgTypeICE, ICEPayload{Candidate: candidate}, "")
}

func (c *Client) sendAuth() error {
	return c.sendMessage(MsgTypeAuth, AuthPayload{APIKey: c.config.APIKey}, "")
}

// RegisterApp registers this client's app name and capabilities with the
// server. Called automatically after successful authentication.
func (c *Client) RegisterApp() error {
	payload := AppRegisterPayload{Name: c.config.AppName, Capabilities: c.config.Capabilities}
	return c.sendMessage(MsgTypeAppRegister, payload, "")
}

func (c *Client) sendMessage(msgType string, payload any, requestID string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	payloadJSON, err := jsonCodec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}
	msg := Message{Type: msgType, Payload: payloadJSON, RequestID: requestID}
	msgJSON, err := jsonCodec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message failed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection closed")
	}
	return c.conn.WriteMessage(websocket.TextMessage, msgJSON)
}

func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.isConnected = false
		c.isAuthenticated = false
		c.mu.Unlock()
		if c.config.Handler != nil {
			c.config.Handler.OnDisconnected()
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.config.Logger.Warn("signaling socket error", zap.Error(err))
				if c.config.Handler != nil {
					c.config.Handler.OnError(fmt.Sprintf("websocket error: %v", err))
				}
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			c.mu.Lock()
			if c.conn != nil {
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := jsonCodec.Unmarshal(data, &msg); err != nil {
		c.config.Logger.Warn("invalid signaling message", zap.Error(err))
		if c.config.Handler != nil {
			c.config.Handler.OnError(fmt.Sprintf("invalid message format: %v", err))
		}
		return
	}

	handler := c.config.Handler
	switch msg.Type {
	case MsgTypeAuthOK:
		var payload AuthOKPayload
		if err := jsonCodec.Unmarshal(msg.Payload, &payload); err == nil {
			c.mu.Lock()
			c.isAuthenticated = true
			c.mu.Unlock()
			if handler != nil {
				handler.OnAuthenticated(payload)
			}
			c.RegisterApp()
		}

	case MsgTypeAuthError:
		var payload AuthErrorPayload
		if err := jsonCodec.Unmarshal(msg.Payload, &payload); err == nil && handler != nil {
			handler.OnAuthError(payload)
		}

	case MsgTypeAppRegistered:
		var payload AppRegisteredPayload
		if err := jsonCodec.Unmarshal(msg.Payload, &payload); err == nil && handler != nil {
			handler.OnAppRegistered(payload)
		}

	case MsgTypeOffer:
		var payload OfferPayload
		if err := jsonCodec.Unmarshal(msg.Payload, &payload); err == nil && handler != nil {
			handler.OnOffer(payload.SDP, msg.RequestID)
		}

	case MsgTypeAnswer:
		var payload AnswerPayload
		if err := jsonCodec.Unmarshal(msg.Payload, &payload); err == nil && handler != nil {
			handler.OnAnswer(payload.SDP, payload.AppID)
		}

	case MsgTypeICE:
		var payload ICEPayload
		if err := jsonCodec.Unmarshal(msg.Payload, &payload); err == nil && handler != nil {
			handler.OnICE(payload.Candidate)
		}

	case MsgTypeError:
		var payload ErrorPayload
		if err := jsonCodec.Unmarshal(msg.Payload, &payload); err == nil && handler != nil {
			handler.OnError(payload.Message)
		}
	}
}
