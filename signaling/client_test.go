package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type mockHandler struct {
	mu            sync.Mutex
	authenticated bool
	authError     string
	appRegistered bool
	appID         string
	offers        []string
	iceReceived   int
	errs          []string
	connected     bool
	disconnected  bool
}

func (h *mockHandler) OnAuthenticated(payload AuthOKPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authenticated = true
}

func (h *mockHandler) OnAuthError(payload AuthErrorPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authError = payload.Error
}

func (h *mockHandler) OnAppRegistered(payload AppRegisteredPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appRegistered = true
	h.appID = payload.AppID
}

func (h *mockHandler) OnOffer(sdp string, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offers = append(h.offers, sdp)
}

func (h *mockHandler) OnAnswer(sdp string, appID string) {}

func (h *mockHandler) OnICE(candidate json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.iceReceived++
}

func (h *mockHandler) OnError(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, message)
}

func (h *mockHandler) OnConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = true
}

func (h *mockHandler) OnDisconnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = true
}

func (h *mockHandler) snapshot() mockHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return mockHandler{
		authenticated: h.authenticated,
		authError:     h.authError,
		appRegistered: h.appRegistered,
		appID:         h.appID,
		offers:        append([]string(nil), h.offers...),
		iceReceived:   h.iceReceived,
		errs:          append([]string(nil), h.errs...),
		connected:     h.connected,
		disconnected:  h.disconnected,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(t *testing.T, server *httptest.Server) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClientConnectAuthenticatesAndRegisters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var wire Message
		require.NoError(t, json.Unmarshal(msg, &wire))
		require.Equal(t, MsgTypeAuth, wire.Type)

		conn.WriteMessage(websocket.TextMessage, mustJSON(t, Message{
			Type:    MsgTypeAuthOK,
			Payload: json.RawMessage(`{"userId":"test-user","type":"app"}`),
		}))

		_, msg, err = conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(msg, &wire))
		require.Equal(t, MsgTypeAppRegister, wire.Type)

		conn.WriteMessage(websocket.TextMessage, mustJSON(t, Message{
			Type:    MsgTypeAppRegistered,
			Payload: json.RawMessage(`{"appId":"test-app-id"}`),
		}))

		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	handler := &mockHandler{}
	client := NewClient(Config{
		ServerURL:    wsURL(t, server),
		APIKey:       "test-api-key",
		AppName:      "TestApp",
		Capabilities: []string{"test"},
		Handler:      handler,
		PingInterval: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	require.Eventually(t, func() bool {
		s := handler.snapshot()
		return s.authenticated && s.appRegistered && s.appID == "test-app-id"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, _, err = conn.ReadMessage()
		require.NoError(t, err)

		conn.WriteMessage(websocket.TextMessage, mustJSON(t, Message{
			Type:    MsgTypeAuthError,
			Payload: json.RawMessage(`{"error":"invalid api key"}`),
		}))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	handler := &mockHandler{}
	client := NewClient(Config{ServerURL: wsURL(t, server), APIKey: "bad-key", Handler: handler})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.Connect(ctx)
	defer client.Close()

	require.Eventually(t, func() bool {
		return handler.snapshot().authError == "invalid api key"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientReceivesOffer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, mustJSON(t, Message{
			Type:    MsgTypeAuthOK,
			Payload: json.RawMessage(`{"userId":"test-user","type":"app"}`),
		}))
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, mustJSON(t, Message{
			Type:      MsgTypeOffer,
			Payload:   json.RawMessage(`{"sdp":"v=0\r\n..."}`),
			RequestID: "req-123",
		}))
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	handler := &mockHandler{}
	client := NewClient(Config{ServerURL: wsURL(t, server), APIKey: "test-key", Handler: handler})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.Connect(ctx)
	defer client.Close()

	require.Eventually(t, func() bool {
		s := handler.snapshot()
		return len(s.offers) == 1 && s.offers[0] == "v=0\r\n..."
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMessageTypeConstants(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{MsgTypeAuth, "auth"},
		{MsgTypeAuthOK, "auth_ok"},
		{MsgTypeAuthError, "auth_error"},
		{MsgTypeAppRegister, "app_register"},
		{MsgTypeAppRegistered, "app_registered"},
		{MsgTypeOffer, "offer"},
		{MsgTypeAnswer, "answer"},
		{MsgTypeICE, "ice"},
		{MsgTypeError, "error"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.got)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
