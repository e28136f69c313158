package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/framewire/framewire/registry"
)

// mockDataChannel is a fake DataChannel for driving Server in tests without
// a real WebRTC peer.
type mockDataChannel struct {
	onMessage    func(msg webrtc.DataChannelMessage)
	onClose      func()
	onError      func(err error)
	sentMessages [][]byte
	closed       bool
}

func newMockDataChannel() *mockDataChannel {
	return &mockDataChannel{}
}

func (m *mockDataChannel) Send(data []byte) error {
	m.sentMessages = append(m.sentMessages, data)
	return nil
}

func (m *mockDataChannel) Close() error {
	m.closed = true
	return nil
}

func (m *mockDataChannel) OnMessage(f func(msg webrtc.DataChannelMessage)) { m.onMessage = f }
func (m *mockDataChannel) OnClose(f func())                                { m.onClose = f }
func (m *mockDataChannel) OnError(f func(err error))                       { m.onError = f }

func (m *mockDataChannel) simulate(data []byte) {
	m.onMessage(webrtc.DataChannelMessage{Data: data})
}

func echoHandler(ctx context.Context, req any) (any, error) {
	return req, nil
}

func newTestApp(t *testing.T) *registry.App {
	t.Helper()
	svc, err := registry.NewService("echo", registry.NewMethod("call", nil, nil))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	app, err := registry.NewApp(svc)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	if err := app.Register("/echo/call", echoHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return app
}

func TestServerDispatchesToHandler(t *testing.T) {
	dc := newMockDataChannel()
	app := newTestApp(t)
	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	wire, err := EncodeRequest(RequestEnvelope{Route: "/echo/call", Message: []byte("hi")})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	if len(dc.sentMessages) != 1 {
		t.Fatalf("got %d sent messages, want 1", len(dc.sentMessages))
	}
	resp, err := DecodeResponse(dc.sentMessages[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if string(resp.Message) != "hi" {
		t.Errorf("response message = %q, want hi", resp.Message)
	}
	if resp.Trailers["grpc-status"] != "0" {
		t.Errorf("grpc-status = %q, want 0", resp.Trailers["grpc-status"])
	}
}

func TestServerUnimplementedRoute(t *testing.T) {
	dc := newMockDataChannel()
	app := newTestApp(t)
	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	wire, err := EncodeRequest(RequestEnvelope{Route: "/nope/nope"})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	resp, err := DecodeResponse(dc.sentMessages[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Trailers["grpc-status"] != "12" {
		t.Errorf("grpc-status = %q, want 12 (Unimplemented)", resp.Trailers["grpc-status"])
	}
}

func TestServerEchoesRequestID(t *testing.T) {
	dc := newMockDataChannel()
	app := newTestApp(t)
	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	wire, err := EncodeRequest(RequestEnvelope{
		Route:   "/echo/call",
		Headers: map[string]string{requestIDHeader: "req-123"},
		Message: []byte("x"),
	})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	resp, err := DecodeResponse(dc.sentMessages[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Headers[requestIDHeader] != "req-123" {
		t.Errorf("request id = %q, want req-123", resp.Headers[requestIDHeader])
	}
}

func TestServerGeneratesRequestIDWhenAbsent(t *testing.T) {
	dc := newMockDataChannel()
	app := newTestApp(t)
	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	wire, err := EncodeRequest(RequestEnvelope{Route: "/echo/call", Message: []byte("x")})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	resp, err := DecodeResponse(dc.sentMessages[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Headers[requestIDHeader] == "" {
		t.Error("expected a generated request id")
	}
}

func TestServerDeadlineExceeded(t *testing.T) {
	dc := newMockDataChannel()

	svc, err := registry.NewService("slow", registry.NewMethod("call", nil, nil))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	app, err := registry.NewApp(svc)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	blocked := make(chan struct{})
	err = app.Register("/slow/call", func(ctx context.Context, req any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	defer close(blocked)

	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	wire, err := EncodeRequest(RequestEnvelope{Route: "/slow/call", Deadline: "1m"})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	resp, err := DecodeResponse(dc.sentMessages[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Trailers["grpc-status"] != "4" {
		t.Errorf("grpc-status = %q, want 4 (DeadlineExceeded)", resp.Trailers["grpc-status"])
	}
}

func TestServerCallErrorPropagatesStatus(t *testing.T) {
	dc := newMockDataChannel()

	svc, err := registry.NewService("svc", registry.NewMethod("fail", nil, nil))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	app, err := registry.NewApp(svc)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	err = app.Register("/svc/fail", func(ctx context.Context, req any) (any, error) {
		return nil, &CallError{Code: StatusNotFound, Message: "no such thing"}
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	wire, err := EncodeRequest(RequestEnvelope{Route: "/svc/fail"})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	resp, err := DecodeResponse(dc.sentMessages[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Trailers["grpc-status"] != "5" {
		t.Errorf("grpc-status = %q, want 5 (NotFound)", resp.Trailers["grpc-status"])
	}
	if !strings.Contains(resp.Trailers["grpc-message"], "no such thing") {
		t.Errorf("grpc-message = %q, want it to contain the handler's message", resp.Trailers["grpc-message"])
	}
}

func TestServerFreezesRegistryOnStart(t *testing.T) {
	dc := newMockDataChannel()
	app := newTestApp(t)
	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	_, err := registry.NewService("late", registry.NewMethod("m", nil, nil))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if err := app.AddService(registry.ServiceDesc{Name: "late"}); err == nil {
		t.Error("expected AddService after Start to fail (registry frozen)")
	}
}

func TestServerOnCloseCallback(t *testing.T) {
	dc := newMockDataChannel()
	app := newTestApp(t)
	srv := newServerWithInterface(dc, app, nil)

	called := false
	srv.OnClose(func() { called = true })
	srv.Start()

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !called {
		t.Error("expected OnClose callback to fire")
	}
	if !dc.closed {
		t.Error("expected underlying data channel to be closed")
	}
}

func TestServerDropsResponsesAfterClose(t *testing.T) {
	dc := newMockDataChannel()
	app := newTestApp(t)
	srv := newServerWithInterface(dc, app, nil)
	srv.Start()

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	wire, err := EncodeRequest(RequestEnvelope{Route: "/echo/call", Message: []byte("x")})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	if len(dc.sentMessages) != 0 {
		t.Errorf("expected no messages sent after close, got %d", len(dc.sentMessages))
	}
}

func TestServerDefaultTimeoutApplied(t *testing.T) {
	dc := newMockDataChannel()

	svc, err := registry.NewService("slow", registry.NewMethod("call", nil, nil))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	app, err := registry.NewApp(svc)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	err = app.Register("/slow/call", func(ctx context.Context, req any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := newServerWithInterface(dc, app, &Options{DefaultTimeout: 10 * time.Millisecond})
	srv.Start()

	wire, err := EncodeRequest(RequestEnvelope{Route: "/slow/call"})
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	dc.simulate(wire)

	resp, err := DecodeResponse(dc.sentMessages[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Trailers["grpc-status"] != "4" {
		t.Errorf("grpc-status = %q, want 4 (DeadlineExceeded)", resp.Trailers["grpc-status"])
	}
}
