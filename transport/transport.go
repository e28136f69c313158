package transport

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/spiral/errors"
	"go.uber.org/zap"

	"github.com/framewire/framewire/metadata"
	"github.com/framewire/framewire/registry"
)

const requestIDHeader = "x-request-id"
const grpcStatusTrailer = "grpc-status"

// DataChannel abstracts webrtc.DataChannel so the transport can be driven
// by a fake in tests.
type DataChannel interface {
	Send(data []byte) error
	Close() error
	OnMessage(f func(msg webrtc.DataChannelMessage))
	OnClose(f func())
	OnError(f func(err error))
}

type dataChannelAdapter struct {
	dc *webrtc.DataChannel
}

func (a *dataChannelAdapter) Send(data []byte) error { return a.dc.Send(data) }
func (a *dataChannelAdapter) Close() error            { return a.dc.Close() }

func (a *dataChannelAdapter) OnMessage(f func(msg webrtc.DataChannelMessage)) {
	a.dc.OnMessage(f)
}

func (a *dataChannelAdapter) OnClose(f func())          { a.dc.OnClose(f) }
func (a *dataChannelAdapter) OnError(f func(err error)) { a.dc.OnError(f) }

// Options configures a Server.
type Options struct {
	// DefaultTimeout is applied when a request carries no Deadline header.
	// Zero means no timeout is applied in that case.
	DefaultTimeout time.Duration
	Logger         *zap.Logger
	// Metrics is optional; a nil value disables metrics collection.
	Metrics *Metrics
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Server dispatches inbound envelopes over a DataChannel to the handlers
// registered in a registry.App.
type Server struct {
	dc      DataChannel
	app     *registry.App
	opts    *Options
	mu      sync.RWMutex
	closed  bool
	onClose func()
}

// NewServer binds app to dc. app is frozen as soon as Start is called.
func NewServer(dc *webrtc.DataChannel, app *registry.App, opts *Options) *Server {
	return newServerWithInterface(&dataChannelAdapter{dc: dc}, app, opts)
}

func newServerWithInterface(dc DataChannel, app *registry.App, opts *Options) *Server {
	return &Server{dc: dc, app: app, opts: opts.withDefaults()}
}

// OnClose sets a callback invoked when the underlying channel closes.
func (s *Server) OnClose(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = callback
}

// Start freezes the registry and begins listening for inbound requests.
// Call it only after every handler has been registered: if any route still
// lacks a handler, Start logs the missing routes and does not begin serving.
func (s *Server) Start() {
	s.app.Freeze()

	if missing := s.app.MissingRoutes(); len(missing) > 0 {
		s.opts.Logger.Error("registry is incomplete, not serving", zap.Strings("missing", missing))
		return
	}

	s.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.handleMessage(msg.Data)
	})

	s.dc.OnClose(func() {
		s.mu.Lock()
		s.closed = true
		onClose := s.onClose
		s.mu.Unlock()

		if onClose != nil {
			onClose()
		}
	})

	s.dc.OnError(func(err error) {
		s.opts.Logger.Error("data channel error", zap.Error(err))
	})
}

func (s *Server) handleMessage(data []byte) {
	logger := s.opts.Logger
	start := time.Now()

	req, err := DecodeRequest(data)
	if err != nil {
		logger.Warn("failed to decode request", zap.Error(err))
		s.finish("", nil, StatusInvalidArgument, "failed to decode request: "+err.Error(), start)
		return
	}

	requestID := req.Headers[requestIDHeader]
	if requestID == "" {
		requestID = uuid.NewString()
	}
	echo := map[string]string{requestIDHeader: requestID}

	handler, ok := s.app.Handler(req.Route)
	if !ok {
		logger.Info("unimplemented route", zap.String("route", req.Route))
		s.opts.Metrics.RecordUnimplemented()
		s.finish(req.Route, echo, StatusUnimplemented, "method "+req.Route+" is not implemented", start)
		return
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if req.Deadline != "" {
		micros, err := metadata.IntervalToMicros(req.Deadline)
		if err != nil {
			s.finish(req.Route, echo, StatusInvalidArgument, "invalid deadline: "+err.Error(), start)
			return
		}
		ctx, cancel = context.WithTimeout(ctx, time.Duration(micros)*time.Microsecond)
	} else if s.opts.DefaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.opts.DefaultTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	unmarshal, _ := s.app.Unmarshaller(req.Route)
	message, err := decodeMessage(unmarshal, req.Message)
	if err != nil {
		s.finish(req.Route, echo, StatusInvalidArgument, "failed to unmarshal request: "+err.Error(), start)
		return
	}

	resp, err := handler(ctx, message)
	if err != nil {
		code, msg := classifyError(ctx, err)
		logger.Info("handler error", zap.String("route", req.Route), zap.Error(err))
		s.finish(req.Route, echo, code, msg, start)
		return
	}

	marshal, _ := s.app.Marshaller(req.Route)
	payload, err := encodeMessage(marshal, resp)
	if err != nil {
		s.finish(req.Route, echo, StatusInternal, "failed to marshal response: "+err.Error(), start)
		return
	}

	env := ResponseEnvelope{
		Headers:  echo,
		Trailers: map[string]string{grpcStatusTrailer: statusString(StatusOK)},
		Message:  payload,
	}
	s.opts.Metrics.RecordRequest(req.Route, StatusOK, time.Since(start))
	s.send(&env)
}

func classifyError(ctx context.Context, err error) (Status, string) {
	if ctx.Err() == context.DeadlineExceeded {
		return StatusDeadlineExceeded, err.Error()
	}
	if callErr, ok := err.(*CallError); ok {
		return callErr.Code, callErr.Message
	}
	return StatusInternal, err.Error()
}

// finish records the dispatch outcome in metrics and sends the
// corresponding (possibly error) response envelope.
func (s *Server) finish(route string, headers map[string]string, code Status, message string, start time.Time) {
	s.opts.Metrics.RecordRequest(route, code, time.Since(start))
	env := ResponseEnvelope{
		Headers: headers,
		Trailers: map[string]string{
			grpcStatusTrailer: statusString(code),
			"grpc-message":    message,
		},
	}
	s.send(&env)
}

func statusString(s Status) string {
	return strconv.Itoa(int(s))
}

func (s *Server) send(env *ResponseEnvelope) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		s.opts.Logger.Warn("dropping response on closed transport")
		return
	}

	data, err := EncodeResponse(*env)
	if err != nil {
		s.opts.Logger.Error("failed to encode response", zap.Error(err))
		return
	}
	if err := s.dc.Send(data); err != nil {
		s.opts.Logger.Error("failed to send response", zap.Error(err))
	}
}

// Close closes the transport and its underlying DataChannel.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return s.dc.Close()
}

func decodeMessage(unmarshal func(data []byte) (any, error), data []byte) (any, error) {
	const op = errors.Op("transport: decode message")
	if unmarshal == nil {
		return data, nil
	}
	v, err := unmarshal(data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return v, nil
}

func encodeMessage(marshal func(v any) ([]byte, error), v any) ([]byte, error) {
	const op = errors.Op("transport: encode message")
	if marshal == nil {
		b, ok := v.([]byte)
		if !ok {
			return nil, errors.E(op, errors.Str("no marshal callback and response is not []byte"))
		}
		return b, nil
	}
	b, err := marshal(v)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return b, nil
}
