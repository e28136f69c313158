package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/framewire/framewire/examples/echo"
	"github.com/framewire/framewire/reflection"
	"github.com/framewire/framewire/registry"
	"github.com/framewire/framewire/signaling"
	"github.com/framewire/framewire/transport"
	"github.com/framewire/framewire/webrtcpeer"
)

var serveAppName string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the example services over a signaling-negotiated DataChannel",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAppName, "app-name", "framewire-interop", "application name to register with the signaling server")
}

func buildApp() (*registry.App, error) {
	app, err := registry.NewApp()
	if err != nil {
		return nil, err
	}
	if err := echo.Register(app); err != nil {
		return nil, err
	}
	if err := reflection.Register(app, app); err != nil {
		return nil, err
	}
	return app, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	credPath := viper.GetString("credentials")
	creds, err := signaling.LoadCredentials(credPath)
	if err != nil {
		return err
	}

	handler := &serveHandler{
		logger:      logger,
		peers:       make(map[string]*webrtcpeer.Peer),
		defaultOpts: &transport.Options{DefaultTimeout: viper.GetDuration("timeout"), Logger: logger},
	}

	client := signaling.NewClient(signaling.Config{
		ServerURL:    viper.GetString("server"),
		APIKey:       creds.APIKey,
		AppName:      serveAppName,
		Capabilities: []string{"rpc", "echo", "reflection"},
		Handler:      handler,
		Logger:       logger,
	})
	handler.client = client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	logger.Info("interop server running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	handler.closeAll()
	return nil
}

// serveHandler implements signaling.EventHandler, bridging offers arriving
// over the signaling session into webrtcpeer.Peer instances, each carrying
// its own transport.Server once the DataChannel opens.
type serveHandler struct {
	logger      *zap.Logger
	client      *signaling.Client
	peers       map[string]*webrtcpeer.Peer
	defaultOpts *transport.Options
}

func (h *serveHandler) OnAuthenticated(payload signaling.AuthOKPayload) {
	h.logger.Info("authenticated", zap.String("userId", payload.UserID))
}

func (h *serveHandler) OnAuthError(payload signaling.AuthErrorPayload) {
	h.logger.Error("authentication failed", zap.String("error", payload.Error))
}

func (h *serveHandler) OnAppRegistered(payload signaling.AppRegisteredPayload) {
	h.logger.Info("app registered", zap.String("appId", payload.AppID))
}

func (h *serveHandler) OnOffer(sdp string, requestID string) {
	h.logger.Info("received offer", zap.String("requestId", requestID))

	dcHandler := &dataChannelOpenHandler{logger: h.logger, opts: h.defaultOpts}

	peer, err := webrtcpeer.New(webrtcpeer.Config{
		Relay:   h.client,
		Handler: dcHandler,
		Logger:  h.logger,
	})
	if err != nil {
		h.logger.Error("failed to create peer", zap.Error(err))
		return
	}
	dcHandler.peer = peer
	h.peers[requestID] = peer

	if err := peer.HandleOffer(sdp, requestID); err != nil {
		h.logger.Error("failed to handle offer", zap.Error(err))
		return
	}
}

func (h *serveHandler) OnAnswer(sdp string, appID string) {}

func (h *serveHandler) OnICE(candidate json.RawMessage) {}

func (h *serveHandler) OnError(message string) {
	h.logger.Warn("signaling error", zap.String("message", message))
}

func (h *serveHandler) OnConnected() {
	h.logger.Info("connected to signaling server")
}

func (h *serveHandler) OnDisconnected() {
	h.logger.Info("disconnected from signaling server")
}

func (h *serveHandler) closeAll() {
	for id, peer := range h.peers {
		h.logger.Info("closing peer", zap.String("requestId", id))
		peer.Close()
	}
}

// dataChannelOpenHandler sets up a fresh transport.Server as soon as a
// peer's DataChannel opens; app/route registration happens once per
// connection so each interop session gets an independently frozen registry.
type dataChannelOpenHandler struct {
	logger *zap.Logger
	opts   *transport.Options
	peer   *webrtcpeer.Peer
	server *transport.Server
}

func (h *dataChannelOpenHandler) OnOpen() {
	dc := h.peer.DataChannel()
	if dc == nil {
		h.logger.Error("data channel opened but not yet bound")
		return
	}

	app, err := buildApp()
	if err != nil {
		h.logger.Error("failed to build registry", zap.Error(err))
		return
	}

	h.server = transport.NewServer(dc, app, h.opts)
	h.server.Start()
	h.logger.Info("transport server started")
}

func (h *dataChannelOpenHandler) OnClose() {
	h.logger.Info("data channel closed")
}

func (h *dataChannelOpenHandler) OnMessage(data []byte) {
	// Messages are handled by transport.Server once Start replaces the
	// DataChannel's OnMessage callback; nothing arrives here afterward.
}
