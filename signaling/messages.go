package signaling

import "encoding/json"

// Message is the envelope every WebSocket frame carries. Payload is kept
// raw so handleMessage can dispatch on Type before picking the concrete
// payload type to decode into.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"requestId,omitempty"`
}

// AuthPayload authenticates the connection, either by API key (device/app
// flow) or bearer session token (browser flow).
type AuthPayload struct {
	APIKey string `json:"apiKey,omitempty"`
	Token  string `json:"token,omitempty"`
}

// AuthOKPayload is the server's response to successful authentication.
type AuthOKPayload struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
}

// AuthErrorPayload is the server's response to failed authentication.
type AuthErrorPayload struct {
	Error string `json:"error"`
}

// AppRegisterPayload registers this client as a named app with the given
// capabilities.
type AppRegisterPayload struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// AppRegisteredPayload is the server's acknowledgement of registration.
type AppRegisteredPayload struct {
	AppID string `json:"appId"`
}

// AppStatusPayload reports an app's online/offline transition.
type AppStatusPayload struct {
	AppID        string   `json:"appId"`
	Name         string   `json:"name,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Status       string   `json:"status"`
}

// OfferPayload carries a WebRTC SDP offer.
type OfferPayload struct {
	SDP         string `json:"sdp"`
	TargetAppID string `json:"targetAppId,omitempty"`
}

// AnswerPayload carries a WebRTC SDP answer.
type AnswerPayload struct {
	SDP   string `json:"sdp"`
	AppID string `json:"appId,omitempty"`
}

// ICEPayload carries an ICE candidate.
type ICEPayload struct {
	Candidate   json.RawMessage `json:"candidate"`
	TargetAppID string          `json:"targetAppId,omitempty"`
	AppID       string          `json:"appId,omitempty"`
}

// ErrorPayload carries a server-reported error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// AppsListPayload lists every currently registered app.
type AppsListPayload struct {
	Apps []AppInfo `json:"apps"`
}

// AppInfo describes one registered app.
type AppInfo struct {
	AppID  string `json:"appId"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Message type discriminators.
const (
	MsgTypeAuth      = "auth"
	MsgTypeAuthOK    = "auth_ok"
	MsgTypeAuthError = "auth_error"

	MsgTypeAppRegister   = "app_register"
	MsgTypeAppRegistered = "app_registered"
	MsgTypeAppStatus     = "app_status"
	MsgTypeGetApps       = "get_apps"
	MsgTypeAppsList      = "apps_list"

	MsgTypeOffer  = "offer"
	MsgTypeAnswer = "answer"
	MsgTypeICE    = "ice"

	MsgTypeError = "error"
)
