// Package signaling implements the external authentication token
// acquisition collaborator: a WebSocket-based session client that
// authenticates against a signaling server, registers an application, and
// relays WebRTC offer/answer/ICE exchanges to the webrtcpeer package.
//
// This is a thin client, not a core component: auth token issuance and the
// signaling protocol it speaks belong to an external server this runtime
// does not define.
package signaling
