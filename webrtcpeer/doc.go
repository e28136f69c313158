// Package webrtcpeer establishes the WebRTC DataChannel substrate that
// transport.Server and transport.NewServer ride on. It wraps
// github.com/pion/webrtc/v4 peer connection setup, ICE candidate relay
// through a signaling.Client, and SDP offer/answer negotiation, so callers
// can go from "have a signaling session" to "have a *webrtc.DataChannel"
// without touching pion directly.
package webrtcpeer
