// Package transport binds a registry.App and the codec/metadata packages to
// a bidirectional byte-oriented substrate - a WebRTC DataChannel standing in
// for an HTTP/2 stream. It decodes inbound request envelopes, resolves a
// route against the registry, applies a deadline, dispatches to the
// registered handler, and encodes the response envelope back onto the wire.
//
// Requests for routes the registry has no handler for are answered with an
// UNIMPLEMENTED status, mirroring gRPC's codes.Unimplemented.
package transport
