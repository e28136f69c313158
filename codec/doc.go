// Package codec implements the wire framing used to carry application
// messages over a multiplexed RPC stream.
//
// A framed message is the byte sequence:
//
//	[flags:1][length:4 big-endian][payload:length]
//
// Bit 0 of flags is reserved for a compression scheme this package does not
// implement; the core always writes 0 and only special-cases a non-zero
// value the way the reference implementation does (see the doc comment on
// DecodeMessage).
//
// Two layers are provided. EncodeMessage/DecodeMessage frame a single
// message. Encoder/Decoder frame a stream of messages incrementally,
// buffering partial frames until enough bytes have arrived.
package codec
