package codec

import (
	"encoding/binary"

	"github.com/spiral/errors"
)

// HeaderSize is the size of a frame header: 1 byte of flags plus a 4 byte
// big-endian payload length.
const HeaderSize = 5

// CompressionIdentity is the only compression flag this core ever writes.
// Bit 0 of the flags byte is reserved for a compression scheme defined by
// an external collaborator; this package is opaque to anything else.
const CompressionIdentity byte = 0x00

// Marshaler converts an application message to its wire bytes.
type Marshaler func(v any) ([]byte, error)

// Unmarshaler converts wire bytes back into an application message.
type Unmarshaler func(data []byte) (any, error)

// EncodeMessage frames a single application message.
//
// If marshal is nil, message must already be a []byte and is framed
// unchanged. A 5-byte header is prepended: byte 0 is the compression flag
// (always CompressionIdentity here), bytes 1-4 are the big-endian payload
// length.
func EncodeMessage(marshal Marshaler, message any) ([]byte, error) {
	const op = errors.Op("codec: encode message")

	payload, err := marshalPayload(marshal, message)
	if err != nil {
		return nil, errors.E(op, err)
	}

	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = CompressionIdentity
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(payload))) //nolint:gosec
	copy(buf[HeaderSize:], payload)

	return buf, nil
}

func marshalPayload(marshal Marshaler, message any) ([]byte, error) {
	const op = errors.Op("codec: marshal payload")

	if marshal == nil {
		b, ok := message.([]byte)
		if !ok {
			return nil, errors.E(op, errors.Str("no marshal callback and message is not []byte"))
		}
		return b, nil
	}

	b, err := marshal(message)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return b, nil
}

// DecodeMessage decodes a single framed message.
//
// It fails with an out-of-range error if data is shorter than HeaderSize.
// Under identity compression (flags&1 == 0) the remaining bytes after the
// header must equal the encoded length exactly, or decoding fails. A
// non-zero compression flag bypasses that length check, matching the
// reference behavior this core preserves rather than redefines: the core
// does not know how to decompress, so it passes every byte after the header
// to the unmarshal step and ignores the declared length.
//
// If unmarshal is nil, the raw payload is returned as a []byte.
func DecodeMessage(unmarshal Unmarshaler, data []byte) (any, error) {
	const op = errors.Op("codec: decode message")

	if len(data) < HeaderSize {
		return nil, errors.E(op, errors.Str("frame shorter than header size"))
	}

	flags := data[0]
	length := binary.BigEndian.Uint32(data[1:HeaderSize])
	payload := data[HeaderSize:]

	if flags&0x01 == CompressionIdentity {
		if uint32(len(payload)) != length { //nolint:gosec
			return nil, errors.E(op, errors.Str("declared length does not match payload size"))
		}
	}

	if unmarshal == nil {
		return payload, nil
	}

	v, err := unmarshal(payload)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return v, nil
}
