package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/spiral/errors"
)

// Encoder frames a sequence of application messages onto an io.Writer, one
// frame per call to Encode. The marshal callback can be swapped mid-stream
// with SetMarshal, which lets a server defer codec selection until a route
// has been resolved.
type Encoder struct {
	w       io.Writer
	marshal Marshaler
}

// NewEncoder returns an Encoder writing frames to w using marshal, which
// may be nil for raw []byte passthrough.
func NewEncoder(w io.Writer, marshal Marshaler) *Encoder {
	return &Encoder{w: w, marshal: marshal}
}

// SetMarshal swaps the marshal callback used by subsequent Encode calls.
func (e *Encoder) SetMarshal(marshal Marshaler) {
	e.marshal = marshal
}

// Encode frames message and writes it to the underlying writer. A marshal
// failure returns an error and writes nothing for this call; the Encoder
// remains usable for the next message.
func (e *Encoder) Encode(message any) error {
	const op = errors.Op("codec: encoder encode")

	frame, err := EncodeMessage(e.marshal, message)
	if err != nil {
		return errors.E(op, err)
	}

	if _, err := e.w.Write(frame); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Decoder incrementally decodes a byte stream into a sequence of
// application messages, buffering bytes until a complete frame has
// arrived. It is not safe for concurrent use; each instance is bound to a
// single RPC stream.
type Decoder struct {
	buf       bytes.Buffer
	unmarshal Unmarshaler
}

// NewDecoder returns a Decoder that applies unmarshal to each frame's
// payload. unmarshal may be nil, in which case raw payloads are emitted.
func NewDecoder(unmarshal Unmarshaler) *Decoder {
	return &Decoder{unmarshal: unmarshal}
}

// SetUnmarshal swaps the unmarshal callback used by subsequent Feed calls.
func (d *Decoder) SetUnmarshal(unmarshal Unmarshaler) {
	d.unmarshal = unmarshal
}

// Feed appends chunk to the internal buffer and drains every complete frame
// currently available, returning the decoded messages in order. A single
// call may contain multiple frames; all of them are drained before Feed
// returns. An unmarshal failure is returned immediately and no further
// frames in chunk are decoded on this call.
func (d *Decoder) Feed(chunk []byte) ([]any, error) {
	const op = errors.Op("codec: decoder feed")

	if len(chunk) > 0 {
		d.buf.Write(chunk)
	}

	var out []any
	for {
		buffered := d.buf.Bytes()
		if len(buffered) < HeaderSize {
			return out, nil
		}

		length := binary.BigEndian.Uint32(buffered[1:HeaderSize])
		frameEnd := HeaderSize + int(length)
		if len(buffered) < frameEnd {
			return out, nil
		}

		frame := buffered[:frameEnd]
		msg, err := DecodeMessage(d.unmarshal, frame)
		if err != nil {
			// Drop the failing frame so a caller that chooses to continue
			// doesn't spin on the same bytes forever.
			d.buf.Next(frameEnd)
			return out, errors.E(op, err)
		}

		d.buf.Next(frameEnd)
		out = append(out, msg)
	}
}

// Flush signals stream termination. Any buffered bytes must already form a
// complete frame (an empty buffer is fine); otherwise the stream is
// reporting a framing failure - a peer closed mid-frame.
func (d *Decoder) Flush() error {
	const op = errors.Op("codec: decoder flush")

	if d.buf.Len() == 0 {
		return nil
	}
	return errors.E(op, errors.Str("stream closed with a partial frame buffered"))
}
