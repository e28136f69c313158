package transport

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/spiral/errors"

	"github.com/framewire/framewire/codec"
	"github.com/framewire/framewire/metadata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RequestEnvelope is sent from client to server. Headers are the raw,
// pre-transform metadata pairs; binary or non-ASCII values are run through
// metadata.RemoveBinValues before they reach the wire.
type RequestEnvelope struct {
	Route    string
	Headers  map[string]string
	Deadline string // interval string, e.g. "30S"; empty means no deadline
	Message  []byte
}

// ResponseEnvelope is received from server.
type ResponseEnvelope struct {
	Headers  map[string]string
	Trailers map[string]string
	Message  []byte
}

type wireEnvelope struct {
	Route    string            `json:"route,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Deadline string            `json:"deadline,omitempty"`
	Trailers map[string]string `json:"trailers,omitempty"`
	Message  []byte            `json:"message"`
}

func marshalEnvelope(v any) ([]byte, error) {
	w := v.(wireEnvelope)
	return json.Marshal(w)
}

func unmarshalEnvelope(data []byte) (any, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return w, nil
}

// EncodeRequest applies the -bin metadata transform to every header and
// frames the result through the codec package's one-shot Frame Codec.
func EncodeRequest(env RequestEnvelope) ([]byte, error) {
	const op = errors.Op("transport: encode request")

	headers, err := transformHeaders(env.Headers)
	if err != nil {
		return nil, errors.E(op, err)
	}

	w := wireEnvelope{Route: env.Route, Headers: headers, Deadline: env.Deadline, Message: env.Message}
	out, err := codec.EncodeMessage(marshalEnvelope, w)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return out, nil
}

// DecodeRequest reverses EncodeRequest, restoring -bin headers back to
// their original form.
func DecodeRequest(data []byte) (*RequestEnvelope, error) {
	const op = errors.Op("transport: decode request")

	v, err := codec.DecodeMessage(unmarshalEnvelope, data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	w := v.(wireEnvelope)

	headers, err := restoreHeaders(w.Headers)
	if err != nil {
		return nil, errors.E(op, err)
	}

	return &RequestEnvelope{Route: w.Route, Headers: headers, Deadline: w.Deadline, Message: w.Message}, nil
}

// EncodeResponse applies the -bin metadata transform to every header and
// frames the result through the codec package's one-shot Frame Codec.
func EncodeResponse(env ResponseEnvelope) ([]byte, error) {
	const op = errors.Op("transport: encode response")

	headers, err := transformHeaders(env.Headers)
	if err != nil {
		return nil, errors.E(op, err)
	}

	w := wireEnvelope{Headers: headers, Trailers: env.Trailers, Message: env.Message}
	out, err := codec.EncodeMessage(marshalEnvelope, w)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return out, nil
}

// DecodeResponse reverses EncodeResponse.
func DecodeResponse(data []byte) (*ResponseEnvelope, error) {
	const op = errors.Op("transport: decode response")

	v, err := codec.DecodeMessage(unmarshalEnvelope, data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	w := v.(wireEnvelope)

	headers, err := restoreHeaders(w.Headers)
	if err != nil {
		return nil, errors.E(op, err)
	}

	return &ResponseEnvelope{Headers: headers, Trailers: w.Trailers, Message: w.Message}, nil
}

// transformHeaders runs every header value through metadata.RemoveBinValues
// and flattens the (possibly re-keyed) result back into a string map, since
// the wire envelope transports only string-valued headers.
func transformHeaders(headers map[string]string) (map[string]string, error) {
	if headers == nil {
		return nil, nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		newKey, newValue, err := metadata.RemoveBinValues(k, v)
		if err != nil {
			return nil, err
		}
		out[newKey] = newValue.(string)
	}
	return out, nil
}

// restoreHeaders is the best-effort inverse of transformHeaders for the
// string-valued case: any -bin key is restored to raw bytes and
// re-stringified, since the envelope's wire format carries strings only.
func restoreHeaders(headers map[string]string) (map[string]string, error) {
	if headers == nil {
		return nil, nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		newKey, newValue, err := metadata.RestoreBinValue(k, v)
		if err != nil {
			return nil, err
		}
		switch nv := newValue.(type) {
		case string:
			out[newKey] = nv
		case []byte:
			out[newKey] = string(nv)
		}
	}
	return out, nil
}
