package metadata

import (
	"encoding/base64"
	"strings"

	"github.com/spiral/errors"
)

const binSuffix = "-bin"

// RemoveBinValues applies the -bin transformation to a single metadata
// pair. A []byte value is always suffixed. A string value is suffixed only
// if it contains a non-ASCII codepoint. A []string or [][]byte value is
// suffixed only if any element requires it; in that case every element is
// base64-encoded into a []string, even the ones that were already ASCII.
// Values of any other type are returned unchanged.
//
// ASCII-only inputs round-trip unchanged - callers must not re-run this on
// a key that already carries the -bin suffix, or the suffix is applied
// twice. That is a caller bug, not something this function guards against.
func RemoveBinValues(key string, value any) (string, any, error) {
	switch v := value.(type) {
	case []byte:
		return key + binSuffix, base64.StdEncoding.EncodeToString(v), nil

	case string:
		if !isASCII(v) {
			return key + binSuffix, base64.StdEncoding.EncodeToString([]byte(v)), nil
		}
		return key, v, nil

	case []string:
		needsBin := false
		for _, s := range v {
			if !isASCII(s) {
				needsBin = true
				break
			}
		}
		if !needsBin {
			return key, v, nil
		}
		encoded := make([]string, len(v))
		for i, s := range v {
			encoded[i] = base64.StdEncoding.EncodeToString([]byte(s))
		}
		return key + binSuffix, encoded, nil

	case [][]byte:
		if len(v) == 0 {
			return key, v, nil
		}
		encoded := make([]string, len(v))
		for i, b := range v {
			encoded[i] = base64.StdEncoding.EncodeToString(b)
		}
		return key + binSuffix, encoded, nil

	default:
		return key, value, nil
	}
}

// RestoreBinValue is the documented inverse of RemoveBinValues. If key does
// not carry the -bin suffix, it is returned unchanged alongside value. If
// it does, the suffix is stripped and value is base64-decoded: a string
// decodes to a []byte, a []string decodes to a [][]byte.
func RestoreBinValue(key string, value any) (string, any, error) {
	const op = errors.Op("metadata: restore bin value")

	if !strings.HasSuffix(key, binSuffix) {
		return key, value, nil
	}
	restoredKey := strings.TrimSuffix(key, binSuffix)

	switch v := value.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return "", nil, errors.E(op, err)
		}
		return restoredKey, decoded, nil

	case []string:
		decoded := make([][]byte, len(v))
		for i, s := range v {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return "", nil, errors.E(op, err)
			}
			decoded[i] = b
		}
		return restoredKey, decoded, nil

	default:
		return "", nil, errors.E(op, errors.Str("-bin value must be a string or []string"))
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
