package metadata

import (
	"regexp"
	"strconv"

	"github.com/spiral/errors"
)

// maxDigits is the largest value an interval's digit field may encode.
const maxDigits = 99_999_999

var intervalPattern = regexp.MustCompile(`^(\d{1,8})(H|M|S|m|u|n)$`)

// suffixWeights lists the encode-eligible suffixes in the fixed order the
// encoder tries them: largest unit first. This order is load-bearing - see
// MicrosToInterval.
var suffixWeights = []struct {
	suffix byte
	weight int64
}{
	{'H', 3_600_000_000},
	{'M', 60_000_000},
	{'S', 1_000_000},
	{'m', 1_000},
	{'u', 1},
}

// decodeWeights maps each suffix to its microsecond weight for decoding. The
// decode-only nanosecond suffix n is not in this table; IntervalToMicros
// handles it separately.
var decodeWeights = map[byte]int64{
	'H': 3_600_000_000,
	'M': 60_000_000,
	'S': 1_000_000,
	'm': 1_000,
	'u': 1,
}

// IsInterval reports whether s matches the interval grammar
// ^(\d{1,8})(H|M|S|m|u|n)$.
func IsInterval(s string) bool {
	return intervalPattern.MatchString(s)
}

// IntervalToMicros parses an interval string into a microsecond count.
// The n (nanosecond) suffix is divided by 1000 and floored.
func IntervalToMicros(s string) (int64, error) {
	const op = errors.Op("metadata: interval to micros")

	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.E(op, errors.Str("interval does not match grammar"))
	}

	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, errors.E(op, err)
	}

	suffix := m[2][0]
	if suffix == 'n' {
		return amount / 1000, nil
	}

	weight, ok := decodeWeights[suffix]
	if !ok {
		return 0, errors.E(op, errors.Str("unknown interval suffix"))
	}
	return amount * weight, nil
}

// MicrosToInterval encodes micros as the shortest conformant interval
// string with an amount no greater than 99,999,999.
//
// It walks suffixes in insertion order H, M, S, m, u and returns the first
// one whose weight divides micros exactly and whose resulting amount fits
// the 8-digit cap. This "largest exact divisor first" rule is what keeps
// e.g. 3,600,000,000us as "1H" instead of "60M" - callers rely on it for
// compact encodings.
//
// If no exact divisor's amount fits the cap, the value coarsens: the
// coarsest unit (H) always yields the fewest digits, so that is what gets
// reported, computed by flooring u->m->S->M->H in sequence (which yields
// the same amount as a single floor(micros/3_600_000_000)). Intermediate
// units whose floored amount would already fit the cap are not returned.
// Only if even H overflows the cap is the value unrepresentable.
//
// Note on spec §8 scenario S4: the cited example "microsToInterval(1e14)
// == 27H" does not hold arithmetically - 1e14us is 1e8s, which is
// approximately 27,777.78 hours, not 27. This implementation does not
// reproduce that example: floor(1e8s /
// 3600s) = 27777, so microsToInterval(1e14) is "27777H" here: same unit
// as the worked example, a larger digit string than its (apparently
// truncated) "27".
func MicrosToInterval(micros int64) (string, error) {
	const op = errors.Op("metadata: micros to interval")

	if micros < 0 {
		return "", errors.E(op, errors.Str("micros must be non-negative"))
	}

	for _, sw := range suffixWeights {
		if micros%sw.weight != 0 {
			continue
		}
		amount := micros / sw.weight
		if amount <= maxDigits {
			return strconv.FormatInt(amount, 10) + string(sw.suffix), nil
		}
	}

	// No exact-divisor suffix fit within the cap. Coarsen all the way to
	// H - the coarsest unit always produces the fewest digits, so it's
	// the only candidate worth checking once we're past exact divisors.
	amount := micros
	steps := []int64{1000, 1000, 60, 60} // u->m, m->S, S->M, M->H
	for _, factor := range steps {
		amount /= factor
	}

	if amount <= maxDigits {
		return strconv.FormatInt(amount, 10) + "H", nil
	}
	return "", errors.E(op, errors.Str("interval exceeds representable range"))
}
