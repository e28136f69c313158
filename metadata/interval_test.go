package metadata

import "testing"

func TestIsInterval(t *testing.T) {
	valid := []string{"1H", "99999999M", "0S", "500m", "1u", "1000n"}
	for _, s := range valid {
		if !IsInterval(s) {
			t.Errorf("IsInterval(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "H", "1h", "1X", "100000000H", "-1S", "1.5S", "1 H"}
	for _, s := range invalid {
		if IsInterval(s) {
			t.Errorf("IsInterval(%q) = true, want false", s)
		}
	}
}

func TestMicrosToIntervalExactDivisors(t *testing.T) {
	cases := []struct {
		micros int64
		want   string
	}{
		{1_000_000, "1S"},
		{3_600_000_000, "1H"},
		{1, "1u"},
		{60_000_000, "1M"},
		{1_000, "1m"},
		{0, "0H"},
	}

	for _, c := range cases {
		got, err := MicrosToInterval(c.micros)
		if err != nil {
			t.Fatalf("MicrosToInterval(%d) error = %v", c.micros, err)
		}
		if got != c.want {
			t.Errorf("MicrosToInterval(%d) = %q, want %q", c.micros, got, c.want)
		}
	}
}

// TestMicrosToIntervalPrefersLargestUnit exercises the ordering quirk: when
// more than one suffix divides micros exactly, the largest unit wins even
// though a smaller unit would also produce a valid, fitting encoding.
func TestMicrosToIntervalPrefersLargestUnit(t *testing.T) {
	// 3,600,000,000us is exactly 1H and also exactly 60M; H must win.
	got, err := MicrosToInterval(3_600_000_000)
	if err != nil {
		t.Fatalf("MicrosToInterval() error = %v", err)
	}
	if got != "1H" {
		t.Errorf("got %q, want 1H (largest exact divisor first)", got)
	}
}

// TestMicrosToIntervalStepsUpOnOverflow covers the coarsening fallback: the
// largest exact-divisor suffix (S here) produces an amount that overflows
// the 8-digit cap, so the encoder coarsens all the way to H.
func TestMicrosToIntervalStepsUpOnOverflow(t *testing.T) {
	// 10**14 us divides exactly by S's weight (1e6), giving 100,000,000 -
	// one past the 8-digit cap - so the encoder must coarsen to hours:
	// floor(100,000,000 / 3600) = 27777.
	micros := int64(100_000_000_000_000)
	got, err := MicrosToInterval(micros)
	if err != nil {
		t.Fatalf("MicrosToInterval() error = %v", err)
	}
	want := "27777H"
	if got != want {
		t.Errorf("MicrosToInterval(%d) = %q, want %q", micros, got, want)
	}
}

func TestMicrosToIntervalNegativeRejected(t *testing.T) {
	if _, err := MicrosToInterval(-1); err == nil {
		t.Fatal("expected error for negative micros")
	}
}

func TestMicrosToIntervalMaxDigitsBoundary(t *testing.T) {
	got, err := MicrosToInterval(maxDigits)
	if err != nil {
		t.Fatalf("MicrosToInterval() error = %v", err)
	}
	if got != "99999999u" {
		t.Errorf("got %q, want 99999999u", got)
	}
}

func TestIntervalToMicros(t *testing.T) {
	cases := []struct {
		interval string
		want     int64
	}{
		{"500m", 500_000},
		{"1000n", 1},
		{"1H", 3_600_000_000},
		{"1S", 1_000_000},
		{"1u", 1},
		{"2500n", 2},
	}

	for _, c := range cases {
		got, err := IntervalToMicros(c.interval)
		if err != nil {
			t.Fatalf("IntervalToMicros(%q) error = %v", c.interval, err)
		}
		if got != c.want {
			t.Errorf("IntervalToMicros(%q) = %d, want %d", c.interval, got, c.want)
		}
	}
}

func TestIntervalToMicrosInvalidGrammar(t *testing.T) {
	invalid := []string{"", "1h", "1X", "100000000H", "abc"}
	for _, s := range invalid {
		if _, err := IntervalToMicros(s); err == nil {
			t.Errorf("IntervalToMicros(%q) expected error, got nil", s)
		}
	}
}

// TestIntervalRoundTrip checks that every (amount, suffix) pair the encoder
// can produce survives an encode/decode round trip for every suffix except
// the decode-only "n".
func TestIntervalRoundTrip(t *testing.T) {
	for suffix, weight := range decodeWeights {
		for _, amount := range []int64{1, 42, maxDigits} {
			micros := amount * weight
			encoded, err := MicrosToInterval(micros)
			if err != nil {
				t.Fatalf("MicrosToInterval(%d) error = %v", micros, err)
			}

			decoded, err := IntervalToMicros(encoded)
			if err != nil {
				t.Fatalf("IntervalToMicros(%q) error = %v", encoded, err)
			}
			if decoded != micros {
				t.Errorf("round trip for suffix %c amount %d: encoded %q decoded to %d, want %d",
					suffix, amount, encoded, decoded, micros)
			}
		}
	}
}
