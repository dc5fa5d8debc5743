package st2110

import (
	"fmt"
	"strconv"
	"strings"
)

// Rational is an exact ratio of two integers, used for broadcast frame rates
// that have no finite decimal representation (e.g. 30000/1001).
type Rational struct {
	Num int64
	Den int64
}

// NewRational returns num/den. A zero denominator is normalized to 1.
func NewRational(num, den int64) Rational {
	if den == 0 {
		den = 1
	}
	return Rational{Num: num, Den: den}
}

// ParseRational parses "30000/1001" or a plain integer such as "25".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
		}
		d, err := strconv.ParseInt(den, 10, 64)
		if err != nil || d == 0 {
			return Rational{}, fmt.Errorf("invalid rational %q", s)
		}
		return Rational{Num: n, Den: d}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	return Rational{Num: n, Den: 1}, nil
}

// Float returns the ratio as a float64.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsZero reports whether the ratio has a zero numerator.
func (r Rational) IsZero() bool { return r.Num == 0 }

// FrameDurationNS returns the duration of one frame in nanoseconds for a
// frame rate expressed as this ratio.
func (r Rational) FrameDurationNS() float64 {
	if r.Num == 0 {
		return 0
	}
	return 1e9 * float64(r.Den) / float64(r.Num)
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
