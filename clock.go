package st2110

import "time"

// Clock supplies the wall-clock time used for send scheduling. Injecting it
// keeps the timing code testable with a synthetic clock.
type Clock interface {
	// NowNS returns the current UTC time in nanoseconds since the epoch.
	NowNS() int64
}

// SystemClock reads the operating system clock.
type SystemClock struct{}

func (SystemClock) NowNS() int64 { return time.Now().UnixNano() }

// MediaClock converts wall-clock nanoseconds into RTP timestamp ticks at a
// fixed rate, wrapping modulo 2^32 as the RTP timestamp field does.
type MediaClock struct {
	Rate uint32 // ticks per second (90000 for video/anc, sample rate for audio)
}

// TicksAt returns the RTP timestamp corresponding to the instant ns.
// Split integer arithmetic avoids the precision loss of a single float64
// multiply at wall-clock magnitudes.
func (c MediaClock) TicksAt(ns int64) uint32 {
	sec := ns / int64(time.Second)
	rem := ns % int64(time.Second)
	t := uint64(sec)*uint64(c.Rate) + uint64(rem)*uint64(c.Rate)/uint64(time.Second)
	return uint32(t)
}

// TicksAtF is TicksAt without the 32-bit wrap, as a float64, for code that
// accumulates fractional ticks between frames.
func (c MediaClock) TicksAtF(ns float64) float64 {
	return ns * float64(c.Rate) / 1e9
}
