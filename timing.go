package st2110

import (
	"math"
	"sync"
)

// DefaultTROModification is the default number of packet-transmission-time
// units subtracted from the standard timing reference offset. It trades the
// burst gap ahead of the frame start against linear/gapped pacing.
const DefaultTROModification = 4

// TimingCell is the per-stream mutable timing state shared between a stream's
// sender and the Synchronizer. The sender owns it between loop boundaries;
// the Synchronizer writes it only during a scoped release.
type TimingCell struct {
	mu       sync.Mutex
	nextSend float64 // next frame/field/stride send time, ns since epoch
	tick     float64 // running RTP timestamp accumulator; float to absorb fractional tick rates
	field    int     // 0/1 interlace field polarity
}

// NextSend returns the scheduled send time of the next frame/field in ns.
func (c *TimingCell) NextSend() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSend
}

// SetNextSend replaces the scheduled send time.
func (c *TimingCell) SetNextSend(ns float64) {
	c.mu.Lock()
	c.nextSend = ns
	c.mu.Unlock()
}

// AdvanceNextSend moves the scheduled send time forward by d ns.
func (c *TimingCell) AdvanceNextSend(d float64) {
	c.mu.Lock()
	c.nextSend += d
	c.mu.Unlock()
}

// Tick returns the running RTP timestamp accumulator.
func (c *TimingCell) Tick() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// SetTick replaces the RTP timestamp accumulator.
func (c *TimingCell) SetTick(t float64) {
	c.mu.Lock()
	c.tick = t
	c.mu.Unlock()
}

// AdvanceTick moves the RTP timestamp accumulator forward by d ticks.
func (c *TimingCell) AdvanceTick(d float64) {
	c.mu.Lock()
	c.tick += d
	c.mu.Unlock()
}

// Field returns the current interlace field polarity (0 or 1).
func (c *TimingCell) Field() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.field
}

// FlipField toggles the interlace field polarity.
func (c *TimingCell) FlipField() {
	c.mu.Lock()
	c.field ^= 1
	c.mu.Unlock()
}

// SetField sets the interlace field polarity.
func (c *TimingCell) SetField(f int) {
	c.mu.Lock()
	c.field = f & 1
	c.mu.Unlock()
}

// StreamTimeCalculator computes the next frame/field start time aligned to
// the global frame clock, minus the ST 2110-21 timing reference offset (TRO)
// for video. It is invoked once at session start and once per loop restart;
// per-packet and per-frame advancement is the packetizers' and senders' job.
type StreamTimeCalculator struct {
	unitNS float64 // frame interval, or field interval when interlaced
	troNS  float64
	trsNS  float64 // packet transmission time for linear pacing (video only)
	media  MediaClock
}

// troClass is one row of the ST 2110-21 receiver-class table: the active-
// region ratio and the TRO_DEFAULT numerator for a resolution/scan class.
type troClass struct {
	rActive float64
	troMult float64
}

func lookupTROClass(height int, interlaced bool) troClass {
	if !interlaced {
		if height >= 1080 {
			return troClass{rActive: 1080.0 / 1125.0, troMult: 43.0 / 1125.0}
		}
		return troClass{rActive: 1080.0 / 1125.0, troMult: 28.0 / 750.0}
	}
	switch {
	case height >= 1080:
		return troClass{rActive: 1080.0 / 1125.0, troMult: 22.0 / 1125.0}
	case height >= 576:
		return troClass{rActive: 576.0 / 625.0, troMult: 26.0 / 625.0}
	default:
		return troClass{rActive: 487.0 / 525.0, troMult: 20.0 / 525.0}
	}
}

// NewVideoTimeCalculator builds the calculator for a video stream.
// packetsPerFrameField must match the stream's PacketPlan; troModification
// is the number of trs units subtracted from TRO_DEFAULT (DefaultTROModification
// when negative).
func NewVideoTimeCalculator(d *VideoDescriptor, packetsPerFrameField int, troModification int) *StreamTimeCalculator {
	if troModification < 0 {
		troModification = DefaultTROModification
	}
	unit := d.FrameRate.FrameDurationNS() / float64(d.FieldsPerFrame())
	cls := lookupTROClass(d.Height, d.Interlaced)
	trs := unit * cls.rActive / float64(packetsPerFrameField)
	tro := cls.troMult*unit - float64(troModification)*trs
	if tro < 0 {
		tro = 0
	}
	return &StreamTimeCalculator{
		unitNS: unit,
		troNS:  tro,
		trsNS:  trs,
		media:  MediaClock{Rate: VideoClockRate},
	}
}

// NewAudioTimeCalculator builds the calculator for an audio stream. Audio has
// no timing reference offset; packets align to ptime boundaries.
func NewAudioTimeCalculator(d *AudioDescriptor) *StreamTimeCalculator {
	return &StreamTimeCalculator{
		unitNS: float64(d.PTimeUS) * 1e3,
		media:  MediaClock{Rate: uint32(d.SampleRate)},
	}
}

// NewAncTimeCalculator builds the calculator for an ancillary stream, which
// follows the video frame/field cadence without a TRO.
func NewAncTimeCalculator(d *AncDescriptor) *StreamTimeCalculator {
	unit := d.FrameRate.FrameDurationNS() / float64(d.FieldsPerFrame())
	return &StreamTimeCalculator{
		unitNS: unit,
		media:  MediaClock{Rate: VideoClockRate},
	}
}

// UnitNS returns the frame/field/stride interval in nanoseconds.
func (c *StreamTimeCalculator) UnitNS() float64 { return c.unitNS }

// TRONS returns the timing reference offset in nanoseconds.
func (c *StreamTimeCalculator) TRONS() float64 { return c.troNS }

// TRSNS returns the packet transmission time in nanoseconds, the spacing
// between consecutive packets of one frame under linear pacing.
func (c *StreamTimeCalculator) TRSNS() float64 { return c.trsNS }

// Next returns the send time of the first packet of the next frame/field
// boundary after nowNS: the boundary N = floor(now/unit)+1, minus the TRO.
func (c *StreamTimeCalculator) Next(nowNS int64) float64 {
	n := math.Floor(float64(nowNS)/c.unitNS) + 1
	return n*c.unitNS - c.troNS
}

// Apply computes Next and writes both the send time and the RTP timestamp
// tick for the frame's nominal start into the cell.
func (c *StreamTimeCalculator) Apply(nowNS int64, cell *TimingCell) float64 {
	t := c.Next(nowNS)
	cell.SetNextSend(t)
	cell.SetTick(c.media.TicksAtF(t + c.troNS))
	return t
}
