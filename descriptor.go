package st2110

import (
	"errors"
	"fmt"
	"net"
)

// Configuration errors are detected at session setup, before any goroutine
// starts, and are fatal for the session.
var (
	ErrUnsupportedFormat = errors.New("st2110: unsupported pixel format")
	ErrBadDescriptor     = errors.New("st2110: invalid stream descriptor")
)

// VideoDescriptor holds the immutable attributes of one ST 2110-20 video
// stream, derived once from the session description and the source.
type VideoDescriptor struct {
	Width       int
	Height      int // full frame lines, including both fields when interlaced
	FrameRate   Rational
	Format      PixelFormat
	Interlaced  bool
	PayloadType uint8
	SSRC        uint32
	Dest        *net.UDPAddr // transmit destination from the SDP
}

// FieldsPerFrame returns 2 for interlaced scan, 1 for progressive.
func (d *VideoDescriptor) FieldsPerFrame() int {
	if d.Interlaced {
		return 2
	}
	return 1
}

// FieldHeight returns the lines per transmitted frame/field.
func (d *VideoDescriptor) FieldHeight() int {
	return d.Height / d.FieldsPerFrame()
}

// Validate checks the descriptor against the constraints of the 4:2:2 pixel
// group layout and the RTP header fields.
func (d *VideoDescriptor) Validate() error {
	switch d.Format {
	case PixelFormatYUV422P, PixelFormatUYVY, PixelFormatYUV422P10:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, d.Format)
	}
	if d.Width <= 0 || d.Width%d.Format.PgroupPixels() != 0 {
		return fmt.Errorf("%w: width %d not a pixel-group multiple", ErrBadDescriptor, d.Width)
	}
	if d.Height <= 0 || (d.Interlaced && d.Height%2 != 0) {
		return fmt.Errorf("%w: height %d", ErrBadDescriptor, d.Height)
	}
	if d.FrameRate.IsZero() || d.FrameRate.Den <= 0 {
		return fmt.Errorf("%w: frame rate %v", ErrBadDescriptor, d.FrameRate)
	}
	if d.PayloadType < 96 || d.PayloadType > 127 {
		return fmt.Errorf("%w: dynamic payload type %d out of range", ErrBadDescriptor, d.PayloadType)
	}
	return nil
}

// AudioDescriptor holds the immutable attributes of one ST 2110-30/31 audio
// stream.
type AudioDescriptor struct {
	SampleRate  int
	Channels    int
	BitDepth    int // 16 (L16) or 24 (L24)
	PTimeUS     int64
	PayloadType uint8
	SSRC        uint32
	Dest        *net.UDPAddr
}

// SamplesPerPacket returns the per-channel sample count of one packet stride.
func (d *AudioDescriptor) SamplesPerPacket() int {
	return int(int64(d.SampleRate) * d.PTimeUS / 1e6)
}

// BytesPerSampleFrame returns the size of one sample frame (all channels).
func (d *AudioDescriptor) BytesPerSampleFrame() int {
	return d.Channels * d.BitDepth / 8
}

// StrideBytes returns the payload size of one packet stride.
func (d *AudioDescriptor) StrideBytes() int {
	return d.SamplesPerPacket() * d.Channels * d.BitDepth / 8
}

// Validate checks the descriptor for the L16/L24 wire formats.
func (d *AudioDescriptor) Validate() error {
	if d.SampleRate <= 0 || d.Channels <= 0 {
		return fmt.Errorf("%w: audio rate/channels %d/%d", ErrBadDescriptor, d.SampleRate, d.Channels)
	}
	if d.BitDepth != 16 && d.BitDepth != 24 {
		return fmt.Errorf("%w: audio bit depth %d", ErrBadDescriptor, d.BitDepth)
	}
	if d.PTimeUS <= 0 || d.SamplesPerPacket() == 0 {
		return fmt.Errorf("%w: ptime %dus", ErrBadDescriptor, d.PTimeUS)
	}
	if d.PayloadType < 96 || d.PayloadType > 127 {
		return fmt.Errorf("%w: dynamic payload type %d out of range", ErrBadDescriptor, d.PayloadType)
	}
	return nil
}

// AncDescriptor holds the immutable attributes of one ST 2110-40 ancillary
// stream. The frame rate and scan type mirror the video stream so field
// polarity stays correlated.
type AncDescriptor struct {
	DID         uint8
	SDID        uint8
	FrameRate   Rational
	Interlaced  bool
	PayloadType uint8
	SSRC        uint32
	Dest        *net.UDPAddr
}

// FieldsPerFrame returns 2 for interlaced scan, 1 for progressive.
func (d *AncDescriptor) FieldsPerFrame() int {
	if d.Interlaced {
		return 2
	}
	return 1
}

// Validate checks the descriptor.
func (d *AncDescriptor) Validate() error {
	if d.FrameRate.IsZero() || d.FrameRate.Den <= 0 {
		return fmt.Errorf("%w: frame rate %v", ErrBadDescriptor, d.FrameRate)
	}
	if d.PayloadType < 96 || d.PayloadType > 127 {
		return fmt.Errorf("%w: dynamic payload type %d out of range", ErrBadDescriptor, d.PayloadType)
	}
	return nil
}

// SessionDescription aggregates the per-media descriptors parsed from one
// SDP document. Nil members mean the media type is absent.
type SessionDescription struct {
	Video *VideoDescriptor
	Audio *AudioDescriptor
	Anc   *AncDescriptor
}
