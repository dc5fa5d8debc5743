package st2110

import (
	"context"
	"encoding/binary"
	"io"
	"math"
)

// barColor is one SMPTE color bar in 8-bit YCbCr.
type barColor struct{ y, cb, cr uint8 }

// Standard 75% SMPTE bars.
var smpteBars = []barColor{
	{180, 128, 128}, // gray
	{162, 44, 142},  // yellow
	{131, 156, 44},  // cyan
	{112, 72, 58},   // green
	{84, 184, 198},  // magenta
	{65, 100, 212},  // red
	{35, 212, 114},  // blue
	{16, 128, 128},  // black
}

// PatternVideoSourceConfig configures a synthetic color-bars source.
type PatternVideoSourceConfig struct {
	Width     int
	Height    int
	FrameRate Rational
	Format    PixelFormat
	Frames    int // frames before EOF; 0 means unbounded
}

// PatternVideoSource generates SMPTE color-bar frames, standing in for a
// container decoder in demos and tests.
type PatternVideoSource struct {
	cfg     PatternVideoSourceConfig
	frameNS float64
	idx     int
}

// NewPatternVideoSource creates a color-bars video source.
func NewPatternVideoSource(cfg PatternVideoSourceConfig) *PatternVideoSource {
	return &PatternVideoSource{cfg: cfg, frameNS: cfg.FrameRate.FrameDurationNS()}
}

// ReadFrame returns the next generated frame, or io.EOF after the configured
// frame count.
func (s *PatternVideoSource) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.Frames > 0 && s.idx >= s.cfg.Frames {
		return nil, io.EOF
	}
	f := s.buildFrame()
	f.Timestamp = int64(float64(s.idx) * s.frameNS)
	s.idx++
	return f, nil
}

// Seek rewinds the pattern generator; ns maps onto a frame index.
func (s *PatternVideoSource) Seek(ns int64) error {
	s.idx = int(float64(ns) / s.frameNS)
	return nil
}

func (s *PatternVideoSource) Close() error { return nil }

func (s *PatternVideoSource) buildFrame() *VideoFrame {
	w, h := s.cfg.Width, s.cfg.Height
	barW := w / len(smpteBars)
	if barW == 0 {
		barW = w
	}
	colorAt := func(x int) barColor {
		i := x / barW
		if i >= len(smpteBars) {
			i = len(smpteBars) - 1
		}
		return smpteBars[i]
	}

	switch s.cfg.Format {
	case PixelFormatUYVY:
		stride := w * 2
		data := make([]byte, stride*h)
		for y := 0; y < h; y++ {
			row := data[y*stride:]
			for x := 0; x < w; x += 2 {
				c := colorAt(x)
				o := x * 2
				row[o] = c.cb
				row[o+1] = c.y
				row[o+2] = c.cr
				row[o+3] = colorAt(x + 1).y
			}
		}
		return &VideoFrame{
			Data:   [][]byte{data},
			Stride: []int{stride},
			Width:  w, Height: h,
			Format: PixelFormatUYVY,
		}

	case PixelFormatYUV422P10:
		// 16-bit little-endian containers holding 10 significant bits.
		yStride, cStride := w*2, w
		yp := make([]byte, yStride*h)
		cbp := make([]byte, cStride*h)
		crp := make([]byte, cStride*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := colorAt(x)
				binary.LittleEndian.PutUint16(yp[y*yStride+x*2:], uint16(c.y)<<2)
				if x%2 == 0 {
					binary.LittleEndian.PutUint16(cbp[y*cStride+x:], uint16(c.cb)<<2)
					binary.LittleEndian.PutUint16(crp[y*cStride+x:], uint16(c.cr)<<2)
				}
			}
		}
		return &VideoFrame{
			Data:   [][]byte{yp, cbp, crp},
			Stride: []int{yStride, cStride, cStride},
			Width:  w, Height: h,
			Format: PixelFormatYUV422P10,
		}

	default: // PixelFormatYUV422P
		yp := make([]byte, w*h)
		cbp := make([]byte, w/2*h)
		crp := make([]byte, w/2*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := colorAt(x)
				yp[y*w+x] = c.y
				if x%2 == 0 {
					cbp[y*(w/2)+x/2] = c.cb
					crp[y*(w/2)+x/2] = c.cr
				}
			}
		}
		return &VideoFrame{
			Data:   [][]byte{yp, cbp, crp},
			Stride: []int{w, w / 2, w / 2},
			Width:  w, Height: h,
			Format: PixelFormatYUV422P,
		}
	}
}

// ToneAudioSourceConfig configures a synthetic sine-tone source.
type ToneAudioSourceConfig struct {
	SampleRate   int
	Channels     int
	BitDepth     int     // 16 or 24
	Frequency    float64 // Hz; default 1000
	ChunkSamples int     // samples per chunk; default 1024
	Chunks       int     // chunks before EOF; 0 means unbounded
}

// ToneAudioSource generates a sine tone as little-endian interleaved PCM.
type ToneAudioSource struct {
	cfg   ToneAudioSourceConfig
	idx   int
	phase int // absolute sample position, for phase continuity across chunks
}

// NewToneAudioSource creates a sine-tone audio source.
func NewToneAudioSource(cfg ToneAudioSourceConfig) *ToneAudioSource {
	if cfg.Frequency == 0 {
		cfg.Frequency = 1000
	}
	if cfg.ChunkSamples == 0 {
		cfg.ChunkSamples = 1024
	}
	return &ToneAudioSource{cfg: cfg}
}

// ReadChunk returns the next tone chunk, or io.EOF after the configured
// chunk count.
func (s *ToneAudioSource) ReadChunk(ctx context.Context) (*AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.Chunks > 0 && s.idx >= s.cfg.Chunks {
		return nil, io.EOF
	}
	bps := s.cfg.BitDepth / 8
	data := make([]byte, s.cfg.ChunkSamples*s.cfg.Channels*bps)
	for i := 0; i < s.cfg.ChunkSamples; i++ {
		v := math.Sin(2 * math.Pi * s.cfg.Frequency * float64(s.phase+i) / float64(s.cfg.SampleRate))
		sample := int32(v * 0.5 * float64(int32(1)<<(s.cfg.BitDepth-1)-1))
		for ch := 0; ch < s.cfg.Channels; ch++ {
			o := (i*s.cfg.Channels + ch) * bps
			switch s.cfg.BitDepth {
			case 16:
				binary.LittleEndian.PutUint16(data[o:], uint16(sample))
			case 24:
				data[o] = byte(sample)
				data[o+1] = byte(sample >> 8)
				data[o+2] = byte(sample >> 16)
			}
		}
	}
	chunk := &AudioChunk{
		Data:        data,
		SampleRate:  s.cfg.SampleRate,
		Channels:    s.cfg.Channels,
		SampleCount: s.cfg.ChunkSamples,
		BitDepth:    s.cfg.BitDepth,
		Timestamp:   int64(float64(s.phase) / float64(s.cfg.SampleRate) * 1e9),
	}
	s.phase += s.cfg.ChunkSamples
	s.idx++
	return chunk, nil
}

// Seek rewinds the tone generator.
func (s *ToneAudioSource) Seek(ns int64) error {
	s.phase = int(float64(ns) / 1e9 * float64(s.cfg.SampleRate))
	s.idx = s.phase / s.cfg.ChunkSamples
	return nil
}

func (s *ToneAudioSource) Close() error { return nil }

// CounterAncSourceConfig configures a synthetic ancillary source that emits
// one packet per frame carrying a frame counter.
type CounterAncSourceConfig struct {
	DID    uint8
	SDID   uint8
	Line   uint16
	Frames int // packets before EOF; 0 means unbounded
}

// CounterAncSource emits a running frame counter as SMPTE-291 user data.
type CounterAncSource struct {
	cfg CounterAncSourceConfig
	idx int
}

// NewCounterAncSource creates a counter ancillary source.
func NewCounterAncSource(cfg CounterAncSourceConfig) *CounterAncSource {
	return &CounterAncSource{cfg: cfg}
}

// ReadData returns the next ancillary packet, or io.EOF after the configured
// frame count.
func (s *CounterAncSource) ReadData(ctx context.Context) (*AncData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.Frames > 0 && s.idx >= s.cfg.Frames {
		return nil, io.EOF
	}
	var ud [4]byte
	binary.BigEndian.PutUint32(ud[:], uint32(s.idx))
	d := &AncData{
		DID:      s.cfg.DID,
		SDID:     s.cfg.SDID,
		Line:     s.cfg.Line,
		UserData: ud[:],
	}
	s.idx++
	return d, nil
}

// Seek rewinds the counter.
func (s *CounterAncSource) Seek(ns int64) error {
	s.idx = 0
	return nil
}

func (s *CounterAncSource) Close() error { return nil }
