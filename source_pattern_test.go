package st2110

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestPatternVideoSourceFrames(t *testing.T) {
	src := NewPatternVideoSource(PatternVideoSourceConfig{
		Width: 64, Height: 8,
		FrameRate: NewRational(25, 1),
		Format:    PixelFormatYUV422P,
		Frames:    2,
	})
	ctx := context.Background()

	f1, err := src.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f1.Width != 64 || f1.Height != 8 || f1.Format != PixelFormatYUV422P {
		t.Errorf("frame = %dx%d %v", f1.Width, f1.Height, f1.Format)
	}
	if len(f1.Data) != 3 {
		t.Fatalf("planar frame has %d planes", len(f1.Data))
	}
	f2, err := src.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f2.Timestamp-f1.Timestamp != 4e7 {
		t.Errorf("frame spacing = %d ns, want 4e7", f2.Timestamp-f1.Timestamp)
	}
	if _, err := src.ReadFrame(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("after %d frames err = %v, want io.EOF", 2, err)
	}

	if err := src.Seek(0); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if _, err := src.ReadFrame(ctx); err != nil {
		t.Errorf("ReadFrame after rewind failed: %v", err)
	}
}

func TestPatternVideoSourceFormats(t *testing.T) {
	for _, format := range []PixelFormat{PixelFormatYUV422P, PixelFormatUYVY, PixelFormatYUV422P10} {
		src := NewPatternVideoSource(PatternVideoSourceConfig{
			Width: 32, Height: 4,
			FrameRate: NewRational(25, 1),
			Format:    format,
			Frames:    1,
		})
		f, err := src.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("%v: ReadFrame failed: %v", format, err)
		}
		if f.Format != format {
			t.Errorf("format = %v, want %v", f.Format, format)
		}
		wantPlanes := 3
		if format == PixelFormatUYVY {
			wantPlanes = 1
		}
		if len(f.Data) != wantPlanes {
			t.Errorf("%v: %d planes, want %d", format, len(f.Data), wantPlanes)
		}
	}
}

func TestToneAudioSourcePhaseContinuity(t *testing.T) {
	src := NewToneAudioSource(ToneAudioSourceConfig{
		SampleRate: 48000, Channels: 2, BitDepth: 16,
		ChunkSamples: 100, Chunks: 2,
	})
	ctx := context.Background()
	c1, err := src.ReadChunk(ctx)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if c1.SampleCount != 100 || len(c1.Data) != 100*2*2 {
		t.Fatalf("chunk = %d samples / %d bytes", c1.SampleCount, len(c1.Data))
	}

	c2, err := src.ReadChunk(ctx)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	// A restarted source produces the same waveform; chunk 2 picks up the
	// phase where chunk 1 left it, not at zero.
	if err := src.Seek(0); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	r1, _ := src.ReadChunk(ctx)
	r2, _ := src.ReadChunk(ctx)
	for i := range c1.Data {
		if c1.Data[i] != r1.Data[i] || c2.Data[i] != r2.Data[i] {
			t.Fatal("rewound tone diverges from the first pass")
		}
	}
	same := true
	for i := range c2.Data {
		if c2.Data[i] != c1.Data[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("chunk 2 restarted the phase at zero")
	}

	if _, err := src.ReadChunk(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("after 2 chunks err = %v, want io.EOF", err)
	}
}

func TestCounterAncSource(t *testing.T) {
	src := NewCounterAncSource(CounterAncSourceConfig{DID: 0x61, SDID: 0x02, Line: 9, Frames: 2})
	ctx := context.Background()
	d1, err := src.ReadData(ctx)
	if err != nil {
		t.Fatalf("ReadData failed: %v", err)
	}
	if d1.DID != 0x61 || d1.SDID != 0x02 || d1.Line != 9 || len(d1.UserData) != 4 {
		t.Errorf("packet = %+v", d1)
	}
	d2, _ := src.ReadData(ctx)
	if d2.UserData[3] != d1.UserData[3]+1 {
		t.Errorf("counter did not advance: %v then %v", d1.UserData, d2.UserData)
	}
	if _, err := src.ReadData(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("after 2 frames err = %v, want io.EOF", err)
	}
}

func TestVideoConverterPlanarToUYVY(t *testing.T) {
	conv := NewVideoConverter(PixelFormatUYVY)
	in := planarFrame8(4, 2)
	out, err := conv.Convert(in)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out.Format != PixelFormatUYVY || len(out.Data) != 1 {
		t.Fatalf("converted to %v with %d planes", out.Format, len(out.Data))
	}
	// First pgroup of line 1: Cb, Y0, Cr, Y1 from the planar source.
	row := out.Data[0][out.Stride[0]:]
	want := []byte{in.Data[1][2], in.Data[0][4], in.Data[2][2], in.Data[0][5]}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("uyvy[%d] = %#x, want %#x", i, row[i], want[i])
		}
	}

	// Same format passes through without copying.
	if got, _ := conv.Convert(out); got != out {
		t.Error("matching format did not pass through")
	}
	// 10-bit to packed 8-bit is not a supported conversion.
	tenBit := &VideoFrame{Width: 4, Height: 2, Format: PixelFormatYUV422P10}
	if _, err := conv.Convert(tenBit); err == nil {
		t.Error("Convert accepted a 10-bit to UYVY conversion")
	}
}

func TestHostToNetworkOrder(t *testing.T) {
	c16 := &AudioChunk{Data: []byte{0x01, 0x02, 0x03, 0x04}, BitDepth: 16}
	HostToNetworkOrder(c16)
	want16 := []byte{0x02, 0x01, 0x04, 0x03}
	for i := range want16 {
		if c16.Data[i] != want16[i] {
			t.Fatalf("16-bit swap = %v, want %v", c16.Data, want16)
		}
	}

	c24 := &AudioChunk{Data: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, BitDepth: 24}
	HostToNetworkOrder(c24)
	want24 := []byte{0x03, 0x02, 0x01, 0x06, 0x05, 0x04}
	for i := range want24 {
		if c24.Data[i] != want24[i] {
			t.Fatalf("24-bit swap = %v, want %v", c24.Data, want24)
		}
	}
}
