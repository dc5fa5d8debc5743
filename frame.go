package st2110

// PixelFormat represents the uncompressed 4:2:2 video formats the transmitter
// accepts from a decoder.
type PixelFormat int

const (
	PixelFormatYUV422P   PixelFormat = iota // 8-bit planar 4:2:2 (Y + Cb + Cr)
	PixelFormatUYVY                         // 8-bit packed 4:2:2 (Cb Y0 Cr Y1)
	PixelFormatYUV422P10                    // 10-bit planar 4:2:2, 16-bit little-endian containers
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatYUV422P:
		return "YUV422P"
	case PixelFormatUYVY:
		return "UYVY"
	case PixelFormatYUV422P10:
		return "YUV422P10"
	default:
		return "Unknown"
	}
}

// BitDepth returns the significant bits per sample.
func (p PixelFormat) BitDepth() int {
	if p == PixelFormatYUV422P10 {
		return 10
	}
	return 8
}

// PgroupBytes returns the wire size of one pixel group (the smallest
// indivisible run of samples): 4 bytes per 2 pixels at 8 bits, 5 at 10 bits.
func (p PixelFormat) PgroupBytes() int {
	if p == PixelFormatYUV422P10 {
		return 5
	}
	return 4
}

// PgroupPixels returns the pixels covered by one pixel group (2 for 4:2:2).
func (p PixelFormat) PgroupPixels() int { return 2 }

// VideoFrame represents one raw decoded video frame.
// The Data slices may point to decoder-owned memory; ownership transfers
// through the pipeline queues and is never shared between stages.
type VideoFrame struct {
	Data      [][]byte    // Plane data (1 plane packed, 3 planar)
	Stride    []int       // Stride for each plane in bytes
	Width     int         // Frame width in pixels
	Height    int         // Frame height in lines
	Format    PixelFormat // Pixel format
	Timestamp int64       // Presentation timestamp in nanoseconds
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:      make([][]byte, len(f.Data)),
		Stride:    make([]int, len(f.Stride)),
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Timestamp: f.Timestamp,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// AudioChunk represents one decoded block of interleaved PCM samples.
// Data holds SampleCount*Channels samples of BitDepth/8 bytes each;
// byte order is little-endian from the decoder until the wire stage
// converts it to the network order ST 2110-30 requires.
type AudioChunk struct {
	Data        []byte // Interleaved sample data
	SampleRate  int    // Samples per second per channel (e.g. 48000)
	Channels    int    // Channel count
	SampleCount int    // Samples per channel in this chunk
	BitDepth    int    // 16 or 24
	Timestamp   int64  // Presentation timestamp in nanoseconds
}

// BytesPerFrame returns the size of one sample frame (all channels).
func (c *AudioChunk) BytesPerFrame() int { return c.Channels * c.BitDepth / 8 }

// Clone creates a deep copy of the audio chunk.
func (c *AudioChunk) Clone() *AudioChunk {
	clone := *c
	if c.Data != nil {
		clone.Data = make([]byte, len(c.Data))
		copy(clone.Data, c.Data)
	}
	return &clone
}

// AncData is one SMPTE-291 ancillary data packet before wire encoding.
// UserData holds the 8-bit user data words; parity bits and the checksum
// word are added by the packetizer.
type AncData struct {
	DID       uint8  // Data identifier
	SDID      uint8  // Secondary data identifier
	Line      uint16 // Line number the packet is associated with (11 bits on the wire)
	Offset    uint16 // Horizontal offset (12 bits on the wire)
	StreamNum uint8  // ANC data stream number (7 bits)
	UserData  []byte // User data words (max 255)
	Timestamp int64  // Presentation timestamp in nanoseconds
}

// Clone creates a deep copy of the ancillary packet.
func (a *AncData) Clone() *AncData {
	clone := *a
	if a.UserData != nil {
		clone.UserData = make([]byte, len(a.UserData))
		copy(clone.UserData, a.UserData)
	}
	return &clone
}
