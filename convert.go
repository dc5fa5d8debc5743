package st2110

import "fmt"

// VideoConverter normalizes decoded frames to the stream's wire pixel
// format. It fills the transform slot between the video reader and sender;
// frames already in the target format pass through untouched.
type VideoConverter struct {
	target PixelFormat
}

// NewVideoConverter creates a converter targeting the given format.
func NewVideoConverter(target PixelFormat) *VideoConverter {
	return &VideoConverter{target: target}
}

// Convert returns f in the target format. Only 8-bit planar to packed UYVY
// conversion is supported; any other mismatch is a codec-compatibility
// precondition violation, fatal for the stream.
func (c *VideoConverter) Convert(f *VideoFrame) (*VideoFrame, error) {
	if f.Format == c.target {
		return f, nil
	}
	if f.Format == PixelFormatYUV422P && c.target == PixelFormatUYVY {
		return planarToUYVY(f), nil
	}
	return nil, fmt.Errorf("%w: cannot convert %v to %v", ErrUnsupportedFormat, f.Format, c.target)
}

func planarToUYVY(f *VideoFrame) *VideoFrame {
	w, h := f.Width, f.Height
	stride := w * 2
	data := make([]byte, stride*h)
	y, cb, cr := f.Data[0], f.Data[1], f.Data[2]
	for line := 0; line < h; line++ {
		yi := line * f.Stride[0]
		ci := line * f.Stride[1]
		row := data[line*stride:]
		for x := 0; x < w; x += 2 {
			o := x * 2
			row[o] = cb[ci+x/2]
			row[o+1] = y[yi+x]
			row[o+2] = cr[ci+x/2]
			row[o+3] = y[yi+x+1]
		}
	}
	return &VideoFrame{
		Data:      [][]byte{data},
		Stride:    []int{stride},
		Width:     w,
		Height:    h,
		Format:    PixelFormatUYVY,
		Timestamp: f.Timestamp,
	}
}

// HostToNetworkOrder converts a decoded little-endian PCM chunk to the
// big-endian byte order ST 2110-30 puts on the wire, in place.
func HostToNetworkOrder(c *AudioChunk) *AudioChunk {
	switch c.BitDepth {
	case 16:
		for i := 0; i+1 < len(c.Data); i += 2 {
			c.Data[i], c.Data[i+1] = c.Data[i+1], c.Data[i]
		}
	case 24:
		for i := 0; i+2 < len(c.Data); i += 3 {
			c.Data[i], c.Data[i+2] = c.Data[i+2], c.Data[i]
		}
	}
	return c
}
