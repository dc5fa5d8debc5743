package st2110

import (
	"fmt"

	"github.com/pion/rtp"
)

// AudioPacketizer packs interleaved PCM samples from successive decoded
// chunks into fixed-size ST 2110-30/31 packet strides. Decoded chunk sizes
// need not match the stride: a partial chunk's remaining samples carry over
// into the next chunk's buffer, and the packetizer advances to the next
// source buffer mid-packet when the current one runs out.
//
// Audio packets never set the marker bit; there is no frame boundary to
// signal. The RTP timestamp advances by the per-packet sample count.
type AudioPacketizer struct {
	desc *AudioDescriptor
	cell *TimingCell
	seq  rtp.Sequencer

	pending    []*AudioChunk
	offset     int // bytes consumed from pending[0]
	availBytes int
}

// NewAudioPacketizer creates a packetizer for one audio stream.
func NewAudioPacketizer(desc *AudioDescriptor, cell *TimingCell) (*AudioPacketizer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if cell == nil {
		return nil, fmt.Errorf("%w: timing cell is required", ErrBadDescriptor)
	}
	return &AudioPacketizer{
		desc: desc,
		cell: cell,
		seq:  rtp.NewRandomSequencer(),
	}, nil
}

// MaxPacketBytes returns the buffer size one packet of this stream needs.
func (p *AudioPacketizer) MaxPacketBytes() int {
	return rtpHeaderBytes + p.desc.StrideBytes()
}

// Push appends a decoded chunk to the pending sample window.
func (p *AudioPacketizer) Push(c *AudioChunk) error {
	if c.SampleRate != p.desc.SampleRate || c.Channels != p.desc.Channels || c.BitDepth != p.desc.BitDepth {
		return fmt.Errorf("%w: chunk %d Hz/%dch/%d-bit, stream %d Hz/%dch/%d-bit",
			ErrBadDescriptor, c.SampleRate, c.Channels, c.BitDepth,
			p.desc.SampleRate, p.desc.Channels, p.desc.BitDepth)
	}
	p.pending = append(p.pending, c)
	p.availBytes += len(c.Data)
	return nil
}

// BufferedSamples returns the per-channel samples currently buffered,
// including any remainder carried over from earlier chunks.
func (p *AudioPacketizer) BufferedSamples() int {
	return p.availBytes / p.desc.BytesPerSampleFrame()
}

// NextPacket builds one packet stride into buf. ok is false when fewer than
// a full stride of samples remains buffered; the remainder waits for the
// next Push.
func (p *AudioPacketizer) NextPacket(buf []byte) (n int, ok bool, err error) {
	stride := p.desc.StrideBytes()
	if p.availBytes < stride {
		return 0, false, nil
	}

	hdr := rtp.Header{
		Version:        2,
		PayloadType:    p.desc.PayloadType,
		SequenceNumber: p.seq.NextSequenceNumber(),
		Timestamp:      uint32(uint64(p.cell.Tick())),
		SSRC:           p.desc.SSRC,
	}
	n, err = hdr.MarshalTo(buf)
	if err != nil {
		return 0, false, fmt.Errorf("marshal rtp header: %w", err)
	}

	for filled := 0; filled < stride; {
		src := p.pending[0]
		take := copy(buf[n+filled:n+stride], src.Data[p.offset:])
		filled += take
		p.offset += take
		if p.offset == len(src.Data) {
			p.pending = p.pending[1:]
			p.offset = 0
		}
	}
	p.availBytes -= stride
	n += stride

	p.cell.AdvanceTick(float64(p.desc.SamplesPerPacket()))
	return n, true, nil
}

// Reset discards any buffered remainder, used at loop resynchronization.
func (p *AudioPacketizer) Reset() {
	p.pending = nil
	p.offset = 0
	p.availBytes = 0
}
