package st2110

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/rtp"
)

// VideoClockRate is the RTP media clock for ST 2110-20 and -40 streams.
const VideoClockRate = 90000

const (
	rtpHeaderBytes = 12
	extSeqBytes    = 2 // high half of the 32-bit extended sequence number
	srdHeaderBytes = 6
)

// VideoPacketizer converts decoded video frames (or fields, if interlaced)
// into ST 2110-20 wire packets: RTP header, extended sequence number, one or
// more SRD (Sample Row Data) headers, then packed pixel groups.
//
// The packetizer reads the stream's TimingCell for the RTP timestamp and the
// field polarity, and advances both when it emits the last packet of a
// frame/field (by one frame duration of ticks, halved per field when
// interlaced).
type VideoPacketizer struct {
	desc *VideoDescriptor
	plan *PacketPlan
	cell *TimingCell

	seq         uint32 // 32-bit extended sequence number
	tickAdvance float64
	totalPg     int

	// per-frame cursor, reset by BeginFrame
	frame  *VideoFrame
	pktIdx int
	line   int // line within the current frame/field
	linePg int // pixel groups consumed in the current line
	leftPg int // pixel groups remaining in the frame/field
}

// NewVideoPacketizer creates a packetizer for one video stream.
func NewVideoPacketizer(desc *VideoDescriptor, plan *PacketPlan, cell *TimingCell) (*VideoPacketizer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if plan == nil || cell == nil {
		return nil, fmt.Errorf("%w: packet plan and timing cell are required", ErrBadDescriptor)
	}
	fields := float64(desc.FieldsPerFrame())
	return &VideoPacketizer{
		desc:        desc,
		plan:        plan,
		cell:        cell,
		seq:         uint32(rtp.NewRandomSequencer().NextSequenceNumber()),
		tickAdvance: VideoClockRate / desc.FrameRate.Float() / fields,
		totalPg:     plan.TotalPgroups(),
	}, nil
}

// MaxPacketBytes returns the buffer size a packet of this stream may need.
func (p *VideoPacketizer) MaxPacketBytes() int {
	return rtpHeaderBytes + extSeqBytes + p.plan.MaxSRDs()*srdHeaderBytes + p.plan.MaxPayloadBytes()
}

// Plan returns the stream's packet plan.
func (p *VideoPacketizer) Plan() *PacketPlan { return p.plan }

// BeginFrame resets the cursor onto a new frame. For interlaced streams each
// call consumes one field of the frame; call it twice per decoded frame.
func (p *VideoPacketizer) BeginFrame(f *VideoFrame) error {
	if f.Width != p.desc.Width || f.Height != p.desc.Height {
		return fmt.Errorf("%w: frame %dx%d, stream %dx%d",
			ErrBadDescriptor, f.Width, f.Height, p.desc.Width, p.desc.Height)
	}
	if f.Format != p.desc.Format {
		return fmt.Errorf("%w: frame %v, stream %v", ErrUnsupportedFormat, f.Format, p.desc.Format)
	}
	p.frame = f
	p.pktIdx = 0
	p.line = 0
	p.linePg = 0
	p.leftPg = p.totalPg
	return nil
}

type srdRun struct {
	line    int // line within the frame/field
	startPx int
	pgroups int
}

// NextPacket builds the next packet of the current frame/field into buf and
// returns the bytes written and whether this was the last packet. A packet
// carries a second SRD whenever its payload boundary falls inside a line
// with fewer pixel groups left in the line than fit in the packet.
func (p *VideoPacketizer) NextPacket(buf []byte) (int, bool, error) {
	if p.frame == nil {
		return 0, false, fmt.Errorf("st2110: no frame begun")
	}
	budget := p.plan.Sizes[p.pktIdx]

	var runs []srdRun
	for left := budget; left > 0; {
		avail := p.plan.PgroupsPerLine - p.linePg
		take := left
		if take > avail {
			take = avail
		}
		runs = append(runs, srdRun{line: p.line, startPx: p.linePg * p.desc.Format.PgroupPixels(), pgroups: take})
		p.linePg += take
		if p.linePg == p.plan.PgroupsPerLine {
			p.line++
			p.linePg = 0
		}
		left -= take
	}

	p.leftPg -= budget
	last := p.leftPg == 0

	fieldPol := 0
	if p.desc.Interlaced {
		fieldPol = p.cell.Field()
	}

	hdr := rtp.Header{
		Version:        2,
		Marker:         last,
		PayloadType:    p.desc.PayloadType,
		SequenceNumber: uint16(p.seq),
		Timestamp:      uint32(uint64(p.cell.Tick())),
		SSRC:           p.desc.SSRC,
	}
	n, err := hdr.MarshalTo(buf)
	if err != nil {
		return 0, false, fmt.Errorf("marshal rtp header: %w", err)
	}
	binary.BigEndian.PutUint16(buf[n:], uint16(p.seq>>16))
	n += extSeqBytes

	for i, r := range runs {
		length := uint16(r.pgroups * p.plan.PgroupBytes)
		lineWord := uint16(fieldPol)<<15 | uint16(r.line)&0x7FFF
		offWord := uint16(r.startPx) & 0x7FFF
		if i < len(runs)-1 {
			offWord |= 0x8000 // continuation: another SRD header follows
		}
		binary.BigEndian.PutUint16(buf[n:], length)
		binary.BigEndian.PutUint16(buf[n+2:], lineWord)
		binary.BigEndian.PutUint16(buf[n+4:], offWord)
		n += srdHeaderBytes
	}

	for _, r := range runs {
		p.copyRun(buf[n:], r, fieldPol)
		n += r.pgroups * p.plan.PgroupBytes
	}

	if last && p.plan.PadLast {
		pad := p.plan.MaxPayloadBytes() - budget*p.plan.PgroupBytes
		for i := 0; i < pad; i++ {
			buf[n+i] = 0
		}
		n += pad
	}

	p.seq++
	p.pktIdx++
	if last {
		p.cell.AdvanceTick(p.tickAdvance)
		if p.desc.Interlaced {
			p.cell.FlipField()
		}
		p.frame = nil
	}
	return n, last, nil
}

// copyRun packs one SRD's pixel groups into dst. Field lines map back to the
// full frame by doubling the line index and adding the field polarity.
func (p *VideoPacketizer) copyRun(dst []byte, r srdRun, fieldPol int) {
	srcLine := r.line
	if p.desc.Interlaced {
		srcLine = r.line*2 + fieldPol
	}
	f := p.frame
	switch p.desc.Format {
	case PixelFormatUYVY:
		// Packed source is already in pgroup order; straight copy.
		src := f.Data[0][srcLine*f.Stride[0]+r.startPx*2:]
		copy(dst[:r.pgroups*4], src)

	case PixelFormatYUV422P:
		y, cb, cr := f.Data[0], f.Data[1], f.Data[2]
		yi := srcLine*f.Stride[0] + r.startPx
		ci := srcLine*f.Stride[1] + r.startPx/2
		for g := 0; g < r.pgroups; g++ {
			o := g * 4
			dst[o] = cb[ci+g]
			dst[o+1] = y[yi+g*2]
			dst[o+2] = cr[ci+g]
			dst[o+3] = y[yi+g*2+1]
		}

	case PixelFormatYUV422P10:
		// Two 10-bit luma and two 10-bit chroma samples packed big-endian
		// into 5 bytes: Cb(10) Y0(10) Cr(10) Y1(10).
		y, cb, cr := f.Data[0], f.Data[1], f.Data[2]
		yOff := srcLine*f.Stride[0] + r.startPx*2
		cOff := srcLine*f.Stride[1] + r.startPx
		for g := 0; g < r.pgroups; g++ {
			cbV := binary.LittleEndian.Uint16(cb[cOff+g*2:]) & 0x3FF
			y0 := binary.LittleEndian.Uint16(y[yOff+g*4:]) & 0x3FF
			crV := binary.LittleEndian.Uint16(cr[cOff+g*2:]) & 0x3FF
			y1 := binary.LittleEndian.Uint16(y[yOff+g*4+2:]) & 0x3FF
			o := g * 5
			dst[o] = byte(cbV >> 2)
			dst[o+1] = byte(cbV<<6) | byte(y0>>4)
			dst[o+2] = byte(y0<<4) | byte(crV>>6)
			dst[o+3] = byte(crV<<2) | byte(y1>>8)
			dst[o+4] = byte(y1)
		}
	}
}

// PacketizeFrame is a convenience wrapper that slices one frame/field into
// freshly allocated wire packets. The sender path uses BeginFrame/NextPacket
// with sink-acquired buffers instead.
func (p *VideoPacketizer) PacketizeFrame(f *VideoFrame) ([][]byte, error) {
	if err := p.BeginFrame(f); err != nil {
		return nil, err
	}
	packets := make([][]byte, 0, p.plan.Packets())
	for {
		buf := make([]byte, p.MaxPacketBytes())
		n, last, err := p.NextPacket(buf)
		if err != nil {
			return nil, err
		}
		packets = append(packets, buf[:n])
		if last {
			return packets, nil
		}
	}
}
