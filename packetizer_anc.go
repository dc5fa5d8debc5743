package st2110

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/pion/rtp"
)

// ancPayloadHeaderBytes covers the extended sequence number, the payload
// length, the ANC packet count, and the F/reserved word of RFC 8331.
const ancPayloadHeaderBytes = 8

// AncPacketizer builds ST 2110-40 (RFC 8331) packets carrying SMPTE-291
// ancillary data words. Each RTP packet carries exactly one ANC data packet:
// the 10-bit DID/SDID/DC/UDW words with even-parity bit pairs, followed by a
// 10-bit checksum, packed into a big-endian bitstream padded to a 32-bit
// boundary.
//
// The field flag alternates for interlaced video, matching the video
// stream's polarity so receivers can correlate ancillary data to the
// correct field.
type AncPacketizer struct {
	desc *AncDescriptor
	cell *TimingCell

	seq         uint32 // 32-bit extended sequence number
	tickAdvance float64
}

// NewAncPacketizer creates a packetizer for one ancillary stream.
func NewAncPacketizer(desc *AncDescriptor, cell *TimingCell) (*AncPacketizer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if cell == nil {
		return nil, fmt.Errorf("%w: timing cell is required", ErrBadDescriptor)
	}
	return &AncPacketizer{
		desc:        desc,
		cell:        cell,
		seq:         uint32(rtp.NewRandomSequencer().NextSequenceNumber()),
		tickAdvance: VideoClockRate / desc.FrameRate.Float() / float64(desc.FieldsPerFrame()),
	}, nil
}

// MaxPacketBytes returns the buffer size one packet of this stream may need
// (a full 255-word user data payload).
func (p *AncPacketizer) MaxPacketBytes() int {
	return rtpHeaderBytes + ancPayloadHeaderBytes + ancPacketBytes(255)
}

// ancPacketBytes returns the word-aligned byte length of one encoded ANC
// data packet with dc user data words.
func ancPacketBytes(dc int) int {
	bits := 32 + 10*(dc+4) // C/Line/Offset/S/StreamNum header + DID,SDID,DC,UDW...,CS
	return (bits + 31) / 32 * 4
}

// parity10 widens an 8-bit word to the 10-bit ANC wire form: bit 8 is the
// even-parity bit over bits 0-7, bit 9 its complement.
func parity10(v uint8) uint16 {
	b8 := uint16(bits.OnesCount8(v) & 1)
	return (b8^1)<<9 | b8<<8 | uint16(v)
}

// Packetize encodes one ANC data packet into buf and returns the bytes
// written. Each packet closes the ancillary data of its frame/field, so the
// marker bit is always set; the RTP timestamp then advances by one
// frame/field duration and the field polarity flips for interlaced streams.
func (p *AncPacketizer) Packetize(d *AncData, buf []byte) (int, error) {
	if len(d.UserData) > 255 {
		return 0, fmt.Errorf("%w: %d user data words (max 255)", ErrBadDescriptor, len(d.UserData))
	}

	hdr := rtp.Header{
		Version:        2,
		Marker:         true,
		PayloadType:    p.desc.PayloadType,
		SequenceNumber: uint16(p.seq),
		Timestamp:      uint32(uint64(p.cell.Tick())),
		SSRC:           p.desc.SSRC,
	}
	n, err := hdr.MarshalTo(buf)
	if err != nil {
		return 0, fmt.Errorf("marshal rtp header: %w", err)
	}

	fieldPol := 0
	if p.desc.Interlaced {
		fieldPol = p.cell.Field()
	}

	body := ancPacketBytes(len(d.UserData))
	binary.BigEndian.PutUint16(buf[n:], uint16(p.seq>>16))
	binary.BigEndian.PutUint16(buf[n+2:], uint16(body))
	f := uint32(0)
	if p.desc.Interlaced {
		f = 0b10 | uint32(fieldPol)
	}
	// ANC_Count (8) | F (2) | reserved (22)
	binary.BigEndian.PutUint32(buf[n+4:], uint32(1)<<24|f<<22)
	n += ancPayloadHeaderBytes

	w := newBitWriter(buf[n : n+body])
	w.writeBits(0, 1) // C: luma
	w.writeBits(uint32(d.Line)&0x7FF, 11)
	w.writeBits(uint32(d.Offset)&0xFFF, 12)
	w.writeBits(1, 1) // S: stream number valid
	w.writeBits(uint32(d.StreamNum)&0x7F, 7)

	did := parity10(d.DID)
	sdid := parity10(d.SDID)
	dc := parity10(uint8(len(d.UserData)))
	w.writeBits(uint32(did), 10)
	w.writeBits(uint32(sdid), 10)
	w.writeBits(uint32(dc), 10)

	sum := uint32(did) + uint32(sdid) + uint32(dc)
	for _, udw := range d.UserData {
		word := parity10(udw)
		w.writeBits(uint32(word), 10)
		sum += uint32(word)
	}
	w.writeBits(sum%1024, 10)
	w.alignWord()
	n += body

	p.seq++
	p.cell.AdvanceTick(p.tickAdvance)
	if p.desc.Interlaced {
		p.cell.FlipField()
	}
	return n, nil
}

// bitWriter packs big-endian bit runs into a byte slice.
type bitWriter struct {
	buf []byte
	pos int // bits written
}

func newBitWriter(buf []byte) *bitWriter {
	for i := range buf {
		buf[i] = 0
	}
	return &bitWriter{buf: buf}
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if v>>uint(i)&1 == 1 {
			w.buf[w.pos>>3] |= 1 << uint(7-w.pos&7)
		}
		w.pos++
	}
}

// alignWord advances to the next 32-bit boundary (the padding bits are
// already zero).
func (w *bitWriter) alignWord() {
	if rem := w.pos % 32; rem != 0 {
		w.pos += 32 - rem
	}
}
