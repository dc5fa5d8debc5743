package st2110

import "fmt"

// PacketPlan is the precomputed per-packet payload split for one video
// frame (or one field, if interlaced). It is derived once from the
// resolution, pixel format, and payload budget, and shared by every
// frame/field of the stream.
//
// The invariant the rest of the pipeline relies on: the pixel groups summed
// across Sizes equal the pixel groups of the frame/field exactly, and only
// the final packet may be short. When padding is allowed the final packet is
// zero-filled back to the full payload budget on the wire.
type PacketPlan struct {
	Sizes          []int // pixel groups carried by each packet
	PgroupsPerLine int
	PgroupBytes    int
	PadLast        bool

	payloadCap int // full-packet pixel payload in bytes
}

// NewPacketPlan computes the packet split for a frame/field of the given
// dimensions. maxPayload is the byte budget available for pixel data in one
// packet, after RTP and payload-header overhead.
func NewPacketPlan(width, lines int, format PixelFormat, maxPayload int, allowPadding bool) (*PacketPlan, error) {
	pgBytes := format.PgroupBytes()
	pgPixels := format.PgroupPixels()
	if width <= 0 || width%pgPixels != 0 {
		return nil, fmt.Errorf("%w: width %d not divisible into pixel groups", ErrBadDescriptor, width)
	}
	if lines <= 0 {
		return nil, fmt.Errorf("%w: %d lines", ErrBadDescriptor, lines)
	}
	perPacket := maxPayload / pgBytes
	if perPacket < 1 {
		return nil, fmt.Errorf("%w: payload budget %d below one pixel group", ErrBadDescriptor, maxPayload)
	}

	pgPerLine := width / pgPixels
	total := pgPerLine * lines
	n := (total + perPacket - 1) / perPacket

	sizes := make([]int, n)
	remaining := total
	for i := range sizes {
		if remaining >= perPacket {
			sizes[i] = perPacket
		} else {
			sizes[i] = remaining
		}
		remaining -= sizes[i]
	}

	return &PacketPlan{
		Sizes:          sizes,
		PgroupsPerLine: pgPerLine,
		PgroupBytes:    pgBytes,
		PadLast:        allowPadding && sizes[n-1] < perPacket,
		payloadCap:     perPacket * pgBytes,
	}, nil
}

// Packets returns the packet count per frame/field.
func (p *PacketPlan) Packets() int { return len(p.Sizes) }

// TotalPgroups returns the pixel groups summed across the plan.
func (p *PacketPlan) TotalPgroups() int {
	total := 0
	for _, s := range p.Sizes {
		total += s
	}
	return total
}

// MaxPayloadBytes returns the pixel payload size of a full packet.
func (p *PacketPlan) MaxPayloadBytes() int { return p.payloadCap }

// MaxSRDs returns an upper bound on the SRD headers one packet can carry.
func (p *PacketPlan) MaxSRDs() int {
	perPacket := p.payloadCap / p.PgroupBytes
	return perPacket/p.PgroupsPerLine + 2
}

// PayloadBytes returns the pixel payload size of packet i on the wire,
// including padding of the final packet when enabled.
func (p *PacketPlan) PayloadBytes(i int) int {
	if p.PadLast && i == len(p.Sizes)-1 {
		return p.payloadCap
	}
	return p.Sizes[i] * p.PgroupBytes
}
