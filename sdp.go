package st2110

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
)

// ErrBadSDP marks a session description the transmitter cannot serve.
var ErrBadSDP = errors.New("st2110: invalid session description")

// ParseSession parses an RFC 4566 session description carrying ST 2110
// media descriptions (raw video, L16/L24 audio, smpte291 ancillary) into
// stream descriptors. Parameter mismatches and unsupported formats are
// configuration errors, reported before any pipeline thread starts.
func ParseSession(raw []byte) (*SessionDescription, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("parse sdp: %w", err)
	}

	sessAddr := ""
	if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		sessAddr = sd.ConnectionInformation.Address.Address
	}

	out := &SessionDescription{}
	for _, m := range sd.MediaDescriptions {
		addr := sessAddr
		if m.ConnectionInformation != nil && m.ConnectionInformation.Address != nil {
			addr = m.ConnectionInformation.Address.Address
		}
		dest, err := resolveDest(addr, m.MediaName.Port.Value)
		if err != nil {
			return nil, err
		}
		pt, enc, clock, channels, err := parseRTPMap(m)
		if err != nil {
			return nil, err
		}

		switch {
		case m.MediaName.Media == "video" && strings.EqualFold(enc, "raw"):
			if out.Video != nil {
				return nil, fmt.Errorf("%w: duplicate video media", ErrBadSDP)
			}
			v, err := parseVideoMedia(m, pt, dest)
			if err != nil {
				return nil, err
			}
			out.Video = v

		case m.MediaName.Media == "video" && strings.EqualFold(enc, "smpte291"):
			if out.Anc != nil {
				return nil, fmt.Errorf("%w: duplicate ancillary media", ErrBadSDP)
			}
			a, err := parseAncMedia(m, pt, dest)
			if err != nil {
				return nil, err
			}
			out.Anc = a

		case m.MediaName.Media == "audio":
			if out.Audio != nil {
				return nil, fmt.Errorf("%w: duplicate audio media", ErrBadSDP)
			}
			a, err := parseAudioMedia(m, pt, enc, clock, channels, dest)
			if err != nil {
				return nil, err
			}
			out.Audio = a

		default:
			return nil, fmt.Errorf("%w: unsupported media %s/%s", ErrBadSDP, m.MediaName.Media, enc)
		}
	}

	if out.Video == nil && out.Audio == nil && out.Anc == nil {
		return nil, fmt.Errorf("%w: no media descriptions", ErrBadSDP)
	}
	// Ancillary follows the video cadence so field polarity stays correlated.
	if out.Anc != nil {
		if out.Video == nil {
			return nil, fmt.Errorf("%w: ancillary media without video", ErrBadSDP)
		}
		out.Anc.FrameRate = out.Video.FrameRate
		out.Anc.Interlaced = out.Video.Interlaced
	}
	return out, nil
}

// ValidateAgainstSource checks SDP-declared video parameters against what
// the decoder actually produces; a disagreement is fatal configuration.
func (d *VideoDescriptor) ValidateAgainstSource(width, height int, format PixelFormat) error {
	if d.Width != width || d.Height != height {
		return fmt.Errorf("%w: sdp declares %dx%d, source is %dx%d",
			ErrBadDescriptor, d.Width, d.Height, width, height)
	}
	if d.Format.BitDepth() != format.BitDepth() {
		return fmt.Errorf("%w: sdp declares %d-bit, source is %d-bit",
			ErrBadDescriptor, d.Format.BitDepth(), format.BitDepth())
	}
	return nil
}

func parseRTPMap(m *sdp.MediaDescription) (pt uint8, enc string, clock, channels int, err error) {
	val, ok := m.Attribute("rtpmap")
	if !ok {
		return 0, "", 0, 0, fmt.Errorf("%w: %s media without rtpmap", ErrBadSDP, m.MediaName.Media)
	}
	ptStr, encSpec, ok := strings.Cut(val, " ")
	if !ok {
		return 0, "", 0, 0, fmt.Errorf("%w: rtpmap %q", ErrBadSDP, val)
	}
	ptVal, err := strconv.Atoi(ptStr)
	if err != nil || ptVal < 0 || ptVal > 127 {
		return 0, "", 0, 0, fmt.Errorf("%w: rtpmap payload type %q", ErrBadSDP, ptStr)
	}
	parts := strings.Split(encSpec, "/")
	enc = parts[0]
	if len(parts) > 1 {
		clock, _ = strconv.Atoi(parts[1])
	}
	channels = 1
	if len(parts) > 2 {
		channels, _ = strconv.Atoi(parts[2])
	}
	return uint8(ptVal), enc, clock, channels, nil
}

// fmtpParams splits an fmtp attribute into its key=value pairs; bare tokens
// (such as "interlace") map to an empty value.
func fmtpParams(m *sdp.MediaDescription) map[string]string {
	params := map[string]string{}
	val, ok := m.Attribute("fmtp")
	if !ok {
		return params
	}
	if _, rest, found := strings.Cut(val, " "); found {
		val = rest
	}
	for _, tok := range strings.Split(val, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		k, v, _ := strings.Cut(tok, "=")
		params[k] = v
	}
	return params
}

func parseVideoMedia(m *sdp.MediaDescription, pt uint8, dest *net.UDPAddr) (*VideoDescriptor, error) {
	p := fmtpParams(m)
	if sampling := p["sampling"]; sampling != "" && sampling != "YCbCr-4:2:2" {
		return nil, fmt.Errorf("%w: sampling %q", ErrUnsupportedFormat, p["sampling"])
	}
	width, err := strconv.Atoi(p["width"])
	if err != nil {
		return nil, fmt.Errorf("%w: video width %q", ErrBadSDP, p["width"])
	}
	height, err := strconv.Atoi(p["height"])
	if err != nil {
		return nil, fmt.Errorf("%w: video height %q", ErrBadSDP, p["height"])
	}
	rate, err := ParseRational(p["exactframerate"])
	if err != nil {
		return nil, fmt.Errorf("%w: exactframerate: %v", ErrBadSDP, err)
	}
	depth := 8
	if d := p["depth"]; d != "" {
		if depth, err = strconv.Atoi(d); err != nil {
			return nil, fmt.Errorf("%w: video depth %q", ErrBadSDP, d)
		}
	}
	var format PixelFormat
	switch depth {
	case 8:
		format = PixelFormatYUV422P
	case 10:
		format = PixelFormatYUV422P10
	default:
		return nil, fmt.Errorf("%w: %d-bit video", ErrUnsupportedFormat, depth)
	}
	_, interlaced := p["interlace"]

	desc := &VideoDescriptor{
		Width:       width,
		Height:      height,
		FrameRate:   rate,
		Format:      format,
		Interlaced:  interlaced,
		PayloadType: pt,
		SSRC:        newSSRC(),
		Dest:        dest,
	}
	return desc, desc.Validate()
}

func parseAudioMedia(m *sdp.MediaDescription, pt uint8, enc string, clock, channels int, dest *net.UDPAddr) (*AudioDescriptor, error) {
	var depth int
	switch strings.ToUpper(enc) {
	case "L16":
		depth = 16
	case "L24":
		depth = 24
	default:
		return nil, fmt.Errorf("%w: audio encoding %q", ErrUnsupportedFormat, enc)
	}
	ptimeUS := int64(1000) // ST 2110-30 class A default: 1 ms
	if v, ok := m.Attribute("ptime"); ok {
		ms, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("%w: ptime %q", ErrBadSDP, v)
		}
		ptimeUS = int64(ms * 1000)
	}
	desc := &AudioDescriptor{
		SampleRate:  clock,
		Channels:    channels,
		BitDepth:    depth,
		PTimeUS:     ptimeUS,
		PayloadType: pt,
		SSRC:        newSSRC(),
		Dest:        dest,
	}
	return desc, desc.Validate()
}

func parseAncMedia(m *sdp.MediaDescription, pt uint8, dest *net.UDPAddr) (*AncDescriptor, error) {
	p := fmtpParams(m)
	did, sdid, err := parseDIDSDID(p["DID_SDID"])
	if err != nil {
		return nil, err
	}
	// Frame rate and scan type are filled in from the video media.
	return &AncDescriptor{
		DID:         did,
		SDID:        sdid,
		PayloadType: pt,
		SSRC:        newSSRC(),
		Dest:        dest,
	}, nil
}

// parseDIDSDID parses the RFC 8331 form "{0x61,0x02}".
func parseDIDSDID(v string) (uint8, uint8, error) {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "{")
	v = strings.TrimSuffix(v, "}")
	didStr, sdidStr, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: DID_SDID %q", ErrBadSDP, v)
	}
	did, err := strconv.ParseUint(strings.TrimSpace(didStr), 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: DID %q", ErrBadSDP, didStr)
	}
	sdid, err := strconv.ParseUint(strings.TrimSpace(sdidStr), 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: SDID %q", ErrBadSDP, sdidStr)
	}
	return uint8(did), uint8(sdid), nil
}

// resolveDest validates the connection address (optionally carrying the SDP
// "/ttl" suffix) and combines it with the media port.
func resolveDest(addr string, port int) (*net.UDPAddr, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: media without connection address", ErrBadSDP)
	}
	base, _, _ := strings.Cut(addr, "/")
	quad, ok := parseDottedQuad(base)
	if !ok {
		return nil, fmt.Errorf("%w: connection address %q", ErrBadSDP, addr)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: media port %d", ErrBadSDP, port)
	}
	return &net.UDPAddr{
		IP:   net.IPv4(quad[0], quad[1], quad[2], quad[3]),
		Port: port,
	}, nil
}

// parseDottedQuad validates an IPv4 literal with a single iterative scan.
func parseDottedQuad(s string) ([4]byte, bool) {
	var quad [4]byte
	part, val, digits := 0, 0, 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if digits == 0 || part >= 4 {
				return quad, false
			}
			quad[part] = byte(val)
			part++
			val, digits = 0, 0
			continue
		}
		c := s[i]
		if c < '0' || c > '9' || digits == 3 {
			return quad, false
		}
		val = val*10 + int(c-'0')
		if val > 255 {
			return quad, false
		}
		digits++
	}
	return quad, part == 4
}

// newSSRC derives a random RTP synchronization source identifier.
func newSSRC() uint32 {
	u := uuid.New()
	return binary.BigEndian.Uint32(u[:4])
}
