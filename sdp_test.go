package st2110

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullSessionSDP = `v=0
o=- 123456 2 IN IP4 192.168.1.10
s=studio feed
t=0 0
m=video 50000 RTP/AVP 96
c=IN IP4 239.10.10.1/64
a=rtpmap:96 raw/90000
a=fmtp:96 sampling=YCbCr-4:2:2; width=1920; height=1080; exactframerate=30000/1001; depth=10; interlace
m=audio 50010 RTP/AVP 97
c=IN IP4 239.10.10.2/64
a=rtpmap:97 L24/48000/2
a=ptime:1
m=video 50020 RTP/AVP 100
c=IN IP4 239.10.10.3/64
a=rtpmap:100 smpte291/90000
a=fmtp:100 DID_SDID={0x61,0x02}
`

func TestParseSessionFull(t *testing.T) {
	sd, err := ParseSession([]byte(fullSessionSDP))
	require.NoError(t, err)

	require.NotNil(t, sd.Video)
	assert.Equal(t, 1920, sd.Video.Width)
	assert.Equal(t, 1080, sd.Video.Height)
	assert.Equal(t, NewRational(30000, 1001), sd.Video.FrameRate)
	assert.Equal(t, PixelFormatYUV422P10, sd.Video.Format)
	assert.True(t, sd.Video.Interlaced)
	assert.Equal(t, uint8(96), sd.Video.PayloadType)
	require.NotNil(t, sd.Video.Dest)
	assert.Equal(t, "239.10.10.1:50000", sd.Video.Dest.String())

	require.NotNil(t, sd.Audio)
	assert.Equal(t, 48000, sd.Audio.SampleRate)
	assert.Equal(t, 2, sd.Audio.Channels)
	assert.Equal(t, 24, sd.Audio.BitDepth)
	assert.Equal(t, int64(1000), sd.Audio.PTimeUS)
	assert.Equal(t, uint8(97), sd.Audio.PayloadType)
	assert.Equal(t, "239.10.10.2:50010", sd.Audio.Dest.String())

	require.NotNil(t, sd.Anc)
	assert.Equal(t, uint8(0x61), sd.Anc.DID)
	assert.Equal(t, uint8(0x02), sd.Anc.SDID)
	assert.Equal(t, uint8(100), sd.Anc.PayloadType)
	// The ancillary stream inherits the video cadence.
	assert.Equal(t, sd.Video.FrameRate, sd.Anc.FrameRate)
	assert.True(t, sd.Anc.Interlaced)

	// Each stream draws an independent SSRC.
	assert.NotEqual(t, sd.Video.SSRC, sd.Audio.SSRC)
}

func TestParseSessionVideoOnlyDefaults(t *testing.T) {
	raw := `v=0
o=- 1 1 IN IP4 10.0.0.1
s=-
c=IN IP4 239.0.0.7
t=0 0
m=video 5004 RTP/AVP 112
a=rtpmap:112 raw/90000
a=fmtp:112 width=1280; height=720; exactframerate=50
`
	sd, err := ParseSession([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, sd.Video)
	// Depth defaults to 8; the session connection line supplies the address.
	assert.Equal(t, PixelFormatYUV422P, sd.Video.Format)
	assert.False(t, sd.Video.Interlaced)
	assert.Equal(t, "239.0.0.7:5004", sd.Video.Dest.String())
	assert.Nil(t, sd.Audio)
	assert.Nil(t, sd.Anc)
}

func TestParseSessionErrors(t *testing.T) {
	base := func(mangle func(string) string) []byte {
		return []byte(mangle(fullSessionSDP))
	}
	cases := []struct {
		name string
		raw  []byte
	}{
		{"bad sampling", base(func(s string) string {
			return strings.Replace(s, "YCbCr-4:2:2", "YCbCr-4:2:0", 1)
		})},
		{"bad depth", base(func(s string) string {
			return strings.Replace(s, "depth=10", "depth=12", 1)
		})},
		{"missing width", base(func(s string) string {
			return strings.Replace(s, "width=1920; ", "", 1)
		})},
		{"bad address", base(func(s string) string {
			return strings.Replace(s, "239.10.10.1/64", "239.10.300.1", 1)
		})},
		{"bad DID_SDID", base(func(s string) string {
			return strings.Replace(s, "{0x61,0x02}", "{0x61}", 1)
		})},
		{"unsupported audio encoding", base(func(s string) string {
			return strings.Replace(s, "L24/48000/2", "opus/48000/2", 1)
		})},
		{"ancillary without video", []byte(`v=0
o=- 1 1 IN IP4 10.0.0.1
s=-
t=0 0
m=video 5004 RTP/AVP 100
c=IN IP4 239.0.0.7
a=rtpmap:100 smpte291/90000
a=fmtp:100 DID_SDID={0x61,0x02}
`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSession(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestParseDottedQuad(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		quad [4]byte
	}{
		{"239.1.2.3", true, [4]byte{239, 1, 2, 3}},
		{"0.0.0.0", true, [4]byte{0, 0, 0, 0}},
		{"255.255.255.255", true, [4]byte{255, 255, 255, 255}},
		{"256.1.1.1", false, [4]byte{}},
		{"1.2.3", false, [4]byte{}},
		{"1.2.3.4.5", false, [4]byte{}},
		{"1..2.3", false, [4]byte{}},
		{"a.b.c.d", false, [4]byte{}},
		{"", false, [4]byte{}},
		{"1.2.3.0004", false, [4]byte{}},
	}
	for _, tc := range cases {
		quad, ok := parseDottedQuad(tc.in)
		if ok != tc.ok {
			t.Errorf("parseDottedQuad(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && quad != tc.quad {
			t.Errorf("parseDottedQuad(%q) = %v, want %v", tc.in, quad, tc.quad)
		}
	}
}

func TestValidateAgainstSource(t *testing.T) {
	d := testVideoDescriptor(1920, 1080, PixelFormatYUV422P10, false)
	assert.NoError(t, d.ValidateAgainstSource(1920, 1080, PixelFormatYUV422P10))
	assert.Error(t, d.ValidateAgainstSource(1280, 720, PixelFormatYUV422P10))
	assert.Error(t, d.ValidateAgainstSource(1920, 1080, PixelFormatYUV422P))
}
