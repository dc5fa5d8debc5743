package st2110

import (
	"bytes"
	"testing"

	"github.com/pion/rtp"
)

func testAudioDescriptor() *AudioDescriptor {
	return &AudioDescriptor{
		SampleRate:  48000,
		Channels:    2,
		BitDepth:    24,
		PTimeUS:     1000,
		PayloadType: 97,
		SSRC:        0x5678,
	}
}

func toneChunk(desc *AudioDescriptor, samples int, fill *byte) *AudioChunk {
	data := make([]byte, samples*desc.BytesPerSampleFrame())
	for i := range data {
		data[i] = *fill
		*fill++
	}
	return &AudioChunk{
		Data:        data,
		SampleRate:  desc.SampleRate,
		Channels:    desc.Channels,
		SampleCount: samples,
		BitDepth:    desc.BitDepth,
	}
}

func TestAudioDescriptorStride(t *testing.T) {
	desc := testAudioDescriptor()
	if got := desc.SamplesPerPacket(); got != 48 {
		t.Errorf("SamplesPerPacket() = %d, want 48 (48 kHz at 1 ms)", got)
	}
	if got := desc.StrideBytes(); got != 48*2*3 {
		t.Errorf("StrideBytes() = %d, want %d", got, 48*2*3)
	}

	desc.PTimeUS = 125 // ST 2110-31 class B
	if got := desc.SamplesPerPacket(); got != 6 {
		t.Errorf("SamplesPerPacket() at 125us = %d, want 6", got)
	}
}

func TestAudioPacketizerStrides(t *testing.T) {
	desc := testAudioDescriptor()
	cell := &TimingCell{}
	pkt, err := NewAudioPacketizer(desc, cell)
	if err != nil {
		t.Fatalf("NewAudioPacketizer failed: %v", err)
	}

	// 3 x 1000 samples: 62 full strides of 48, 24 samples carried over.
	var fill byte
	var source []byte
	for i := 0; i < 3; i++ {
		c := toneChunk(desc, 1000, &fill)
		source = append(source, c.Data...)
		if err := pkt.Push(c); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}
	if got := pkt.BufferedSamples(); got != 3000 {
		t.Fatalf("BufferedSamples() = %d, want 3000", got)
	}

	var sent []byte
	var prevSeq uint16
	count := 0
	buf := make([]byte, pkt.MaxPacketBytes())
	for {
		n, ok, err := pkt.NextPacket(buf)
		if err != nil {
			t.Fatalf("NextPacket failed: %v", err)
		}
		if !ok {
			break
		}
		var hdr rtp.Header
		hn, err := hdr.Unmarshal(buf[:n])
		if err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if hdr.Marker {
			t.Error("audio packet has marker set")
		}
		if hdr.PayloadType != desc.PayloadType || hdr.SSRC != desc.SSRC {
			t.Fatalf("header PT/SSRC = %d/%d", hdr.PayloadType, hdr.SSRC)
		}
		if want := uint32(count * 48); hdr.Timestamp != want {
			t.Fatalf("packet %d timestamp = %d, want %d", count, hdr.Timestamp, want)
		}
		if count > 0 && hdr.SequenceNumber != prevSeq+1 {
			t.Fatalf("packet %d sequence = %d, want %d", count, hdr.SequenceNumber, prevSeq+1)
		}
		prevSeq = hdr.SequenceNumber
		if n-hn != desc.StrideBytes() {
			t.Fatalf("packet %d payload = %d bytes, want %d", count, n-hn, desc.StrideBytes())
		}
		sent = append(sent, buf[hn:n]...)
		count++
	}

	if count != 62 {
		t.Fatalf("drained %d strides, want 62", count)
	}
	if got := pkt.BufferedSamples(); got != 24 {
		t.Errorf("carried over %d samples, want 24", got)
	}
	// No sample lost, duplicated, or reordered across chunk boundaries.
	if !bytes.Equal(sent, source[:len(sent)]) {
		t.Error("sent payload diverges from the source PCM")
	}

	// The carry-over completes once the next chunk arrives.
	if err := pkt.Push(toneChunk(desc, 24, &fill)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if _, ok, _ := pkt.NextPacket(buf); !ok {
		t.Error("full stride after top-up not emitted")
	}
}

func TestAudioPacketizerRejectsMismatchedChunk(t *testing.T) {
	pkt, err := NewAudioPacketizer(testAudioDescriptor(), &TimingCell{})
	if err != nil {
		t.Fatalf("NewAudioPacketizer failed: %v", err)
	}
	bad := &AudioChunk{Data: make([]byte, 96), SampleRate: 44100, Channels: 2, BitDepth: 24, SampleCount: 16}
	if err := pkt.Push(bad); err == nil {
		t.Error("Push accepted a 44.1 kHz chunk on a 48 kHz stream")
	}
}

func TestAudioPacketizerReset(t *testing.T) {
	desc := testAudioDescriptor()
	pkt, err := NewAudioPacketizer(desc, &TimingCell{})
	if err != nil {
		t.Fatalf("NewAudioPacketizer failed: %v", err)
	}
	var fill byte
	if err := pkt.Push(toneChunk(desc, 30, &fill)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	pkt.Reset()
	if got := pkt.BufferedSamples(); got != 0 {
		t.Errorf("BufferedSamples() = %d after Reset, want 0", got)
	}
	if _, ok, _ := pkt.NextPacket(make([]byte, pkt.MaxPacketBytes())); ok {
		t.Error("NextPacket emitted a stride from discarded samples")
	}
}
