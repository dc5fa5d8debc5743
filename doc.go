// Package st2110 implements a demo SMPTE ST 2110 transmitter: it slices raw
// video frames, PCM audio, and SMPTE-291 ancillary data into standards-
// compliant RTP packet streams and hands them to a transmission sink on a
// precisely paced wall-clock schedule.
//
// Key pieces include:
//   - VideoPacketizer, AudioPacketizer, AncPacketizer (ST 2110-20/-30/-40 wire framing)
//   - StreamTimeCalculator and TimingCell (frame-aligned send scheduling with
//     the ST 2110-21 timing reference offset)
//   - Synchronizer (cross-stream epoch alignment at loop boundaries)
//   - Session (per-media reader -> transform -> sender goroutine chains)
//   - ParseSession (RFC 4566 SDP with ST 2110 fmtp attributes)
//   - PatternVideoSource/ToneAudioSource and UDPSink for runnable demos
//
// # Architecture
//
//	Video: VideoSource -> VideoConverter -> VideoSender -> StreamSink
//	Audio: AudioSource -> audio wire stage -> AudioSender -> StreamSink
//	Anc:   AncSource   ------------------->  AncSender   -> StreamSink
//
// The Synchronizer sits across the senders: in loop mode every stream reports
// end-of-loop, and all streams resume from a single shared epoch.
//
// Decoding, the hardware transmission engine, and receive-side reassembly are
// out of scope; they are modeled by the VideoSource/AudioSource/AncSource and
// StreamSink interfaces.
package st2110
