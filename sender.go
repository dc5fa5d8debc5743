package st2110

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// commitRetryLimit bounds the spin-retry loop on a busy sink slot.
const commitRetryLimit = 1 << 20

// commitWithRetry retries transient ErrSinkBusy commits until the budget or
// the context runs out. Any other sink error is fatal for the stream.
func commitWithRetry(ctx context.Context, sink StreamSink, buf []byte, n int, sendNS int64, flags SendFlags) error {
	for attempt := 0; ; attempt++ {
		err := sink.Commit(buf, n, sendNS, flags)
		if err == nil || !errors.Is(err, ErrSinkBusy) {
			return err
		}
		if attempt >= commitRetryLimit {
			return fmt.Errorf("st2110: commit retry budget exhausted: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
}

func senderLog(log *logrus.Entry) *logrus.Entry {
	if log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return log
}

// VideoSenderConfig wires one ST 2110-20 sender.
type VideoSenderConfig struct {
	Descriptor   *VideoDescriptor
	Packetizer   *VideoPacketizer
	Calculator   *StreamTimeCalculator
	Cell         *TimingCell
	Input        *UnitQueue
	Sink         StreamSink
	Synchronizer *Synchronizer // nil disables cross-stream synchronization
	Loop         bool
	Clock        Clock
	Log          *logrus.Entry
}

// VideoSender pulls decoded frames from its queue, packetizes each
// frame/field, and commits the packets to the sink on a linear schedule of
// trs-spaced send times starting at the frame's TRO-adjusted start.
type VideoSender struct {
	cfg VideoSenderConfig
	log *logrus.Entry
}

// NewVideoSender creates a video sender.
func NewVideoSender(cfg VideoSenderConfig) *VideoSender {
	return &VideoSender{cfg: cfg, log: senderLog(cfg.Log)}
}

// Run drives the sender until the source drains, the context is cancelled,
// or a fatal sink error occurs. On exit it detaches from the synchronizer so
// peer streams never block on a dead stream.
func (s *VideoSender) Run(ctx context.Context) error {
	defer s.detach()
	s.cfg.Calculator.Apply(s.cfg.Clock.NowNS(), s.cfg.Cell)
	for {
		u, err := s.cfg.Input.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		switch u := u.(type) {
		case VideoUnit:
			for i := 0; i < s.cfg.Descriptor.FieldsPerFrame(); i++ {
				if err := s.sendFrameField(ctx, u.Frame); err != nil {
					return err
				}
			}
		case EndOfStream:
			if !s.cfg.Loop {
				s.log.Info("video stream drained")
				return nil
			}
			if err := s.resync(ctx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("st2110: unexpected %T on video queue", u)
		}
	}
}

func (s *VideoSender) detach() {
	if s.cfg.Synchronizer != nil {
		s.cfg.Synchronizer.Detach()
	}
}

func (s *VideoSender) sendFrameField(ctx context.Context, f *VideoFrame) error {
	pkt := s.cfg.Packetizer
	if err := pkt.BeginFrame(f); err != nil {
		return err
	}
	base := s.cfg.Cell.NextSend()
	trs := s.cfg.Calculator.TRSNS()
	for i := 0; ; i++ {
		buf, err := s.cfg.Sink.AcquireBuffer(pkt.MaxPacketBytes())
		if err != nil {
			return fmt.Errorf("acquire packet buffer: %w", err)
		}
		n, last, err := pkt.NextPacket(buf)
		if err != nil {
			return err
		}
		if err := commitWithRetry(ctx, s.cfg.Sink, buf, n, int64(base+float64(i)*trs), 0); err != nil {
			return err
		}
		if last {
			break
		}
	}
	s.cfg.Cell.AdvanceNextSend(s.cfg.Calculator.UnitNS())
	return nil
}

func (s *VideoSender) resync(ctx context.Context) error {
	// Park the engine behind the last committed packet while the streams
	// re-align.
	if err := s.cfg.Sink.Commit(nil, 0, 0, SendFlagPause); err != nil && !errors.Is(err, ErrSinkBusy) {
		return err
	}
	now := s.cfg.Clock.NowNS()
	if s.cfg.Synchronizer == nil {
		s.cfg.Calculator.Apply(now, s.cfg.Cell)
		return nil
	}
	epoch, err := s.cfg.Synchronizer.Report(s.cfg.Calculator.Next(now)).Wait(ctx)
	if err != nil {
		return err
	}
	s.cfg.Cell.SetNextSend(epoch)
	s.cfg.Cell.SetTick(MediaClock{Rate: VideoClockRate}.TicksAtF(epoch + s.cfg.Calculator.TRONS()))
	s.log.WithField("epoch_ns", int64(epoch)).Debug("resynchronized to shared epoch")
	return nil
}

// AudioSenderConfig wires one ST 2110-30/31 sender.
type AudioSenderConfig struct {
	Descriptor   *AudioDescriptor
	Packetizer   *AudioPacketizer
	Calculator   *StreamTimeCalculator
	Cell         *TimingCell
	Input        *UnitQueue
	Sink         StreamSink
	Synchronizer *Synchronizer
	Loop         bool
	Clock        Clock
	Log          *logrus.Entry
}

// AudioSender pulls decoded chunks, packs full strides, and commits each
// stride at its ptime-aligned send time.
type AudioSender struct {
	cfg AudioSenderConfig
	log *logrus.Entry
}

// NewAudioSender creates an audio sender.
func NewAudioSender(cfg AudioSenderConfig) *AudioSender {
	return &AudioSender{cfg: cfg, log: senderLog(cfg.Log)}
}

// Run drives the sender; see VideoSender.Run for the contract.
func (s *AudioSender) Run(ctx context.Context) error {
	defer s.detach()
	s.cfg.Calculator.Apply(s.cfg.Clock.NowNS(), s.cfg.Cell)
	for {
		u, err := s.cfg.Input.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		switch u := u.(type) {
		case AudioUnit:
			if err := s.cfg.Packetizer.Push(u.Chunk); err != nil {
				return err
			}
			if err := s.drainStrides(ctx); err != nil {
				return err
			}
		case EndOfStream:
			if !s.cfg.Loop {
				s.log.Info("audio stream drained")
				return nil
			}
			if err := s.resync(ctx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("st2110: unexpected %T on audio queue", u)
		}
	}
}

func (s *AudioSender) detach() {
	if s.cfg.Synchronizer != nil {
		s.cfg.Synchronizer.Detach()
	}
}

func (s *AudioSender) drainStrides(ctx context.Context) error {
	pkt := s.cfg.Packetizer
	for pkt.BufferedSamples() >= s.cfg.Descriptor.SamplesPerPacket() {
		buf, err := s.cfg.Sink.AcquireBuffer(pkt.MaxPacketBytes())
		if err != nil {
			return fmt.Errorf("acquire packet buffer: %w", err)
		}
		n, ok, err := pkt.NextPacket(buf)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := commitWithRetry(ctx, s.cfg.Sink, buf, n, int64(s.cfg.Cell.NextSend()), 0); err != nil {
			return err
		}
		s.cfg.Cell.AdvanceNextSend(s.cfg.Calculator.UnitNS())
	}
	return nil
}

func (s *AudioSender) resync(ctx context.Context) error {
	if err := s.cfg.Sink.Commit(nil, 0, 0, SendFlagPause); err != nil && !errors.Is(err, ErrSinkBusy) {
		return err
	}
	// The stride remainder belongs to the finished loop; timestamps restart
	// at the new epoch.
	s.cfg.Packetizer.Reset()
	now := s.cfg.Clock.NowNS()
	if s.cfg.Synchronizer == nil {
		s.cfg.Calculator.Apply(now, s.cfg.Cell)
		return nil
	}
	epoch, err := s.cfg.Synchronizer.Report(s.cfg.Calculator.Next(now)).Wait(ctx)
	if err != nil {
		return err
	}
	s.cfg.Cell.SetNextSend(epoch)
	s.cfg.Cell.SetTick(MediaClock{Rate: uint32(s.cfg.Descriptor.SampleRate)}.TicksAtF(epoch))
	s.log.WithField("epoch_ns", int64(epoch)).Debug("resynchronized to shared epoch")
	return nil
}

// AncSenderConfig wires one ST 2110-40 sender.
type AncSenderConfig struct {
	Descriptor   *AncDescriptor
	Packetizer   *AncPacketizer
	Calculator   *StreamTimeCalculator
	Cell         *TimingCell
	Input        *UnitQueue
	Sink         StreamSink
	Synchronizer *Synchronizer
	Loop         bool
	Clock        Clock
	Log          *logrus.Entry
}

// AncSender sends one ancillary packet per video frame/field. It is not a
// counted synchronization stream: it piggybacks on the video stream's
// end-of-loop report and only observes the shared epoch release.
type AncSender struct {
	cfg AncSenderConfig
	log *logrus.Entry
}

// NewAncSender creates an ancillary sender.
func NewAncSender(cfg AncSenderConfig) *AncSender {
	return &AncSender{cfg: cfg, log: senderLog(cfg.Log)}
}

// Run drives the sender; see VideoSender.Run for the contract.
func (s *AncSender) Run(ctx context.Context) error {
	s.cfg.Calculator.Apply(s.cfg.Clock.NowNS(), s.cfg.Cell)
	var gen uint64
	if s.cfg.Synchronizer != nil {
		gen = s.cfg.Synchronizer.Generation()
	}
	for {
		u, err := s.cfg.Input.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		switch u := u.(type) {
		case AncUnit:
			buf, err := s.cfg.Sink.AcquireBuffer(s.cfg.Packetizer.MaxPacketBytes())
			if err != nil {
				return fmt.Errorf("acquire packet buffer: %w", err)
			}
			n, err := s.cfg.Packetizer.Packetize(u.Data, buf)
			if err != nil {
				return err
			}
			if err := commitWithRetry(ctx, s.cfg.Sink, buf, n, int64(s.cfg.Cell.NextSend()), 0); err != nil {
				return err
			}
			s.cfg.Cell.AdvanceNextSend(s.cfg.Calculator.UnitNS())
		case EndOfStream:
			if !s.cfg.Loop {
				s.log.Info("ancillary stream drained")
				return nil
			}
			if err := s.cfg.Sink.Commit(nil, 0, 0, SendFlagPause); err != nil && !errors.Is(err, ErrSinkBusy) {
				return err
			}
			now := s.cfg.Clock.NowNS()
			if s.cfg.Synchronizer == nil {
				s.cfg.Calculator.Apply(now, s.cfg.Cell)
				continue
			}
			epoch, err := s.cfg.Synchronizer.WaitRelease(gen).Wait(ctx)
			if err != nil {
				return err
			}
			gen = s.cfg.Synchronizer.Generation()
			s.cfg.Cell.SetNextSend(epoch)
			s.cfg.Cell.SetTick(MediaClock{Rate: VideoClockRate}.TicksAtF(epoch))
		default:
			return fmt.Errorf("st2110: unexpected %T on ancillary queue", u)
		}
	}
}
