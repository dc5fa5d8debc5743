package st2110

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultPayloadSize is the default per-packet pixel payload budget in
// bytes, after RTP and payload-header overhead (UDP safe).
const DefaultPayloadSize = 1200

// DefaultQueueDepth bounds each inter-stage queue.
const DefaultQueueDepth = 8

// SessionConfig configures one playback session (one session description
// plus its media sources and sinks). Nil media members disable that stream.
type SessionConfig struct {
	Video       *VideoDescriptor
	VideoSource VideoSource
	VideoSink   StreamSink

	Audio       *AudioDescriptor
	AudioSource AudioSource
	AudioSink   StreamSink

	Anc       *AncDescriptor
	AncSource AncSource
	AncSink   StreamSink

	Loop        bool // rewind sources at end-of-stream and keep sending
	DisableSync bool // let looping streams re-align independently

	PayloadSize     int  // pixel payload budget per video packet; DefaultPayloadSize when 0
	AllowPadding    bool // zero-pad the last packet of each frame/field to full size
	TROModification *int // trs units subtracted from TRO_DEFAULT; nil selects DefaultTROModification

	QueueDepth int           // per-queue unit bound; DefaultQueueDepth when 0
	Guard      time.Duration // loop epoch guard; DefaultGuardInterval when 0
	Clock      Clock         // nil selects SystemClock
	Logger     *logrus.Logger
}

// SessionHandles aggregates the state shared between a session's goroutines:
// the per-stream timing cells, the inter-stage queues, and the synchronizer.
// The Session owns it; threads borrow it.
type SessionHandles struct {
	VideoCell *TimingCell
	AudioCell *TimingCell
	AncCell   *TimingCell

	videoDecoded *UnitQueue // reader -> converter
	videoSend    *UnitQueue // converter -> sender
	audioDecoded *UnitQueue // reader -> wire stage
	audioSend    *UnitQueue // wire stage -> sender
	ancSend      *UnitQueue // reader -> sender

	Sync *Synchronizer // nil when synchronization is disabled
}

// Session owns the reader -> transform -> sender goroutine chains for one
// playback session. All configuration errors surface from NewSession, before
// any goroutine starts.
type Session struct {
	id      uuid.UUID
	cfg     SessionConfig
	clock   Clock
	log     *logrus.Entry
	handles SessionHandles

	videoConv   *VideoConverter
	videoSender *VideoSender
	audioSender *AudioSender
	ancSender   *AncSender
}

// NewSession validates the configuration and builds the pipeline. It does
// not start any goroutine; call Run.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Video == nil && cfg.Audio == nil && cfg.Anc == nil {
		return nil, fmt.Errorf("%w: no media configured", ErrBadDescriptor)
	}
	if cfg.Anc != nil && cfg.Video == nil {
		return nil, fmt.Errorf("%w: ancillary requires a video stream to follow", ErrBadDescriptor)
	}
	if cfg.PayloadSize == 0 {
		cfg.PayloadSize = DefaultPayloadSize
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	troMod := -1
	if cfg.TROModification != nil {
		troMod = *cfg.TROModification
	}

	s := &Session{
		id:    uuid.New(),
		cfg:   cfg,
		clock: cfg.Clock,
	}
	s.log = cfg.Logger.WithField("session", s.id.String()[:8])

	var syncStreams int
	if cfg.Video != nil {
		syncStreams++
	}
	if cfg.Audio != nil {
		syncStreams++
	}
	if cfg.Loop && !cfg.DisableSync && syncStreams > 0 {
		s.handles.Sync = NewSynchronizer(syncStreams, cfg.Guard)
	}

	if cfg.Video != nil {
		if cfg.VideoSource == nil || cfg.VideoSink == nil {
			return nil, fmt.Errorf("%w: video source and sink are required", ErrBadDescriptor)
		}
		if err := cfg.Video.Validate(); err != nil {
			return nil, err
		}
		plan, err := NewPacketPlan(cfg.Video.Width, cfg.Video.FieldHeight(), cfg.Video.Format,
			cfg.PayloadSize, cfg.AllowPadding)
		if err != nil {
			return nil, err
		}
		cell := &TimingCell{}
		pkt, err := NewVideoPacketizer(cfg.Video, plan, cell)
		if err != nil {
			return nil, err
		}
		s.handles.VideoCell = cell
		s.handles.videoDecoded = NewUnitQueue(cfg.QueueDepth)
		s.handles.videoSend = NewUnitQueue(cfg.QueueDepth)
		s.videoConv = NewVideoConverter(cfg.Video.Format)
		s.videoSender = NewVideoSender(VideoSenderConfig{
			Descriptor:   cfg.Video,
			Packetizer:   pkt,
			Calculator:   NewVideoTimeCalculator(cfg.Video, plan.Packets(), troMod),
			Cell:         cell,
			Input:        s.handles.videoSend,
			Sink:         cfg.VideoSink,
			Synchronizer: s.handles.Sync,
			Loop:         cfg.Loop,
			Clock:        s.clock,
			Log:          s.log.WithField("stream", "video"),
		})
	}

	if cfg.Audio != nil {
		if cfg.AudioSource == nil || cfg.AudioSink == nil {
			return nil, fmt.Errorf("%w: audio source and sink are required", ErrBadDescriptor)
		}
		if err := cfg.Audio.Validate(); err != nil {
			return nil, err
		}
		cell := &TimingCell{}
		pkt, err := NewAudioPacketizer(cfg.Audio, cell)
		if err != nil {
			return nil, err
		}
		s.handles.AudioCell = cell
		s.handles.audioDecoded = NewUnitQueue(cfg.QueueDepth)
		s.handles.audioSend = NewUnitQueue(cfg.QueueDepth)
		s.audioSender = NewAudioSender(AudioSenderConfig{
			Descriptor:   cfg.Audio,
			Packetizer:   pkt,
			Calculator:   NewAudioTimeCalculator(cfg.Audio),
			Cell:         cell,
			Input:        s.handles.audioSend,
			Sink:         cfg.AudioSink,
			Synchronizer: s.handles.Sync,
			Loop:         cfg.Loop,
			Clock:        s.clock,
			Log:          s.log.WithField("stream", "audio"),
		})
	}

	if cfg.Anc != nil {
		if cfg.AncSource == nil || cfg.AncSink == nil {
			return nil, fmt.Errorf("%w: ancillary source and sink are required", ErrBadDescriptor)
		}
		if err := cfg.Anc.Validate(); err != nil {
			return nil, err
		}
		cell := &TimingCell{}
		pkt, err := NewAncPacketizer(cfg.Anc, cell)
		if err != nil {
			return nil, err
		}
		s.handles.AncCell = cell
		s.handles.ancSend = NewUnitQueue(cfg.QueueDepth)
		s.ancSender = NewAncSender(AncSenderConfig{
			Descriptor:   cfg.Anc,
			Packetizer:   pkt,
			Calculator:   NewAncTimeCalculator(cfg.Anc),
			Cell:         cell,
			Input:        s.handles.ancSend,
			Sink:         cfg.AncSink,
			Synchronizer: s.handles.Sync,
			Loop:         cfg.Loop,
			Clock:        s.clock,
			Log:          s.log.WithField("stream", "anc"),
		})
	}

	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Handles exposes the shared timing cells and synchronizer, mainly for
// inspection in tests and tooling.
func (s *Session) Handles() *SessionHandles { return &s.handles }

// Run starts every stage goroutine and blocks until the session drains (all
// sources hit end-of-stream in non-loop mode), the context is cancelled, or
// a stream fails. The first error cancels the shared context, which unwinds
// every other stage at its next blocking point.
func (s *Session) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"video": s.cfg.Video != nil,
		"audio": s.cfg.Audio != nil,
		"anc":   s.cfg.Anc != nil,
		"loop":  s.cfg.Loop,
	}).Info("session starting")

	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.Video != nil {
		g.Go(func() error {
			return s.runVideoReader(ctx)
		})
		g.Go(func() error {
			return s.runVideoConvert(ctx)
		})
		g.Go(func() error {
			return s.videoSender.Run(ctx)
		})
	}
	if s.cfg.Audio != nil {
		g.Go(func() error {
			return s.runAudioReader(ctx)
		})
		g.Go(func() error {
			return s.runAudioWire(ctx)
		})
		g.Go(func() error {
			return s.audioSender.Run(ctx)
		})
	}
	if s.cfg.Anc != nil {
		g.Go(func() error {
			return s.runAncReader(ctx)
		})
		g.Go(func() error {
			return s.ancSender.Run(ctx)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.WithError(err).Error("session failed")
		return err
	}
	s.log.Info("session finished")
	return nil
}

func (s *Session) runVideoReader(ctx context.Context) error {
	src := s.cfg.VideoSource
	out := s.handles.videoDecoded
	for {
		f, err := src.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			if err := out.Push(ctx, EndOfStream{}); err != nil {
				return err
			}
			if !s.cfg.Loop {
				return nil
			}
			if err := src.Seek(0); err != nil {
				return fmt.Errorf("rewind video source: %w", err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read video frame: %w", err)
		}
		if err := out.Push(ctx, VideoUnit{Frame: f}); err != nil {
			return err
		}
	}
}

func (s *Session) runVideoConvert(ctx context.Context) error {
	in, out := s.handles.videoDecoded, s.handles.videoSend
	for {
		u, err := in.Pop(ctx)
		if err != nil {
			return err
		}
		switch u := u.(type) {
		case VideoUnit:
			f, err := s.videoConv.Convert(u.Frame)
			if err != nil {
				return err
			}
			if err := out.Push(ctx, VideoUnit{Frame: f}); err != nil {
				return err
			}
		case EndOfStream:
			if err := out.Push(ctx, u); err != nil {
				return err
			}
			if !s.cfg.Loop {
				return nil
			}
		default:
			return fmt.Errorf("st2110: unexpected %T on video decode queue", u)
		}
	}
}

func (s *Session) runAudioReader(ctx context.Context) error {
	src := s.cfg.AudioSource
	out := s.handles.audioDecoded
	for {
		c, err := src.ReadChunk(ctx)
		if errors.Is(err, io.EOF) {
			if err := out.Push(ctx, EndOfStream{}); err != nil {
				return err
			}
			if !s.cfg.Loop {
				return nil
			}
			if err := src.Seek(0); err != nil {
				return fmt.Errorf("rewind audio source: %w", err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read audio chunk: %w", err)
		}
		if err := out.Push(ctx, AudioUnit{Chunk: c}); err != nil {
			return err
		}
	}
}

func (s *Session) runAudioWire(ctx context.Context) error {
	in, out := s.handles.audioDecoded, s.handles.audioSend
	for {
		u, err := in.Pop(ctx)
		if err != nil {
			return err
		}
		switch u := u.(type) {
		case AudioUnit:
			if err := out.Push(ctx, AudioUnit{Chunk: HostToNetworkOrder(u.Chunk)}); err != nil {
				return err
			}
		case EndOfStream:
			if err := out.Push(ctx, u); err != nil {
				return err
			}
			if !s.cfg.Loop {
				return nil
			}
		default:
			return fmt.Errorf("st2110: unexpected %T on audio decode queue", u)
		}
	}
}

func (s *Session) runAncReader(ctx context.Context) error {
	src := s.cfg.AncSource
	out := s.handles.ancSend
	for {
		d, err := src.ReadData(ctx)
		if errors.Is(err, io.EOF) {
			if err := out.Push(ctx, EndOfStream{}); err != nil {
				return err
			}
			if !s.cfg.Loop {
				return nil
			}
			if err := src.Seek(0); err != nil {
				return fmt.Errorf("rewind ancillary source: %w", err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read ancillary data: %w", err)
		}
		if err := out.Push(ctx, AncUnit{Data: d}); err != nil {
			return err
		}
	}
}
