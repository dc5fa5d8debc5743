package st2110

import (
	"context"
	"sync"
	"time"
)

// DefaultGuardInterval is the fixed margin added past the latest stream's
// proposed restart time when computing the shared loop epoch, leaving every
// sender room to rewind its source.
const DefaultGuardInterval = 100 * time.Millisecond

// epochRound is one Armed -> Released cycle of the Synchronizer.
type epochRound struct {
	done  chan struct{}
	epoch float64
}

// EpochWait resolves to the shared next-epoch time once the round releases.
type EpochWait struct {
	round *epochRound
}

// Wait blocks until the epoch is published or ctx is cancelled. The wait is
// interruptible so a shutdown or a dying peer stream never strands a sender.
func (w *EpochWait) Wait(ctx context.Context) (float64, error) {
	select {
	case <-w.round.done:
		return w.round.epoch, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Synchronizer re-aligns looping streams to a common future epoch. It arms
// waiting for every registered stream to report end-of-loop; when the last
// report arrives it publishes a single shared next-epoch time
// (max of the proposals plus the guard interval), resets, and re-arms.
//
// Video and audio register as counted streams; the ancillary sender
// piggybacks on the video count and only observes releases.
type Synchronizer struct {
	mu        sync.Mutex
	streams   int
	guardNS   float64
	reports   int
	proposed  float64
	gen       uint64
	lastEpoch float64 // epoch of the most recent release, for late observers
	round     *epochRound
}

// NewSynchronizer creates a synchronizer for the given number of counted
// streams. A non-positive guard falls back to DefaultGuardInterval.
func NewSynchronizer(streams int, guard time.Duration) *Synchronizer {
	if guard <= 0 {
		guard = DefaultGuardInterval
	}
	return &Synchronizer{
		streams: streams,
		guardNS: float64(guard.Nanoseconds()),
		round:   &epochRound{done: make(chan struct{})},
	}
}

// Report marks one counted stream at end-of-loop with its independently
// computed next start time. The returned wait resolves when all registered
// streams have reported.
func (s *Synchronizer) Report(proposedNS float64) *EpochWait {
	s.mu.Lock()
	defer s.mu.Unlock()
	if proposedNS > s.proposed {
		s.proposed = proposedNS
	}
	s.reports++
	r := s.round
	if s.reports >= s.streams {
		s.releaseLocked()
	}
	return &EpochWait{round: r}
}

// Generation returns the number of releases so far. Observing senders
// capture it at loop start and pass it to WaitRelease.
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// WaitRelease returns a wait that resolves at the first release after
// generation gen. If that release already happened the wait resolves
// immediately, so an observer that reports late never stalls a full loop.
func (s *Synchronizer) WaitRelease(gen uint64) *EpochWait {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen > gen {
		r := &epochRound{done: make(chan struct{}), epoch: s.lastEpoch}
		close(r.done)
		return &EpochWait{round: r}
	}
	return &EpochWait{round: s.round}
}

// Detach removes one counted stream from the group, releasing the current
// round if the remaining streams have all reported. Senders call it when
// unwinding on a fatal error so peers do not hang forever.
func (s *Synchronizer) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams > 0 {
		s.streams--
	}
	if s.reports >= s.streams && s.reports > 0 {
		s.releaseLocked()
	}
}

func (s *Synchronizer) releaseLocked() {
	r := s.round
	r.epoch = s.proposed + s.guardNS
	s.lastEpoch = r.epoch
	s.reports = 0
	s.proposed = 0
	s.gen++
	s.round = &epochRound{done: make(chan struct{})}
	close(r.done)
}
