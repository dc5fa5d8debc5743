package st2110

import (
	"context"
	"errors"
)

// Unit is the tagged payload flowing through pipeline queues. Exactly one
// stage produces a unit and exactly one downstream stage consumes it.
type Unit interface{ isUnit() }

// VideoUnit carries one decoded video frame.
type VideoUnit struct{ Frame *VideoFrame }

// AudioUnit carries one decoded audio chunk.
type AudioUnit struct{ Chunk *AudioChunk }

// AncUnit carries one ancillary data packet.
type AncUnit struct{ Data *AncData }

// EndOfStream marks the end of the source. In loop mode the sender treats it
// as a resynchronization trigger rather than a terminal signal.
type EndOfStream struct{}

func (VideoUnit) isUnit()   {}
func (AudioUnit) isUnit()   {}
func (AncUnit) isUnit()     {}
func (EndOfStream) isUnit() {}

// ErrQueueClosed is returned by Pop after Close once the queue drains.
var ErrQueueClosed = errors.New("st2110: queue closed")

// UnitQueue is a bounded single-producer/single-consumer queue connecting
// two pipeline stages. Producers try a non-blocking enqueue first and only
// block when the queue is full; consumers are symmetric. Both directions are
// interruptible through the context.
type UnitQueue struct {
	ch chan Unit
}

// NewUnitQueue creates a queue holding at most capacity units.
func NewUnitQueue(capacity int) *UnitQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &UnitQueue{ch: make(chan Unit, capacity)}
}

// TryPush enqueues u without blocking, reporting whether it was accepted.
func (q *UnitQueue) TryPush(u Unit) bool {
	select {
	case q.ch <- u:
		return true
	default:
		return false
	}
}

// Push enqueues u, blocking until there is room or ctx is cancelled.
func (q *UnitQueue) Push(ctx context.Context, u Unit) error {
	if q.TryPush(u) {
		return nil
	}
	select {
	case q.ch <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPop dequeues a unit without blocking.
func (q *UnitQueue) TryPop() (Unit, bool) {
	select {
	case u, ok := <-q.ch:
		if !ok {
			return nil, false
		}
		return u, true
	default:
		return nil, false
	}
}

// Pop dequeues a unit, blocking until one is available or ctx is cancelled.
// After Close it returns ErrQueueClosed once the remaining units drain.
func (q *UnitQueue) Pop(ctx context.Context) (Unit, error) {
	if u, ok := q.TryPop(); ok {
		return u, nil
	}
	select {
	case u, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return u, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the producer side finished. Pending units remain readable.
func (q *UnitQueue) Close() { close(q.ch) }

// Len returns the number of queued units.
func (q *UnitQueue) Len() int { return len(q.ch) }
