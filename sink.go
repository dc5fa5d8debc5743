package st2110

import "errors"

// ErrSinkBusy is the transient "no free transmission slot" status. Senders
// retry the commit in a bounded loop; it is never surfaced to the caller.
var ErrSinkBusy = errors.New("st2110: sink busy")

// SendFlags modify a Commit.
type SendFlags uint32

const (
	// SendFlagPause tells the sink to idle after this commit. Senders pass
	// it with a zero-length commit at loop boundaries while the streams
	// resynchronize to a new epoch.
	SendFlagPause SendFlags = 1 << iota
)

// StreamSink is the boundary to the transmission engine. The engine owns
// hardware commit, back-pressure, and completion signaling; this pipeline
// only hands it fully built packets with a scheduled send time.
type StreamSink interface {
	// AcquireBuffer returns a packet buffer of at least size bytes. Its
	// contents are undefined; ownership returns to the sink on Commit.
	AcquireBuffer(size int) ([]byte, error)

	// Commit schedules buf[:n] for transmission. A sendNS of 0 means "send
	// immediately"; a nonzero UTC-aligned value holds the packet until that
	// time. Returns ErrSinkBusy when no transmission slot is free.
	Commit(buf []byte, n int, sendNS int64, flags SendFlags) error

	// CancelPending drops committed but unsent packets.
	CancelPending() error

	Close() error
}
