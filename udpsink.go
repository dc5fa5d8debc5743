package st2110

import (
	"fmt"
	"net"
	"time"
)

// UDPSink is a reference StreamSink over a plain UDP socket. It honors
// scheduled send times by sleeping on the injected clock before writing, so
// pacing accuracy is bounded by OS timer granularity. It stands in for the
// hardware transmission engine in the demos and tests; it is not that
// engine.
type UDPSink struct {
	conn  *net.UDPConn
	clock Clock
	buf   []byte
}

// NewUDPSink connects a sink to dest (unicast or multicast).
func NewUDPSink(dest *net.UDPAddr, clock Clock) (*UDPSink, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	conn, err := net.DialUDP("udp", nil, dest)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", dest, err)
	}
	return &UDPSink{conn: conn, clock: clock}, nil
}

// AcquireBuffer returns the sink's scratch buffer, grown as needed. One
// buffer suffices: each sender owns its sink and commits before reacquiring.
func (s *UDPSink) AcquireBuffer(size int) ([]byte, error) {
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	return s.buf[:size], nil
}

// Commit waits until sendNS and writes the packet. Zero-length pause
// commits are a no-op for a plain socket.
func (s *UDPSink) Commit(buf []byte, n int, sendNS int64, flags SendFlags) error {
	if n == 0 {
		return nil
	}
	if sendNS > 0 {
		if wait := sendNS - s.clock.NowNS(); wait > 0 {
			time.Sleep(time.Duration(wait))
		}
	}
	if _, err := s.conn.Write(buf[:n]); err != nil {
		return fmt.Errorf("udp write: %w", err)
	}
	return nil
}

// CancelPending is a no-op; the socket has no scheduling queue.
func (s *UDPSink) CancelPending() error { return nil }

func (s *UDPSink) Close() error { return s.conn.Close() }
