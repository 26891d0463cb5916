// Package device hosts support for running the protocol's device role —
// the resource-constrained side of the link — without real hardware: an
// in-memory Transport pair for tests and local simulation, wired the same
// way a real microcontroller firmware would wire a UART driver into
// protocol.Session.
package device

import (
	"errors"
	"sync"

	"github.com/sci-bots/microdrop/protocol"
)

// loopbackCapacity bounds each direction of a Loopback pair. It comfortably
// covers several back-to-back maximum-size frames, which is the only
// scenario where a simulated link would otherwise need to apply backpressure.
const loopbackCapacity = 4 * (protocol.MaxPayloadLength + 8)

// Loopback is one end of an in-memory, full-duplex byte pipe: a pair of
// protocol.Transport values that deliver whatever one side writes to the
// other side's ReadByte, with no real I/O involved. NewLoopbackPair returns
// both ends already wired together, suitable for driving a host-role
// Session and a device-role Session against each other in the same process.
type Loopback struct {
	mu     sync.Mutex
	closed bool

	tx *protocol.ByteFIFO // bytes this end has written, read by the peer
	rx *protocol.ByteFIFO // bytes the peer has written, read by this end
}

// NewLoopbackPair returns two Loopback transports cross-wired so that
// anything written to a is readable from b, and vice versa.
func NewLoopbackPair() (a, b *Loopback) {
	ab := protocol.NewByteFIFO(loopbackCapacity)
	ba := protocol.NewByteFIFO(loopbackCapacity)
	a = &Loopback{tx: ab, rx: ba}
	b = &Loopback{tx: ba, rx: ab}
	return a, b
}

// WriteByte implements protocol.Transport.
func (l *Loopback) WriteByte(b byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return protocol.ErrTransportClosed
	}
	if dropped := l.tx.Write([]byte{b}); dropped > 0 {
		return errors.New("device: loopback buffer full")
	}
	return nil
}

// ReadByte implements protocol.Transport.
func (l *Loopback) ReadByte() (byte, bool) {
	return l.rx.ReadByte()
}

// Available implements protocol.Transport.
func (l *Loopback) Available() int {
	return l.rx.Available()
}

// IsOpen implements protocol.Transport.
func (l *Loopback) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Close implements protocol.Transport. Closing either end of a pair only
// affects that end — the peer keeps whatever bytes are already queued for
// it and simply stops receiving new ones.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}
