// Package serial adapts a physical serial port into a protocol.Transport:
// a background reader goroutine drains the OS-level port as fast as it can
// and feeds the bytes into a FIFO the Session's own goroutine polls from
// inside SendCommand/Listen, matching the single-producer/single-consumer
// split spec §5 calls for on the host side (the constrained side has no
// such goroutine — it polls the UART directly in its own main loop).
package serial

import (
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/sci-bots/microdrop/protocol"
)

// Port represents the minimum operations host/serial needs out of a
// physical or virtual serial port, independent of how it is opened:
//   - native (github.com/tarm/serial), wired up in serial_native.go
//   - WebSerial, for a TinyGo/WASM browser build
//   - a mock, for tests
type Port interface {
	io.ReadWriteCloser

	// Flush discards any buffered but unsent/unread data.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g. "/dev/ttyACM0", "COM3").
	Device string

	// Baud is the UART baud rate. 115200 matches the reference control
	// board's fixed rate; USB CDC devices ignore it but tarm/serial still
	// requires a value.
	Baud int

	// ReadTimeout bounds how long a single underlying Read blocks. Short
	// timeouts keep the reader goroutine responsive to Close.
	ReadTimeout time.Duration
}

// DefaultConfig returns Config{Device: device, Baud: 115200, ReadTimeout:
// 100ms}.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// fifoCapacity bounds how far the reader goroutine can get ahead of the
// Session before incoming bytes are dropped. A decoded packet never exceeds
// a handful of bytes beyond protocol.MaxPayloadLength, so a few multiples of
// that comfortably covers back-to-back frames arriving while a slow
// application handler is still working through the previous one.
const fifoCapacity = 4 * (protocol.MaxPayloadLength + 8)

// Transport wraps a Port as a protocol.Transport, running a background
// reader goroutine so SendCommand's poll loop never blocks on the OS-level
// port read.
type Transport struct {
	port Port
	fifo *protocol.ByteFIFO

	closed chan struct{}
	done   chan struct{}
}

// Open opens cfg.Device via the platform's native implementation (see
// serial_native.go) and wraps it as a protocol.Transport.
func Open(cfg Config) (*Transport, error) {
	port, err := openNative(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(port), nil
}

// Wrap adapts an already-open Port into a protocol.Transport, starting the
// background reader goroutine.
func Wrap(port Port) *Transport {
	t := &Transport{
		port:   port,
		fifo:   protocol.NewByteFIFO(fifoCapacity),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *Transport) readLoop() {
	defer close(t.done)
	buf := make([]byte, 256)
	for {
		select {
		case <-t.closed:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			if dropped := t.fifo.Write(buf[:n]); dropped > 0 {
				glog.V(1).Infof("host/serial: dropped %d bytes, reader fell behind", dropped)
			}
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			glog.V(1).Infof("host/serial: read error: %v", err)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// WriteByte implements protocol.Transport.
func (t *Transport) WriteByte(b byte) error {
	select {
	case <-t.closed:
		return protocol.ErrTransportClosed
	default:
	}
	_, err := t.port.Write([]byte{b})
	return err
}

// ReadByte implements protocol.Transport.
func (t *Transport) ReadByte() (byte, bool) {
	return t.fifo.ReadByte()
}

// Available implements protocol.Transport.
func (t *Transport) Available() int {
	return t.fifo.Available()
}

// IsOpen implements protocol.Transport.
func (t *Transport) IsOpen() bool {
	select {
	case <-t.closed:
		return false
	default:
		return true
	}
}

// Close implements protocol.Transport: stops the reader goroutine and
// closes the underlying port.
func (t *Transport) Close() error {
	select {
	case <-t.closed:
		return nil
	default:
		close(t.closed)
	}
	<-t.done
	return t.port.Close()
}
