//go:build !wasm

package serial

import (
	"fmt"

	tarmserial "github.com/tarm/serial"
)

// nativePort wraps a github.com/tarm/serial port as a Port.
type nativePort struct {
	port *tarmserial.Port
}

// openNative opens a native OS serial port via github.com/tarm/serial.
func openNative(cfg Config) (Port, error) {
	port, err := tarmserial.OpenPort(&tarmserial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("host/serial: open %s: %w", cfg.Device, err)
	}
	return &nativePort{port: port}, nil
}

func (p *nativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *nativePort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *nativePort) Close() error                { return p.port.Close() }

// Flush is a no-op: tarm/serial does not expose a flush primitive, and
// every Write already blocks until the OS accepts the bytes.
func (p *nativePort) Flush() error { return nil }
