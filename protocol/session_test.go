package protocol

import (
	"sync"
	"testing"
	"time"
)

// pipeEnd is a minimal in-process Transport used only by these tests: two
// pipeEnds wired together via newPipe behave like opposite ends of a serial
// cable, without pulling in the device package's Loopback (which imports
// this package and would create a cycle).
type pipeEnd struct {
	mu     sync.Mutex
	closed bool
	tx     *ByteFIFO
	rx     *ByteFIFO
}

func newPipe() (a, b *pipeEnd) {
	ab := NewByteFIFO(8192)
	ba := NewByteFIFO(8192)
	return &pipeEnd{tx: ab, rx: ba}, &pipeEnd{tx: ba, rx: ab}
}

func (p *pipeEnd) WriteByte(b byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	p.tx.Write([]byte{b})
	return nil
}

func (p *pipeEnd) ReadByte() (byte, bool) { return p.rx.ReadByte() }
func (p *pipeEnd) Available() int         { return p.rx.Available() }

func (p *pipeEnd) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// echoHandler replies OK to every command, echoing the request payload
// back unchanged.
type echoHandler struct {
	processed []byte
}

func (h *echoHandler) ProcessCommand(cmd byte, payload *PayloadBuffer) ReturnCode {
	h.processed = append(h.processed, cmd)
	n := payload.Remaining()
	buf := make([]byte, n)
	_ = payload.ReadArray(buf, n)
	_ = payload.Serialize(buf)
	return ReturnOK
}

func (h *echoHandler) ProcessReply(cmd byte, payload *PayloadBuffer) {}

func TestSessionSendCommandRoundTrip(t *testing.T) {
	hostEnd, deviceEnd := newPipe()

	device := NewSession(deviceEnd, &echoHandler{}, DefaultConfig())
	host := NewSession(hostEnd, nil, DefaultConfig())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				device.Listen()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer func() { close(stop); wg.Wait() }()

	rc := host.SendCommand(0xA1, func(p *PayloadBuffer) error {
		return p.PutU8(0x42)
	})
	if rc != ReturnOK {
		t.Fatalf("SendCommand return code = %v, want ReturnOK", rc)
	}
	v, err := host.Payload().ReadU8()
	if err != nil || v != 0x42 {
		t.Fatalf("echoed payload byte = %d, %v, want 0x42, nil", v, err)
	}
}

func TestSessionSendCommandTimeout(t *testing.T) {
	hostEnd, _ := newPipe() // nothing ever reads/replies on the other end

	cfg := DefaultConfig()
	cfg.Timeout = 30 * time.Millisecond
	host := NewSession(hostEnd, nil, cfg)

	start := time.Now()
	rc := host.SendCommand(CmdGetProtocolName, nil)
	elapsed := time.Since(start)

	if rc != ReturnTimeout {
		t.Fatalf("SendCommand return code = %v, want ReturnTimeout", rc)
	}
	if elapsed < cfg.Timeout {
		t.Fatalf("returned after %v, before the %v timeout elapsed", elapsed, cfg.Timeout)
	}
}

func TestSessionSendCommandNotConnected(t *testing.T) {
	hostEnd, _ := newPipe()
	hostEnd.Close()

	host := NewSession(hostEnd, nil, DefaultConfig())
	if rc := host.SendCommand(CmdGetProtocolName, nil); rc != ReturnNotConnected {
		t.Fatalf("SendCommand on closed transport = %v, want ReturnNotConnected", rc)
	}
}

func TestSessionUnknownCommandGetsReturnCode(t *testing.T) {
	hostEnd, deviceEnd := newPipe()

	device := NewSession(deviceEnd, nil, DefaultConfig()) // no handler registered
	host := NewSession(hostEnd, nil, DefaultConfig())

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				device.Listen()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer close(stop)

	rc := host.SendCommand(0x87, nil)
	if rc != ReturnUnknownCommand {
		t.Fatalf("SendCommand to unhandled cmd = %v, want ReturnUnknownCommand", rc)
	}
}

func TestSessionStandardMetadataCommand(t *testing.T) {
	hostEnd, deviceEnd := newPipe()

	handler := HandlerFunc(func(cmd byte, payload *PayloadBuffer) ReturnCode {
		if cmd != CmdGetProtocolName {
			return ReturnUnknownCommand
		}
		_ = payload.PutString("microdrop")
		return ReturnOK
	})
	device := NewSession(deviceEnd, handler, DefaultConfig())
	host := NewSession(hostEnd, nil, DefaultConfig())

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				device.Listen()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer close(stop)

	rc := host.SendCommand(CmdGetProtocolName, nil)
	if rc != ReturnOK {
		t.Fatalf("SendCommand(CmdGetProtocolName) = %v, want ReturnOK", rc)
	}
	name, err := host.Payload().ReadString()
	if err != nil || name != "microdrop" {
		t.Fatalf("protocol name = %q, %v, want %q, nil", name, err, "microdrop")
	}
}

func TestSessionS5NumberOfChannelsQuery(t *testing.T) {
	// S5: host sends 0x87 (empty payload); device replies with command
	// 0x07 (bit 7 cleared), payload = little-endian uint16 channel count
	// followed by return code 0x00. Session hides the bit-7-clearing and
	// return-code-splitting from the caller, so this exercises it through
	// SendCommand/ReadU16 rather than replaying the literal bytes (covered
	// at the encoder/decoder layer already).
	hostEnd, deviceEnd := newPipe()

	handler := HandlerFunc(func(cmd byte, payload *PayloadBuffer) ReturnCode {
		_ = payload.PutU16(40)
		return ReturnOK
	})
	device := NewSession(deviceEnd, handler, DefaultConfig())
	host := NewSession(hostEnd, nil, DefaultConfig())

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				device.Listen()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer close(stop)

	rc := host.SendCommand(0x87, nil)
	if rc != ReturnOK {
		t.Fatalf("SendCommand(0x87) = %v, want ReturnOK", rc)
	}
	channels, err := host.Payload().ReadU16()
	if err != nil || channels != 40 {
		t.Fatalf("channel count = %d, %v, want 40, nil", channels, err)
	}
}
