package protocol

import (
	"time"

	"github.com/golang/glog"
)

// pollInterval is how often SendCommand rechecks the transport while waiting
// for a reply when no byte is immediately available. It trades a little latency for not
// spinning a core at 100%; the reference implementation busy-polls with no
// such yield because it runs with nothing else to do on bare metal.
const pollInterval = time.Millisecond

// Config holds the tunables a caller may override when constructing a
// Session. The zero value is not valid; use DefaultConfig as a starting
// point.
type Config struct {
	// Timeout bounds how long SendCommand waits for a reply.
	Timeout time.Duration
	// CRCEnabled selects whether frames carry and are checked against a
	// trailing CRC-16. Both ends of a link must agree.
	CRCEnabled bool
	// Debug turns on verbose per-packet glog tracing at -v=2 and -v=3. Discarded/malformed frames are always logged at -v=1
	// regardless of this flag, per the framer's "an implementation may log"
	// allowance.
	Debug bool
}

// DefaultConfig returns the Config a Session uses if none is supplied:
// CRC enabled, the standard two-second reply timeout, debug tracing off.
func DefaultConfig() Config {
	return Config{
		Timeout:    DefaultTimeout,
		CRCEnabled: true,
	}
}

// Session is the Dispatcher / Reply Waiter: one symmetric state machine that
// runs identically whichever side of the link it's on. A host calls
// SendCommand to issue a request and block for the matching reply; a device
// calls Listen in its main loop to drain whatever request bytes have
// arrived and dispatch them inline. Both roles share one PayloadBuffer, one
// decoder, and one understanding of the framing — nothing here is aware
// which side of the link it is running on.
//
// A Session is not safe for concurrent use by multiple goroutines; pair it
// with a single reader/writer goroutine, feeding it bytes the way
// host/serial's background reader does (see transport.go's ByteFIFO).
type Session struct {
	transport Transport
	handler   ApplicationHandler
	cfg       Config

	payload PayloadBuffer
	dec     *decoder

	waitingForReply bool
	lastSent        time.Time
	returnCode      ReturnCode
}

// NewSession wires a Transport and an ApplicationHandler into a Session.
// handler may be nil for a node that only ever originates commands and
// ignores everything addressed to it (an unknown command then elicits
// ReturnUnknownCommand automatically).
func NewSession(transport Transport, handler ApplicationHandler, cfg Config) *Session {
	s := &Session{
		transport: transport,
		handler:   handler,
		cfg:       cfg,
	}
	s.dec = newDecoder(&s.payload)
	return s
}

// ReturnCode reports the return code latched by the most recently completed
// SendCommand call.
func (s *Session) ReturnCode() ReturnCode {
	return s.returnCode
}

// Payload exposes the buffer a ProcessReply callback (or a caller inspecting
// the result of SendCommand afterward) reads the reply body from.
func (s *Session) Payload() *PayloadBuffer {
	return &s.payload
}

// SendCommand issues a request and blocks until the matching reply arrives,
// the transport reports itself closed, or Timeout elapses (spec §4.5).
//
// cmd must already carry bit 7 (one of the Cmd* constants, or an
// application-defined request code >= 0x80). args, if non-nil, is called
// once to serialize the request payload before the frame is sent; any error
// it returns aborts the send with ReturnBadPacketSize.
//
// While waiting, SendCommand also dispatches any request packets that
// happen to arrive on the same link — the framing is symmetric, so nothing
// prevents the other side from sending one — before resuming its wait for
// the reply it's actually after.
func (s *Session) SendCommand(cmd byte, args func(*PayloadBuffer) error) ReturnCode {
	s.payload.Reset()

	if !s.transport.IsOpen() {
		return s.latch(ReturnNotConnected)
	}

	if args != nil {
		if err := args(&s.payload); err != nil {
			glog.V(1).Infof("protocol: building payload for cmd 0x%02X: %v", cmd, err)
			return s.latch(ReturnBadPacketSize)
		}
	}

	if s.cfg.Debug && bool(glog.V(3)) {
		glog.Infof("protocol: sending cmd 0x%02X, %d byte payload", cmd, s.payload.Len())
	}

	if err := encodeFrame(s.transport, cmd, s.payload.Bytes(), s.cfg.CRCEnabled); err != nil {
		glog.V(1).Infof("protocol: writing frame for cmd 0x%02X: %v", cmd, err)
		return s.latch(ReturnNotConnected)
	}
	s.payload.Reset()

	s.waitingForReply = true
	s.lastSent = time.Now()
	defer func() { s.waitingForReply = false }()

	deadline := s.lastSent.Add(s.cfg.Timeout)

	for {
		if !s.transport.IsOpen() {
			return s.latch(ReturnNotConnected)
		}

		b, ok := s.transport.ReadByte()
		if !ok {
			if time.Now().After(deadline) {
				glog.V(1).Infof("protocol: timed out waiting for reply to cmd 0x%02X", cmd)
				return s.latch(ReturnTimeout)
			}
			time.Sleep(pollInterval)
			continue
		}

		if done, rc := s.feedByte(b, true); done {
			return s.latch(rc)
		}
	}
}

// Listen drains every byte currently available from the transport,
// dispatching each packet it completes inline, then returns. A device's
// main loop calls this repeatedly (spec §4.5: "device Listen polls and
// dispatches inline"); it never blocks waiting for a byte that hasn't
// arrived yet.
func (s *Session) Listen() {
	for s.transport.IsOpen() && s.transport.Available() > 0 {
		b, ok := s.transport.ReadByte()
		if !ok {
			return
		}
		s.feedByte(b, false)
	}
}

// latch records rc as the session's last return code and returns it, so
// SendCommand's various exit points can both set and return in one line.
func (s *Session) latch(rc ReturnCode) ReturnCode {
	s.returnCode = rc
	return rc
}

// feedByte pushes one raw byte through the decoder and, if it completes a
// packet, dispatches it. waiting is true only when called from SendCommand's
// poll loop; done reports whether that wait is now over (spec §3's
// positional reply matching: "next received packet whose high bit of
// command is clear is the reply to the outstanding request" — the very next
// non-request packet ends the wait, matched or not, whether or not its CRC
// was valid). A frame whose announced length exceeds MaxPayloadLength also
// ends the wait, with ReturnBadPacketSize. A request packet never itself
// ends a wait: if one arrives
// while SendCommand is polling (the link has no notion of who's allowed to
// talk), it is dispatched and answered inline, and the wait continues.
func (s *Session) feedByte(b byte, waiting bool) (done bool, rc ReturnCode) {
	event := s.dec.feed(b, s.cfg.CRCEnabled)

	switch event {
	case decodeFrameReset:
		glog.V(1).Info("protocol: frame boundary mid-packet, discarding partial frame")
		return false, 0

	case decodeOversize:
		glog.V(1).Info("protocol: announced payload length exceeds maximum, discarding frame")
		return waiting, ReturnBadPacketSize

	case decodeComplete:
		cmd := s.dec.command()
		if s.cfg.CRCEnabled && !s.dec.crcOK() {
			glog.V(1).Infof("protocol: bad CRC on cmd 0x%02X, discarding frame", cmd)
			// On the device side a corrupt request simply gets no reply; on
			// the host side a corrupt reply is itself the answer to the
			// outstanding request, just a bad one.
			return waiting, ReturnBadCRC
		}
		if isRequest(cmd) {
			s.dispatchCommand(cmd)
			return false, 0
		}
		return waiting, s.dispatchReply(cmd)
	}
	return false, 0
}

// dispatchCommand handles one complete incoming request packet: runs the
// handler, then sends the reply frame (bit 7 cleared, return code
// appended).
func (s *Session) dispatchCommand(cmd byte) {
	s.payload.BeginDispatch()

	if s.cfg.Debug && bool(glog.V(2)) {
		glog.Infof("protocol: dispatching command 0x%02X, %d byte request", cmd, s.payload.Remaining())
	}

	rc := ReturnUnknownCommand
	if s.handler != nil {
		rc = s.handler.ProcessCommand(cmd, &s.payload)
	}

	if err := s.payload.PutU8(byte(rc)); err != nil {
		// The handler's own reply payload left no room for the return code
		// byte; fall back to a bare return-code-only reply.
		s.payload.Reset()
		_ = s.payload.PutU8(byte(ReturnBadPacketSize))
	}
	replyPayload := s.payload.Bytes()
	replyCmd := cmd &^ requestBit

	if err := encodeFrame(s.transport, replyCmd, replyPayload, s.cfg.CRCEnabled); err != nil {
		glog.V(1).Infof("protocol: writing reply for cmd 0x%02X: %v", replyCmd, err)
	}
	s.payload.Reset()
}

// dispatchReply handles one complete incoming reply packet: splits off the
// trailing return code byte, hands the rest to the handler, and returns the
// return code for SendCommand to latch.
func (s *Session) dispatchReply(cmd byte) ReturnCode {
	n := s.payload.readLen
	if n == 0 {
		return ReturnGeneralError
	}
	rc := ReturnCode(s.payload.data[n-1])
	s.payload.readLen = n - 1
	s.payload.bytesRead = 0
	s.payload.bytesWritten = s.payload.readLen

	if s.cfg.Debug && bool(glog.V(2)) {
		glog.Infof("protocol: dispatching reply for cmd 0x%02X, return code %v", cmd, rc)
	}

	if s.handler != nil {
		s.handler.ProcessReply(cmd, &s.payload)
	}
	return rc
}
