package protocol

import "fmt"

// ReturnCode is the single byte appended as the last byte of every reply
// payload (spec §3). It never crosses the core boundary as a Go error —
// callers get it back from Session.SendCommand or Session.ReturnCode; the
// reply's return code byte is stripped from the readable PayloadBuffer.
type ReturnCode byte

// Reserved return codes. Application-specific codes must be >= 0x10.
const (
	ReturnOK              ReturnCode = 0x00
	ReturnGeneralError    ReturnCode = 0x01
	ReturnUnknownCommand  ReturnCode = 0x02
	ReturnTimeout         ReturnCode = 0x03
	ReturnNotConnected    ReturnCode = 0x04
	ReturnBadIndex        ReturnCode = 0x05
	ReturnBadPacketSize   ReturnCode = 0x06
	ReturnBadCRC          ReturnCode = 0x07
	// ReturnTransportError is not one of the codes defined for the wire.
	// Nothing in this package returns it: a failed transport write
	// surfaces from Session.SendCommand as ReturnNotConnected.
	ReturnTransportError ReturnCode = 0x08
)

// FirstApplicationReturnCode is the lowest value an application handler may
// use for a command-specific return code (spec §3).
const FirstApplicationReturnCode ReturnCode = 0x10

func (r ReturnCode) String() string {
	switch r {
	case ReturnOK:
		return "OK"
	case ReturnGeneralError:
		return "general error"
	case ReturnUnknownCommand:
		return "unknown command"
	case ReturnTimeout:
		return "timeout"
	case ReturnNotConnected:
		return "not connected"
	case ReturnBadIndex:
		return "bad index"
	case ReturnBadPacketSize:
		return "bad packet size"
	case ReturnBadCRC:
		return "bad CRC"
	case ReturnTransportError:
		return "transport error"
	}
	if r >= FirstApplicationReturnCode {
		return fmt.Sprintf("application code 0x%02X", byte(r))
	}
	return fmt.Sprintf("reserved code 0x%02X", byte(r))
}
