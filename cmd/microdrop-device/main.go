// Command microdrop-device runs the constrained/device role of the
// protocol standalone: it answers the standard metadata commands plus the
// dropbot demonstration commands over a serial port (real, or one end of a
// virtual pair). It has no in-process loopback mode; microdrop-host's
// -loopback flag runs a simulated device in the host process instead.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sci-bots/microdrop/examples/dropbot"
	"github.com/sci-bots/microdrop/host/serial"
	"github.com/sci-bots/microdrop/protocol"
)

var (
	deviceFlag = flag.String("device", "/dev/ttyUSB0", "Serial device path to listen on")
	baud       = flag.Int("baud", 115200, "Baud rate")
	noCRC      = flag.Bool("no-crc", false, "Disable CRC-16 checking on the link")
)

const (
	protocolName    = "microdrop"
	protocolVersion = "1.0"
	deviceName      = "microdrop-device"
	manufacturer    = "sci-bots"
	hardwareVersion = "sim-1"
	softwareVersion = "1.0.0"
	deviceURL       = "https://github.com/sci-bots/microdrop"
)

func main() {
	flag.Parse()

	cfg := protocol.DefaultConfig()
	cfg.CRCEnabled = !*noCRC

	sc := serial.DefaultConfig(*deviceFlag)
	sc.Baud = *baud
	transport, err := serial.Open(sc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open %s: %v\n", *deviceFlag, err)
		os.Exit(1)
	}
	defer transport.Close()

	handler := newDispatchHandler(dropbot.NewBoard())
	session := protocol.NewSession(transport, handler, cfg)

	fmt.Printf("microdrop-device listening on %s at %d baud\n", *deviceFlag, *baud)
	for {
		session.Listen()
		time.Sleep(time.Millisecond)
	}
}

// dispatchHandler answers the standard metadata commands itself and
// forwards everything else to an embedded dropbot.Board, so one Session
// covers both ranges of the command space without the two handlers needing
// to know about each other.
type dispatchHandler struct {
	board *dropbot.Board
}

func newDispatchHandler(board *dropbot.Board) *dispatchHandler {
	return &dispatchHandler{board: board}
}

func (h *dispatchHandler) ProcessCommand(cmd byte, payload *protocol.PayloadBuffer) protocol.ReturnCode {
	switch cmd {
	case protocol.CmdGetProtocolName:
		return replyString(payload, protocolName)
	case protocol.CmdGetProtocolVersion:
		return replyString(payload, protocolVersion)
	case protocol.CmdGetDeviceName:
		return replyString(payload, deviceName)
	case protocol.CmdGetManufacturer:
		return replyString(payload, manufacturer)
	case protocol.CmdGetHardwareVersion:
		return replyString(payload, hardwareVersion)
	case protocol.CmdGetSoftwareVersion:
		return replyString(payload, softwareVersion)
	case protocol.CmdGetURL:
		return replyString(payload, deviceURL)
	default:
		return h.board.ProcessCommand(cmd, payload)
	}
}

func (h *dispatchHandler) ProcessReply(cmd byte, payload *protocol.PayloadBuffer) {}

func replyString(payload *protocol.PayloadBuffer, s string) protocol.ReturnCode {
	if payload.Remaining() != 0 {
		return protocol.ReturnBadPacketSize
	}
	if err := payload.PutString(s); err != nil {
		return protocol.ReturnBadPacketSize
	}
	return protocol.ReturnOK
}
