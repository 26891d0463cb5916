// Command microdrop-host is the host-side CLI: it opens a serial link (or,
// with -loopback, an in-process simulated device) and drops into a REPL for
// issuing protocol commands interactively.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"

	"github.com/sci-bots/microdrop/device"
	"github.com/sci-bots/microdrop/examples/dropbot"
	"github.com/sci-bots/microdrop/host/serial"
	"github.com/sci-bots/microdrop/protocol"
)

var (
	deviceFlag = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud       = flag.Int("baud", 115200, "Baud rate")
	noCRC      = flag.Bool("no-crc", false, "Disable CRC-16 checking on the link")
	timeout    = flag.Duration("timeout", protocol.DefaultTimeout, "Reply timeout")
	loopback   = flag.Bool("loopback", false, "Talk to an in-process simulated device instead of a real port")
)

func main() {
	flag.Parse()

	fmt.Println("microdrop-host - control board protocol REPL")
	fmt.Println("=============================================")

	cfg := protocol.DefaultConfig()
	cfg.CRCEnabled = !*noCRC
	cfg.Timeout = *timeout

	var transport protocol.Transport
	if *loopback {
		hostEnd, deviceEnd := device.NewLoopbackPair()
		transport = hostEnd
		deviceSession := protocol.NewSession(deviceEnd, dropbot.NewBoard(), cfg)
		go runDeviceLoop(deviceSession)
		fmt.Println("Connected to an in-process simulated device (-loopback)")
	} else {
		sc := serial.DefaultConfig(*deviceFlag)
		sc.Baud = *baud
		t, err := serial.Open(sc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open %s: %v\n", *deviceFlag, err)
			os.Exit(1)
		}
		transport = t
		fmt.Printf("Connected to %s at %d baud\n", *deviceFlag, *baud)
	}
	defer transport.Close()

	session := protocol.NewSession(transport, nil, cfg)
	client := dropbot.NewClient(session)

	fmt.Println("Type 'help' for available commands, 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "name", "version", "device-name", "manufacturer", "hw-version", "sw-version", "url":
			runMetadataCommand(session, args[0])

		case "channels":
			runNumberOfChannels(client)

		case "states":
			runStateOfAllChannels(client)

		case "set-states":
			runSetStateOfAllChannels(client, args[1:])

		case "voltage":
			runSetActuationVoltage(client, args[1:])

		case "impedance":
			runMeasureImpedance(client, args[1:])

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", args[0])
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// runDeviceLoop polls a device-role Session's Listen method the way a
// microcontroller's own main loop would, for the -loopback simulated
// device.
func runDeviceLoop(s *protocol.Session) {
	for {
		s.Listen()
		time.Sleep(time.Millisecond)
	}
}

func printHelp() {
	fmt.Println(`
Available commands:
  name, version, device-name, manufacturer, hw-version, sw-version, url
                          - query the standard metadata commands
  channels                - CMD_GET_NUMBER_OF_CHANNELS
  states                  - CMD_GET_STATE_OF_ALL_CHANNELS
  set-states <0|1>...     - CMD_SET_STATE_OF_ALL_CHANNELS (one digit per channel)
  voltage <0-255>         - CMD_SET_ACTUATION_VOLTAGE
  impedance <sampling_ms> <n_samples> <delay_ms>
                          - CMD_MEASURE_IMPEDANCE
  help                    - show this help message
  quit/exit/q             - exit the program`)
}

var metadataCommands = map[string]byte{
	"name":         protocol.CmdGetProtocolName,
	"version":      protocol.CmdGetProtocolVersion,
	"device-name":  protocol.CmdGetDeviceName,
	"manufacturer": protocol.CmdGetManufacturer,
	"hw-version":   protocol.CmdGetHardwareVersion,
	"sw-version":   protocol.CmdGetSoftwareVersion,
	"url":          protocol.CmdGetURL,
}

func runMetadataCommand(session *protocol.Session, name string) {
	cmd := metadataCommands[name]
	rc := session.SendCommand(cmd, nil)
	if rc != protocol.ReturnOK {
		fmt.Printf("%s: %v\n", name, rc)
		return
	}
	s, err := session.Payload().ReadString()
	if err != nil {
		fmt.Printf("%s: malformed reply: %v\n", name, err)
		return
	}
	fmt.Printf("%s: %s\n", name, s)
}

func runNumberOfChannels(client *dropbot.Client) {
	n, rc := client.NumberOfChannels()
	if rc != protocol.ReturnOK {
		fmt.Printf("channels: %v\n", rc)
		return
	}
	fmt.Printf("channels: %d\n", n)
}

func runStateOfAllChannels(client *dropbot.Client) {
	states, rc := client.StateOfAllChannels()
	if rc != protocol.ReturnOK {
		fmt.Printf("states: %v\n", rc)
		return
	}
	fmt.Print("states: ")
	for _, s := range states {
		if s != 0 {
			fmt.Print("1")
		} else {
			fmt.Print("0")
		}
	}
	fmt.Println()
}

func runSetStateOfAllChannels(client *dropbot.Client, args []string) {
	if len(args) != dropbot.NumberOfChannels {
		fmt.Printf("set-states: need exactly %d 0/1 digits, got %d\n", dropbot.NumberOfChannels, len(args))
		return
	}
	var states [dropbot.NumberOfChannels]byte
	for i, a := range args {
		if a == "1" {
			states[i] = 1
		}
	}
	rc := client.SetStateOfAllChannels(states)
	fmt.Printf("set-states: %v\n", rc)
}

func runSetActuationVoltage(client *dropbot.Client, args []string) {
	if len(args) != 1 {
		fmt.Println("voltage: usage: voltage <0-255>")
		return
	}
	v, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		fmt.Printf("voltage: %v\n", err)
		return
	}
	rc := client.SetActuationVoltage(byte(v))
	fmt.Printf("voltage: %v\n", rc)
}

func runMeasureImpedance(client *dropbot.Client, args []string) {
	if len(args) != 3 {
		fmt.Println("impedance: usage: impedance <sampling_ms> <n_samples> <delay_ms>")
		return
	}
	samplingMs, err1 := strconv.ParseUint(args[0], 10, 16)
	nSamples, err2 := strconv.ParseUint(args[1], 10, 16)
	delayMs, err3 := strconv.ParseUint(args[2], 10, 16)
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Println("impedance: arguments must be uint16")
		return
	}

	samples, rc := client.MeasureImpedance(uint16(samplingMs), uint16(nSamples), uint16(delayMs))
	if rc != protocol.ReturnOK {
		fmt.Printf("impedance: %v\n", rc)
		return
	}
	for i, s := range samples {
		fmt.Printf("  [%3d] v1=%.4f v2=%.4f\n", i, s.V1, s.V2)
	}
}
