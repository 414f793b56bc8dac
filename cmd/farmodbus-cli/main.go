// Command farmodbus-cli is a small demo/smoke-test harness for the farm: it
// adds one port and one station, then polls a single register in a loop,
// printing each new value and, on every pass, any error other than
// not_ready. It is not part of the core library's scope
// (spec.md §1 excludes command-line demos); it exists as a manual
// integration aid, the role simonvetter-modbus/cmd/modbus-cli.go plays for
// its client.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"

	farmodbus "github.com/ravenfarm/farmodbus"
)

func main() {
	var device string
	var tcpAddr string
	var speed int
	var dataBits int
	var parity string
	var stopBits string
	var stationAddr uint
	var reg int
	var preset string

	flag.StringVar(&device, "serial", "", "serial device to open (e.g. /dev/ttyUSB0), mutually exclusive with -tcp")
	flag.StringVar(&tcpAddr, "tcp", "", "raw RTU-over-TCP gateway address (host:port), mutually exclusive with -serial")
	flag.IntVar(&speed, "speed", 19200, "serial bus speed in bps")
	flag.IntVar(&dataBits, "data-bits", 8, "number of bits per serial character")
	flag.StringVar(&parity, "parity", "none", "parity bit <none|even|odd>")
	flag.StringVar(&stopBits, "stop-bits", "2", "number of stop bits <1|2>")
	flag.UintVar(&stationAddr, "station", 1, "modbus slave address to poll")
	flag.IntVar(&reg, "register", 0, "register offset to watch")
	flag.StringVar(&preset, "preset", "T3000", "configuration preset to apply")
	flag.Parse()

	if device == "" && tcpAddr == "" {
		fmt.Fprintln(os.Stderr, "one of -serial or -tcp is required")
		os.Exit(1)
	}

	farm := farmodbus.NewFarm()
	defer farm.Close()

	if err := farm.Configure(preset); err != nil {
		fmt.Fprintf(os.Stderr, "configure: %v\n", err)
		os.Exit(1)
	}

	var portHandle farmodbus.PortHandle
	var err error
	if device != "" {
		portHandle, err = farm.AddSerialPort(farmodbus.SerialConfig{
			Device:   device,
			BaudRate: speed,
			DataBits: dataBits,
			Parity:   parseParity(parity),
			StopBits: parseStopBits(stopBits),
		})
	} else {
		portHandle, err = farm.AddTCPPort(tcpAddr, 5*time.Second)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "add port: %v\n", err)
		os.Exit(1)
	}

	station, err := farm.AddStation(portHandle, byte(stationAddr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "add station: %v\n", err)
		os.Exit(1)
	}

	var last int16
	var haveLast bool
	for {
		v, err := farm.Query(station, reg)
		switch {
		case err == nil && (!haveLast || v != last):
			fmt.Printf("register %d = %d\n", reg, v)
			last, haveLast = v, true
		case err != nil && farmodbus.Code(err) != farmodbus.NotReady:
			fmt.Printf("register %d: %v\n", reg, err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func parseParity(s string) serial.Parity {
	switch s {
	case "even":
		return serial.EvenParity
	case "odd":
		return serial.OddParity
	default:
		return serial.NoParity
	}
}

func parseStopBits(s string) serial.StopBits {
	if s == "1" {
		return serial.OneStopBit
	}
	return serial.TwoStopBits
}
