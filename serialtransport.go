package farmodbus

import (
	"time"

	"go.bug.st/serial"
)

// SerialConfig describes one RTU serial line, mirroring the fields
// simonvetter-modbus's Configuration exposes for its "rtu://" mode.
type SerialConfig struct {
	// Device is the OS path to the serial device, e.g. /dev/ttyUSB0 or COM3.
	Device string
	// BaudRate defaults to 19200 when zero, matching the modbus-over-serial
	// spec's recommended default.
	BaudRate int
	// DataBits defaults to 8 when zero.
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

func (c *SerialConfig) withDefaults() SerialConfig {
	out := *c
	if out.BaudRate == 0 {
		out.BaudRate = 19200
	}
	if out.DataBits == 0 {
		out.DataBits = 8
	}
	if out.StopBits == 0 {
		if out.Parity == serial.NoParity {
			out.StopBits = serial.TwoStopBits
		} else {
			out.StopBits = serial.OneStopBit
		}
	}
	return out
}

// serialLink adapts a go.bug.st/serial.Port to the farm's link interface.
// go.bug.st/serial has no absolute-deadline concept (unlike net.Conn), only
// a relative SetReadTimeout; serialLink converts the deadline it's handed
// into a remaining duration when SetReadDeadline is called, the same
// adaptation simonvetter-modbus's serial.go performs against its older
// goburrow/serial dependency.
type serialLink struct {
	port serial.Port
}

// openSerialLink opens and configures a physical serial port.
func openSerialLink(cfg SerialConfig) (*serialLink, error) {
	resolved := cfg.withDefaults()

	mode := &serial.Mode{
		BaudRate: resolved.BaudRate,
		DataBits: resolved.DataBits,
		Parity:   resolved.Parity,
		StopBits: resolved.StopBits,
	}

	port, err := serial.Open(resolved.Device, mode)
	if err != nil {
		return nil, err
	}

	return &serialLink{port: port}, nil
}

func (s *serialLink) Close() error {
	return s.port.Close()
}

func (s *serialLink) Read(buf []byte) (int, error) {
	n, err := s.port.Read(buf)
	if n == 0 && err == nil && len(buf) > 0 {
		// go.bug.st/serial reports an expired read timeout as (0, nil).
		return 0, serialTimeoutError{}
	}
	return n, err
}

// serialTimeoutError is returned by serialLink.Read when the read timeout
// expires before any byte arrives.
type serialTimeoutError struct{}

func (serialTimeoutError) Error() string { return "serial read timed out" }
func (serialTimeoutError) Timeout() bool { return true }

func (s *serialLink) Write(buf []byte) (int, error) {
	return s.port.Write(buf)
}

func (s *serialLink) SetReadDeadline(deadline time.Time) error {
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	return s.port.SetReadTimeout(remaining)
}
