package farmodbus

import (
	"net"
	"time"
)

// socketLink adapts a net.Conn to the farm's link interface, the same role
// simonvetter-modbus's socketWrapper plays for its raw "rtuovertcp://"
// mode: no MBAP framing, just the same 8-byte RTU frames sent over a
// stream socket instead of a physical wire.
type socketLink struct {
	conn net.Conn
}

// dialSocketLink opens a raw TCP connection to a Modbus gateway that
// forwards RTU frames byte-for-byte (as opposed to a real Modbus/TCP
// server, which this farm does not speak).
func dialSocketLink(address string, dialTimeout time.Duration) (*socketLink, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &socketLink{conn: conn}, nil
}

// newSocketLink wraps an already-connected net.Conn, used by tests to hand
// the farm one end of a net.Pipe().
func newSocketLink(conn net.Conn) *socketLink {
	return &socketLink{conn: conn}
}

func (s *socketLink) Close() error {
	return s.conn.Close()
}

func (s *socketLink) Read(buf []byte) (int, error) {
	return s.conn.Read(buf)
}

func (s *socketLink) Write(buf []byte) (int, error) {
	return s.conn.Write(buf)
}

func (s *socketLink) SetReadDeadline(deadline time.Time) error {
	return s.conn.SetReadDeadline(deadline)
}
