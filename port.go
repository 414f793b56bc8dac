package farmodbus

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// link is the minimal transport surface a Port needs, matching the shape
// of simonvetter-modbus's socketWrapper/rtuLink: open/close, blocking
// Read/Write, and a read deadline. Both the serial and TCP-raw
// implementations satisfy it.
type link interface {
	Close() error
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	SetReadDeadline(deadline time.Time) error
}

// PortHandle identifies a Port within a Farm. Handles are dense, starting
// at 0, in the order AddPort was called.
type PortHandle int

// portKind distinguishes the two transports a Port can wrap.
type portKind int

const (
	portKindSerial portKind = iota
	portKindTCP
)

// Port owns one shared communication channel (a serial line or a raw TCP
// socket) that one or more stations are addressed over. All I/O on a port
// happens from the farm's single polling goroutine; Port itself only
// tracks open/closed state behind a mutex so Close can be called from
// application goroutines without racing the poller.
type Port struct {
	handle PortHandle
	kind   portKind
	name   string

	mu   sync.Mutex
	link link
	open bool

	log *logger
}

func newPort(handle PortHandle, kind portKind, name string, l link, log *logger) *Port {
	return &Port{
		handle: handle,
		kind:   kind,
		name:   name,
		link:   l,
		open:   true,
		log:    log,
	}
}

// IsOpen reports whether the port's underlying link is still usable.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Close releases the underlying link. Once closed, every station on this
// port reports port_not_open.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.open = false
	err := p.link.Close()
	p.log.Debugw("port closed", "port", p.handle, "error", err)
	return err
}

// send writes a request frame, called only from the polling goroutine.
func (p *Port) send(frame []byte) error {
	if !p.IsOpen() {
		return ErrPortNotOpen
	}
	_, err := p.link.Write(frame)
	return err
}

// receiveFrame blocks until exactly len(buf) bytes have arrived or timeout
// elapses, folding the original implementation's WaitForData-then-ReadData
// split into one call: a station always knows exactly how many bytes its
// expected reply is, so there is no need to poll for readiness separately
// from reading.
func (p *Port) receiveFrame(buf []byte, timeout time.Duration) (int, error) {
	if !p.IsOpen() {
		return 0, ErrPortNotOpen
	}
	if err := p.link.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(p.link, buf)
	if err != nil {
		if isTimeoutError(err) || err == io.ErrUnexpectedEOF || err == io.EOF {
			return n, ErrRequestTimedOut
		}
		return n, err
	}
	return n, nil
}

// receiveAny reads whatever arrives in a single Read call before timeout,
// for replies whose length isn't known ahead of time (a write reply is
// either a short echo or a shorter exception frame).
func (p *Port) receiveAny(buf []byte, timeout time.Duration) (int, error) {
	if !p.IsOpen() {
		return 0, ErrPortNotOpen
	}
	if err := p.link.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := p.link.Read(buf)
	if err != nil && isTimeoutError(err) {
		return n, ErrRequestTimedOut
	}
	return n, err
}

func (p *Port) String() string {
	kind := "serial"
	if p.kind == portKindTCP {
		kind = "tcp"
	}
	return fmt.Sprintf("port[%d]{%s, %s}", p.handle, kind, p.name)
}

// timeoutError is satisfied by net.Error and serialLink's
// serialTimeoutError alike.
type timeoutError interface {
	Timeout() bool
}

func isTimeoutError(err error) bool {
	te, ok := err.(timeoutError)
	return ok && te.Timeout()
}
