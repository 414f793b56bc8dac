package farmodbus

import (
	"sync"
	"time"
)

// StationHandle identifies a Station within a Farm, dense from 0 in
// AddStation order.
type StationHandle int

// unsetPolledFirst marks a station that has never been queried, matching
// the original cStation's myFirstReg == -1 sentinel.
const unsetPolledFirst = -1

// pollTimeout is the fixed response deadline for both reads and writes
// (spec.md §5, "each I/O has a fixed 6-second response timeout").
const pollTimeout = 6 * time.Second

// interFrameDelay is slept after sending a request, before waiting for the
// reply, to avoid a busy-spin while the slave turns the request around.
const interFrameDelay = 50 * time.Millisecond

// Station represents one Modbus slave address reached through a Port. Its
// mutex guards every field below; no I/O happens while it is held, so an
// application Query never blocks behind a slow device.
type Station struct {
	handle  StationHandle
	address byte
	port    *Port
	log     *logger

	mu             sync.Mutex
	cache          [256]int16
	polledFirst    int
	polledCount    int
	lastPollError  error
	lastWriteError error
}

func newStation(handle StationHandle, address byte, port *Port, log *logger) *Station {
	return &Station{
		handle:      handle,
		address:     address,
		port:        port,
		log:         log,
		polledFirst: unsetPolledFirst,
	}
}

// Query reads a single register, extending the station's polled range to
// cover it if necessary (spec.md §4.2).
func (s *Station) Query(reg int) (int16, error) {
	if reg < 0 || reg > maxRegisterOffset {
		return 0, ErrBadRegisterAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.extendRangeLocked(reg, 1)
	if s.lastPollError != nil {
		return 0, s.lastPollError
	}
	return s.cache[reg], nil
}

// QueryBlock reads count contiguous registers starting at first.
func (s *Station) QueryBlock(first, count int) ([]int16, error) {
	if first < 0 || count < 1 || first+count > len(s.cache) {
		return nil, ErrBadRegisterAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.extendRangeLocked(first, count)
	if s.lastPollError != nil {
		return nil, s.lastPollError
	}

	out := make([]int16, count)
	copy(out, s.cache[first:first+count])
	return out, nil
}

// extendRangeLocked grows [polledFirst, polledFirst+polledCount) to cover
// [first, first+count), marking not_ready whenever it actually widens.
// Must be called with s.mu held.
func (s *Station) extendRangeLocked(first, count int) {
	newFirst, newLast := first, first+count-1

	if s.polledFirst == unsetPolledFirst {
		s.polledFirst = newFirst
		s.polledCount = newLast - newFirst + 1
		s.lastPollError = ErrNotReady
		return
	}

	oldFirst := s.polledFirst
	oldLast := s.polledFirst + s.polledCount - 1
	widened := false

	if newFirst < oldFirst {
		oldFirst = newFirst
		widened = true
	}
	if newLast > oldLast {
		oldLast = newLast
		widened = true
	}

	if widened {
		s.polledFirst = oldFirst
		s.polledCount = oldLast - oldFirst + 1
		s.lastPollError = ErrNotReady
	}
}

// LastWriteError returns the outcome of the most recently executed write
// on this station; Farm.Write surfaces this value asynchronously.
func (s *Station) LastWriteError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWriteError
}

// Poll is called once per polling cycle, only from the farm's polling
// goroutine, never while holding s.mu at entry (spec.md §4.2).
func (s *Station) Poll(cfg *Configuration) {
	s.mu.Lock()
	first, count := s.polledFirst, s.polledCount
	s.mu.Unlock()

	if first == unsetPolledFirst {
		return
	}
	start := time.Now()

	if !s.port.IsOpen() {
		s.recordPollError(ErrPortNotOpen)
		return
	}

	frame := buildReadRequest(s.address, cfg.ReadFunctionCode(), first, count)
	if err := s.port.send(frame); err != nil {
		s.recordPollError(err)
		return
	}

	time.Sleep(interFrameDelay)

	reply := make([]byte, 3+2*count+2)
	if _, err := s.port.receiveFrame(reply, pollTimeout); err != nil {
		s.recordPollError(err)
		return
	}

	values, err := decodeReadReply(reply, count)
	if err != nil {
		s.recordPollError(err)
		return
	}

	s.mu.Lock()
	for k, v := range values {
		s.cache[first+k] = v
	}
	s.lastPollError = nil
	s.mu.Unlock()

	s.log.Debugw("poll ok", "station", s.handle, "first", first, "count", count,
		"elapsed", time.Since(start))
}

func (s *Station) recordPollError(err error) {
	s.mu.Lock()
	s.lastPollError = err
	s.mu.Unlock()
	s.log.Debugw("poll failed", "station", s.handle, "error", err)
}

// ExecuteWrite performs one write request, called only from the polling
// goroutine (spec.md §4.2). Only single-register writes are implemented;
// block writes set NYI, matching the source's unimplemented function-16
// path (see SPEC_FULL.md's open-question decisions).
func (s *Station) ExecuteWrite(w WriteRequest) {
	if !s.port.IsOpen() {
		s.recordWriteError(ErrPortNotOpen)
		return
	}
	if w.Count() != 1 {
		s.recordWriteError(ErrNotImplemented)
		return
	}

	frame := buildWriteSingleRequest(s.address, w.first, w.values[0])
	if err := s.port.send(frame); err != nil {
		s.recordWriteError(err)
		return
	}

	time.Sleep(interFrameDelay)

	reply := make([]byte, requestFrameLength)
	n, err := s.port.receiveAny(reply, pollTimeout)
	if err != nil {
		s.recordWriteError(err)
		return
	}

	ok, exception := classifyWriteReply(reply[:n])
	switch {
	case ok:
		s.recordWriteError(nil)
	case exception:
		s.recordWriteError(ErrDeviceException)
	default:
		s.recordWriteError(ErrDeviceError)
	}
}

func (s *Station) recordWriteError(err error) {
	s.mu.Lock()
	s.lastWriteError = err
	s.mu.Unlock()
	if err != nil {
		s.log.Debugw("write failed", "station", s.handle, "error", err)
	}
}
