package farmodbus

import "encoding/binary"

// requestFrameLength is the fixed 8-byte RTU request layout this farm uses
// for both reads and single-register writes (spec.md §6.1): address,
// function code, a zeroed high address byte, the low address byte, a
// zeroed high value/count byte, the low value/count byte, and two CRC
// bytes. This caps register offsets (and single-register write values) at
// 0-255, exactly as the original implementation does; see SPEC_FULL.md §5
// for why that limitation is kept rather than "fixed".
const requestFrameLength = 8

// buildReadRequest assembles the 8-byte RTU request used to poll a
// station's current window of registers.
func buildReadRequest(address byte, functionCode byte, first, count int) []byte {
	frame := make([]byte, 6, requestFrameLength)
	frame[0] = address
	frame[1] = functionCode
	frame[2] = 0x00
	frame[3] = byte(first)
	frame[4] = 0x00
	frame[5] = byte(count)

	hi, lo := crcOf(frame)
	return append(frame, hi, lo)
}

// buildWriteSingleRequest assembles the 8-byte RTU request for a
// write-single-register (function code 6), per spec.md §6.1.
func buildWriteSingleRequest(address byte, reg int, value uint16) []byte {
	frame := make([]byte, 6, requestFrameLength)
	frame[0] = address
	frame[1] = fcWriteSingleRegister
	frame[2] = 0x00
	frame[3] = byte(reg)
	frame[4] = 0x00
	frame[5] = byte(value)

	hi, lo := crcOf(frame)
	return append(frame, hi, lo)
}

// decodeReadReply extracts count signed 16-bit register values from a read
// reply, starting at byte offset 3 of the raw frame (address, function
// code, byte count, then the values themselves), as described in
// spec.md §4.2 step 5. The two trailing CRC bytes are verified against the
// rest of the frame.
func decodeReadReply(frame []byte, count int) ([]int16, error) {
	const headerLen = 3
	needed := headerLen + 2*count + 2
	if len(frame) < needed {
		return nil, ErrShortFrame
	}

	hi, lo := crcOf(frame[:needed-2])
	if !(hi == frame[needed-2] && lo == frame[needed-1]) {
		return nil, ErrBadCRC
	}

	values := make([]int16, count)
	for k := 0; k < count; k++ {
		off := headerLen + 2*k
		values[k] = int16(binary.BigEndian.Uint16(frame[off : off+2]))
	}

	return values, nil
}

// classifyWriteReply reports whether a write-single-register reply frame
// echoes the request's function code (success), carries the exception bit
// (function code | 0x80), or is unrecognizable.
func classifyWriteReply(frame []byte) (ok bool, exception bool) {
	if len(frame) < 2 {
		return false, false
	}
	switch frame[1] {
	case fcWriteSingleRegister:
		return true, false
	case fcWriteSingleRegister | exceptionBit:
		return false, true
	default:
		return false, false
	}
}
