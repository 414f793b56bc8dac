package farmodbus

import "testing"

func TestBuildReadRequestLayout(t *testing.T) {
	frame := buildReadRequest(0x01, fcReadHoldingRegisters, 0, 10)

	want := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}
	if len(frame) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(frame))
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Errorf("byte %d: expected 0x%02x, got 0x%02x", i, want[i], frame[i])
		}
	}
}

func TestBuildWriteSingleRequestLayout(t *testing.T) {
	frame := buildWriteSingleRequest(0x01, 10, 42)

	if frame[0] != 0x01 || frame[1] != fcWriteSingleRegister {
		t.Fatalf("unexpected header: % x", frame[:2])
	}
	if frame[2] != 0x00 || frame[3] != 10 {
		t.Errorf("unexpected register field: % x", frame[2:4])
	}
	if frame[4] != 0x00 || frame[5] != 42 {
		t.Errorf("unexpected value field: % x", frame[4:6])
	}

	hi, lo := crcOf(frame[:6])
	if frame[6] != hi || frame[7] != lo {
		t.Errorf("crc mismatch: frame has {0x%02x,0x%02x}, computed {0x%02x,0x%02x}",
			frame[6], frame[7], hi, lo)
	}
}

func TestDecodeReadReplyTwosComplement(t *testing.T) {
	// byteCount=4 (2 registers), values 0x0007 and 0xFFFF (-1)
	reply := []byte{0x01, fcReadHoldingRegisters, 0x04, 0x00, 0x07, 0xFF, 0xFF}
	hi, lo := crcOf(reply)
	reply = append(reply, hi, lo)

	values, err := decodeReadReply(reply, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0] != 7 {
		t.Errorf("expected register 0 = 7, got %d", values[0])
	}
	if values[1] != -1 {
		t.Errorf("expected register 1 = -1, got %d", values[1])
	}
}

func TestDecodeReadReplyRejectsBadCRC(t *testing.T) {
	reply := []byte{0x01, fcReadHoldingRegisters, 0x02, 0x00, 0x01, 0x00, 0x00}
	_, err := decodeReadReply(reply, 1)
	if err != ErrBadCRC {
		t.Errorf("expected ErrBadCRC, got %v", err)
	}
}

func TestDecodeReadReplyRejectsShortFrame(t *testing.T) {
	reply := []byte{0x01, fcReadHoldingRegisters}
	_, err := decodeReadReply(reply, 2)
	if err != ErrShortFrame {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}

func TestClassifyWriteReply(t *testing.T) {
	ok, exception := classifyWriteReply([]byte{0x01, fcWriteSingleRegister, 0, 10, 0, 42})
	if !ok || exception {
		t.Errorf("expected a clean success reply")
	}

	ok, exception = classifyWriteReply([]byte{0x01, fcWriteSingleRegister | exceptionBit, 0x02})
	if ok || !exception {
		t.Errorf("expected an exception reply")
	}

	ok, exception = classifyWriteReply([]byte{0x01, 0x00})
	if ok || exception {
		t.Errorf("expected neither for an unrecognized function code")
	}
}
