package farmodbus

import (
	"testing"
)

func TestCRCInitialValue(t *testing.T) {
	var c crc

	c.init()
	if c.hi != 0xff || c.lo != 0xff {
		t.Errorf("expected {0xff, 0xff}, saw {0x%02x, 0x%02x}", c.hi, c.lo)
	}
}

func TestCRCVector(t *testing.T) {
	// the spec's canonical CRC vector: a read-holding-registers request for
	// 10 registers starting at 0, unit id 1.
	req := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A}

	hi, lo := crcOf(req)
	if hi != 0xC5 || lo != 0xCD {
		t.Errorf("expected {0xC5, 0xCD}, got {0x%02x, 0x%02x}", hi, lo)
	}
}

func TestCRCStreaming(t *testing.T) {
	var whole, split crc

	data := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

	whole.init()
	whole.add(data)

	split.init()
	split.add(data[0:2])
	split.add(data[2:4])
	split.add(data[4:])

	if whole.hi != split.hi || whole.lo != split.lo {
		t.Errorf("streamed add() should match a single add() call: {0x%02x,0x%02x} vs {0x%02x,0x%02x}",
			whole.hi, whole.lo, split.hi, split.lo)
	}
}

func TestCRCIsEqual(t *testing.T) {
	var c crc

	c.init()
	c.add([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A})

	if !c.isEqual(0xC5, 0xCD) {
		t.Error("isEqual() should have returned true for the matching pair")
	}
	if c.isEqual(0xCD, 0xC5) {
		t.Error("isEqual() should have returned false for the swapped pair")
	}

	// an empty payload leaves the CRC at its seed value
	c.init()
	if !c.isEqual(0xff, 0xff) {
		t.Error("isEqual() should have returned true on a fresh crc")
	}
}
