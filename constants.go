package farmodbus

// Modbus function codes this farm speaks. Everything else is out of scope
// (see SPEC_FULL.md's non-goals): no coils, no discrete inputs, no
// multi-register writes.
const (
	fcReadHoldingRegisters byte = 0x03
	fcReadInputRegisters   byte = 0x04
	fcWriteSingleRegister  byte = 0x06

	// exceptionBit is or'd into the request's function code by a slave
	// reporting an exception reply.
	exceptionBit byte = 0x80
)

// maxRegisterOffset and maxRegisterCount reflect the single zeroed high
// byte in this frame layout (spec.md §6.1): a station can only ever be
// asked about registers 0-255, in windows of up to 255 registers.
const (
	maxRegisterOffset = 255
	maxRegisterCount  = 255
)
