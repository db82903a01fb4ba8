// internal/frame/constants.go
package frame

// Register frame layout constants.
// These values define the protocol and MUST NOT be configurable.

// BlockSize is the exact payload size of one block transfer.
const BlockSize = 256

// Size is the number of bytes a frame occupies on the wire.
const Size = 8

// MaxDevices is the number of device ids a probe mask can report.
const MaxDevices = 16

// ---- FIELD GEOMETRY (MSB -> LSB: b0 b1 c0 c1 c2 d0 d1) ----

const (
	shiftB0 = 60
	shiftB1 = 56
	shiftC0 = 48
	shiftC1 = 40
	shiftC2 = 32
	shiftD0 = 16
	shiftD1 = 0

	mask4  = 0xF
	mask8  = 0xFF
	mask16 = 0xFFFF
)

// ---- OPCODES (c0) ----

// Opcode is the operation class carried in c0.
type Opcode uint8

const (
	OpPowerOn   Opcode = 0
	OpPowerOff  Opcode = 1
	OpDevProbe  Opcode = 2
	OpDevInit   Opcode = 3
	OpBlockXfer Opcode = 4
)

func (o Opcode) String() string {
	switch o {
	case OpPowerOn:
		return "power-on"
	case OpPowerOff:
		return "power-off"
	case OpDevProbe:
		return "probe"
	case OpDevInit:
		return "device-init"
	case OpBlockXfer:
		return "block-xfer"
	default:
		return "unknown"
	}
}

// ---- TRANSFER DIRECTION (c2) ----

const (
	XferWrite uint8 = 0
	XferRead  uint8 = 1
)

// ---- STATUS (b0 / b1) ----

// ResponseFlag is set in b0 by the bus on every response.
const ResponseFlag uint8 = 1

// StatusOK is the b1 value reported for a successful request.
const StatusOK uint8 = 1

// StatusFailed is the b1 value the simulated bus reports on failure.
const StatusFailed uint8 = 0
