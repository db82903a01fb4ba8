// internal/frame/frame.go
package frame

import (
	"encoding/binary"
	"fmt"
)

// Frame is one packed 64-bit register value exchanged per bus request.
type Frame uint64

// Fields is the unpacked view of a Frame.
// B0 and B1 only use their low 4 bits.
type Fields struct {
	B0 uint8 // response flag
	B1 uint8 // status
	C0 uint8 // opcode class
	C1 uint8 // device id
	C2 uint8 // transfer direction
	D0 uint16
	D1 uint16
}

// Encode packs fields into a frame.
// Values are masked to their declared width. No IO. No side effects.
func Encode(f Fields) Frame {
	var v uint64
	v |= (uint64(f.B0) & mask4) << shiftB0
	v |= (uint64(f.B1) & mask4) << shiftB1
	v |= (uint64(f.C0) & mask8) << shiftC0
	v |= (uint64(f.C1) & mask8) << shiftC1
	v |= (uint64(f.C2) & mask8) << shiftC2
	v |= (uint64(f.D0) & mask16) << shiftD0
	v |= (uint64(f.D1) & mask16) << shiftD1
	return Frame(v)
}

// Decode is the inverse of Encode.
func Decode(fr Frame) Fields {
	v := uint64(fr)
	return Fields{
		B0: uint8((v >> shiftB0) & mask4),
		B1: uint8((v >> shiftB1) & mask4),
		C0: uint8((v >> shiftC0) & mask8),
		C1: uint8((v >> shiftC1) & mask8),
		C2: uint8((v >> shiftC2) & mask8),
		D0: uint16((v >> shiftD0) & mask16),
		D1: uint16((v >> shiftD1) & mask16),
	}
}

// Decode is shorthand for Decode(fr).
func (fr Frame) Decode() Fields { return Decode(fr) }

// Opcode returns the operation class carried in c0.
func (f Fields) Opcode() Opcode { return Opcode(f.C0) }

// OK reports whether the bus marked the request successful.
func (f Fields) OK() bool { return f.B1 == StatusOK }

// IsTransfer reports whether the frame is a block transfer.
func (f Fields) IsTransfer() bool { return f.Opcode() == OpBlockXfer }

// IsRead reports whether the frame is a block transfer towards the caller.
func (f Fields) IsRead() bool { return f.IsTransfer() && f.C2 == XferRead }

// IsWrite reports whether the frame is a block transfer towards the bus.
func (f Fields) IsWrite() bool { return f.IsTransfer() && f.C2 == XferWrite }

func (f Fields) String() string {
	return fmt.Sprintf("op=%s dev=%d dir=%d sector=%d block=%d b0=%d b1=%d",
		f.Opcode(), f.C1, f.C2, f.D0, f.D1, f.B0, f.B1)
}

// ---- wire order ----

// Put writes fr into dst in network byte order. dst must hold Size bytes.
func Put(dst []byte, fr Frame) {
	binary.BigEndian.PutUint64(dst, uint64(fr))
}

// Get reads a frame from src in network byte order.
func Get(src []byte) Frame {
	return Frame(binary.BigEndian.Uint64(src))
}

// ---- request builders ----

func PowerOn() Frame {
	return Encode(Fields{C0: uint8(OpPowerOn)})
}

func PowerOff() Frame {
	return Encode(Fields{C0: uint8(OpPowerOff)})
}

func Probe() Frame {
	return Encode(Fields{C0: uint8(OpDevProbe)})
}

func DevInit(dev uint8) Frame {
	return Encode(Fields{C0: uint8(OpDevInit), C1: dev})
}

func ReadBlock(dev uint8, sector, block uint16) Frame {
	return Encode(Fields{C0: uint8(OpBlockXfer), C1: dev, C2: XferRead, D0: sector, D1: block})
}

func WriteBlock(dev uint8, sector, block uint16) Frame {
	return Encode(Fields{C0: uint8(OpBlockXfer), C1: dev, C2: XferWrite, D0: sector, D1: block})
}

// Respond builds the response to req with the given status.
// The request's addressing fields are echoed back.
func Respond(req Fields, ok bool) Fields {
	resp := req
	resp.B0 = ResponseFlag
	resp.B1 = StatusFailed
	if ok {
		resp.B1 = StatusOK
	}
	return resp
}
