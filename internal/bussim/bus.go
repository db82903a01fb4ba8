// internal/bussim/bus.go
package bussim

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/frame"
)

// Geometry describes one simulated device.
type Geometry struct {
	ID      uint8
	Sectors uint16
	Blocks  uint16
}

type blockKey struct {
	dev    uint8
	sector uint16
	block  uint16
}

// Bus is an in-memory multi-device block bus.
// Storage survives connections; it is only lost with the Bus itself.
type Bus struct {
	mu      sync.Mutex
	devices map[uint8]Geometry
	data    map[blockKey]*[frame.BlockSize]byte
	log     *zap.Logger

	requests uint64
}

// New builds a bus with the given devices present.
func New(devices []Geometry, log *zap.Logger) (*Bus, error) {
	if log == nil {
		log = zap.NewNop()
	}

	b := &Bus{
		devices: make(map[uint8]Geometry, len(devices)),
		data:    make(map[blockKey]*[frame.BlockSize]byte),
		log:     log,
	}

	for _, d := range devices {
		if d.ID >= frame.MaxDevices {
			return nil, fmt.Errorf("bussim: device id %d out of range (max %d)", d.ID, frame.MaxDevices-1)
		}
		if _, dup := b.devices[d.ID]; dup {
			return nil, fmt.Errorf("bussim: duplicate device id %d", d.ID)
		}
		b.devices[d.ID] = d
	}

	return b, nil
}

// Handle executes one request.
// For block writes payload must hold one block; for block reads the returned
// payload holds one block. Any other request returns a nil payload.
func (b *Bus) Handle(req frame.Fields, payload []byte) (frame.Fields, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++

	switch req.Opcode() {
	case frame.OpPowerOn, frame.OpPowerOff:
		return frame.Respond(req, true), nil

	case frame.OpDevProbe:
		resp := frame.Respond(req, true)
		resp.D0 = b.presenceMask()
		return resp, nil

	case frame.OpDevInit:
		g, ok := b.devices[req.C1]
		if !ok {
			return frame.Respond(req, false), nil
		}
		resp := frame.Respond(req, true)
		resp.D0 = g.Sectors
		resp.D1 = g.Blocks
		return resp, nil

	case frame.OpBlockXfer:
		return b.transfer(req, payload)

	default:
		b.log.Warn("bussim: unknown opcode", zap.Uint8("c0", req.C0))
		return frame.Respond(req, false), nil
	}
}

// Requests returns how many requests the bus has handled.
func (b *Bus) Requests() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

// Stored returns a copy of the block at the given address and whether it was ever written.
func (b *Bus) Stored(dev uint8, sector, block uint16) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	blk, ok := b.data[blockKey{dev, sector, block}]
	if !ok {
		return nil, false
	}
	out := make([]byte, frame.BlockSize)
	copy(out, blk[:])
	return out, true
}

func (b *Bus) presenceMask() uint16 {
	var mask uint16
	for id := range b.devices {
		mask |= 1 << id
	}
	return mask
}

func (b *Bus) transfer(req frame.Fields, payload []byte) (frame.Fields, []byte) {
	g, ok := b.devices[req.C1]
	if !ok || req.D0 >= g.Sectors || req.D1 >= g.Blocks {
		b.log.Warn("bussim: transfer out of bounds", zap.Stringer("req", req))
		if req.C2 == frame.XferRead {
			return frame.Respond(req, false), make([]byte, frame.BlockSize)
		}
		return frame.Respond(req, false), nil
	}

	key := blockKey{req.C1, req.D0, req.D1}

	switch req.C2 {
	case frame.XferRead:
		out := make([]byte, frame.BlockSize)
		if blk, ok := b.data[key]; ok {
			copy(out, blk[:])
		}
		return frame.Respond(req, true), out

	case frame.XferWrite:
		if len(payload) != frame.BlockSize {
			return frame.Respond(req, false), nil
		}
		blk := new([frame.BlockSize]byte)
		copy(blk[:], payload)
		b.data[key] = blk
		return frame.Respond(req, true), nil

	default:
		return frame.Respond(req, false), nil
	}
}
