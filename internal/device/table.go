// internal/device/table.go
package device

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/frame"
)

var (
	// ErrNoSpace is returned when every powered device is full.
	ErrNoSpace = errors.New("device: no space left on any device")
	// ErrBusStatus is returned when the bus rejects a discovery request.
	ErrBusStatus = errors.New("device: bus reported failure")
	// ErrUnknownDevice is returned for a location on a device the bus never reported.
	ErrUnknownDevice = errors.New("device: unknown device")
)

// AnyDevice never names a real device; Allocate treats it as no preference.
const AnyDevice uint8 = 0xFF

// Requester is the transport contract the table needs.
type Requester interface {
	Exchange(req frame.Frame, buf []byte) (frame.Frame, error)
}

// Location is one physical block.
type Location struct {
	Device uint8
	Sector uint16
	Block  uint16
}

func (l Location) String() string {
	return fmt.Sprintf("%d/%d/%d", l.Device, l.Sector, l.Block)
}

// Record is one device that answered the probe.
type Record struct {
	ID      uint8
	Powered bool
	Sectors uint16
	Blocks  uint16

	used *bitset.BitSet // bit = sector*Blocks + block
	next uint           // search restarts here
	full bool           // monotonic
}

// Capacity is the number of blocks the device holds.
func (r *Record) Capacity() uint {
	return uint(r.Sectors) * uint(r.Blocks)
}

// Used is the number of reserved blocks.
func (r *Record) Used() uint {
	return r.used.Count()
}

// Full reports whether the allocator gave up on the device.
func (r *Record) Full() bool { return r.full }

func (r *Record) index(sector, block uint16) uint {
	return uint(sector)*uint(r.Blocks) + uint(block)
}

func (r *Record) location(i uint) Location {
	return Location{
		Device: r.ID,
		Sector: uint16(i / uint(r.Blocks)),
		Block:  uint16(i % uint(r.Blocks)),
	}
}

// nextFree finds the first free block at or after the search cursor,
// wrapping once to the start of the device.
func (r *Record) nextFree() (uint, bool) {
	if r.full || r.Capacity() == 0 {
		return 0, false
	}
	if i, ok := r.used.NextClear(r.next); ok {
		return i, true
	}
	if r.next > 0 {
		if i, ok := r.used.NextClear(0); ok {
			return i, true
		}
	}
	return 0, false
}

// Table tracks devices on the bus and places new blocks on them.
// Table is not safe for concurrent use.
type Table struct {
	devices []*Record // ascending id
	byID    map[uint8]*Record
	current int
	powered bool

	log *zap.Logger
}

func NewTable(log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	return &Table{
		byID: make(map[uint8]*Record),
		log:  log,
	}
}

// Initialize powers the bus on and discovers its devices.
func (t *Table) Initialize(r Requester) error {
	if err := t.PowerOn(r); err != nil {
		return err
	}
	return t.Discover(r)
}

// PowerOn sends the power-on request.
func (t *Table) PowerOn(r Requester) error {
	resp, err := r.Exchange(frame.PowerOn(), nil)
	if err != nil {
		return fmt.Errorf("device: power on: %w", err)
	}
	if !resp.Decode().OK() {
		return fmt.Errorf("device: power on: %w", ErrBusStatus)
	}
	t.powered = true
	t.log.Info("bus powered on")
	return nil
}

// Discover probes the bus and learns the geometry of every present device.
// It replaces whatever the table knew before.
func (t *Table) Discover(r Requester) error {
	resp, err := r.Exchange(frame.Probe(), nil)
	if err != nil {
		return fmt.Errorf("device: probe: %w", err)
	}
	probe := resp.Decode()
	if !probe.OK() {
		return fmt.Errorf("device: probe: %w", ErrBusStatus)
	}

	var found []*Record

	for id := uint8(0); id < frame.MaxDevices; id++ {
		if probe.D0&(1<<id) == 0 {
			continue
		}

		resp, err := r.Exchange(frame.DevInit(id), nil)
		if err != nil {
			return fmt.Errorf("device: init device %d: %w", id, err)
		}
		geom := resp.Decode()
		if !geom.OK() {
			return fmt.Errorf("device: init device %d: %w", id, ErrBusStatus)
		}

		rec := &Record{
			ID:      id,
			Powered: true,
			Sectors: geom.D0,
			Blocks:  geom.D1,
		}
		rec.used = bitset.New(rec.Capacity())
		rec.full = rec.Capacity() == 0

		t.log.Info("device discovered",
			zap.Uint8("device", id),
			zap.Uint16("sectors", rec.Sectors),
			zap.Uint16("blocks", rec.Blocks),
		)
		found = append(found, rec)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })

	t.devices = found
	t.byID = make(map[uint8]*Record, len(found))
	for _, rec := range found {
		t.byID[rec.ID] = rec
	}
	t.current = 0
	return nil
}

// Powered reports whether PowerOn succeeded.
func (t *Table) Powered() bool { return t.powered }

// Devices returns the discovered devices in ascending id order.
func (t *Table) Devices() []*Record {
	out := make([]*Record, len(t.devices))
	copy(out, t.devices)
	return out
}

// Device returns the record for id.
func (t *Table) Device(id uint8) (*Record, bool) {
	rec, ok := t.byID[id]
	return rec, ok
}

// Allocate reserves a free block, trying the preferred device first and
// otherwise the table's current device, moving on as devices fill.
// The block is marked used before it is returned.
func (t *Table) Allocate(preferred uint8) (Location, error) {
	if rec, ok := t.byID[preferred]; ok && rec.Powered {
		if loc, ok := t.take(rec); ok {
			return loc, nil
		}
	}

	for t.current < len(t.devices) {
		rec := t.devices[t.current]
		if rec.Powered {
			if loc, ok := t.take(rec); ok {
				return loc, nil
			}
		}
		t.current++
	}

	return Location{}, ErrNoSpace
}

// MarkUsed reserves a specific block.
func (t *Table) MarkUsed(loc Location) error {
	rec, ok := t.byID[loc.Device]
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownDevice, loc.Device)
	}
	if loc.Sector >= rec.Sectors || loc.Block >= rec.Blocks {
		return fmt.Errorf("device: location %s outside geometry %dx%d", loc, rec.Sectors, rec.Blocks)
	}
	rec.used.Set(rec.index(loc.Sector, loc.Block))
	if rec.used.Count() == rec.Capacity() {
		t.markFull(rec)
	}
	return nil
}

// InUse reports whether loc is reserved.
func (t *Table) InUse(loc Location) bool {
	rec, ok := t.byID[loc.Device]
	if !ok || loc.Sector >= rec.Sectors || loc.Block >= rec.Blocks {
		return false
	}
	return rec.used.Test(rec.index(loc.Sector, loc.Block))
}

// Usage returns reserved and total blocks over all powered devices.
func (t *Table) Usage() (used, total uint) {
	for _, rec := range t.devices {
		if !rec.Powered {
			continue
		}
		used += rec.Used()
		total += rec.Capacity()
	}
	return used, total
}

// FullCount returns how many devices are marked full.
func (t *Table) FullCount() int {
	n := 0
	for _, rec := range t.devices {
		if rec.full {
			n++
		}
	}
	return n
}

func (t *Table) take(rec *Record) (Location, bool) {
	i, ok := rec.nextFree()
	if !ok {
		t.markFull(rec)
		return Location{}, false
	}

	rec.used.Set(i)
	rec.next = i + 1
	if rec.used.Count() == rec.Capacity() {
		t.markFull(rec)
	}
	return rec.location(i), true
}

func (t *Table) markFull(rec *Record) {
	if rec.full {
		return
	}
	rec.full = true
	t.log.Info("device full", zap.Uint8("device", rec.ID), zap.Uint("blocks", rec.Capacity()))
}
