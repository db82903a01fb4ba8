// internal/cache/cache.go
package cache

import (
	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/frame"
)

// DefaultMaxBlocks is the slot count of the reference configuration.
const DefaultMaxBlocks = 64

// Key addresses one physical block.
type Key struct {
	Device uint8
	Sector uint16
	Block  uint16
}

// entry is a populated slot. A nil *entry is an unused slot.
type entry struct {
	key   Key
	stamp uint64
	data  [frame.BlockSize]byte
}

// Cache is a fixed-capacity block cache ranked by a logical clock.
// Every successful lookup and every insert takes the next clock value;
// the victim on insert is the slot with the smallest value.
//
// Cache is not safe for concurrent use.
type Cache struct {
	slots []*entry
	clock uint64

	hits   uint64
	misses uint64

	log *zap.Logger
}

// New creates a cache with exactly maxBlocks slots.
// A non-positive size falls back to DefaultMaxBlocks.
func New(maxBlocks int, log *zap.Logger) *Cache {
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxBlocks
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		slots: make([]*entry, maxBlocks),
		log:   log,
	}
}

// Lookup returns a copy of the cached block, or nil when absent.
func (c *Cache) Lookup(k Key) []byte {
	for _, e := range c.slots {
		if e == nil || e.key != k {
			continue
		}

		e.stamp = c.tick()
		c.hits++

		out := make([]byte, frame.BlockSize)
		copy(out, e.data[:])
		return out
	}

	c.misses++
	return nil
}

// Insert stores a copy of payload under k.
// An existing slot for k is updated in place; otherwise the least recently
// referenced slot is replaced (unused slots first, lowest index on ties).
func (c *Cache) Insert(k Key, payload []byte) {
	victim := c.victim(k)

	e := c.slots[victim]
	if e == nil {
		e = new(entry)
		c.slots[victim] = e
	} else if e.key != k {
		c.log.Debug("cache evict",
			zap.Int("slot", victim),
			zap.Uint8("device", e.key.Device),
			zap.Uint16("sector", e.key.Sector),
			zap.Uint16("block", e.key.Block),
		)
	}

	e.key = k
	e.data = [frame.BlockSize]byte{}
	copy(e.data[:], payload)
	e.stamp = c.tick()
}

// Capacity returns the fixed slot count.
func (c *Cache) Capacity() int { return len(c.slots) }

// Populated returns how many slots hold a block.
func (c *Cache) Populated() int {
	n := 0
	for _, e := range c.slots {
		if e != nil {
			n++
		}
	}
	return n
}

// Hits and Misses count Lookup outcomes since construction.
func (c *Cache) Hits() uint64   { return c.hits }
func (c *Cache) Misses() uint64 { return c.misses }

// Close drops every cached block. Counters are kept.
func (c *Cache) Close() {
	for i := range c.slots {
		c.slots[i] = nil
	}
}

func (c *Cache) tick() uint64 {
	c.clock++
	return c.clock
}

// victim picks the slot Insert overwrites.
func (c *Cache) victim(k Key) int {
	victim := -1
	var lowest uint64

	for i, e := range c.slots {
		if e == nil {
			victim = i
			break
		}
		if victim < 0 || e.stamp < lowest {
			victim = i
			lowest = e.stamp
		}
	}

	// update in place beats eviction; at most one slot holds k
	for i, e := range c.slots {
		if e != nil && e.key == k {
			return i
		}
	}

	return victim
}
