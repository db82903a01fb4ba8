// internal/cache/cache_test.go
package cache

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/lcloud/internal/frame"
)

func block(b byte) []byte {
	return bytes.Repeat([]byte{b}, frame.BlockSize)
}

func TestLookup_EmptyCacheMisses(t *testing.T) {
	c := New(4, nil)

	assert.Nil(t, c.Lookup(Key{}))
	assert.Equal(t, uint64(0), c.Hits())
	assert.Equal(t, uint64(1), c.Misses())
	assert.Equal(t, 0, c.Populated())
}

func TestInsertThenLookup(t *testing.T) {
	c := New(4, nil)
	k := Key{Device: 1, Sector: 2, Block: 3}

	c.Insert(k, block(0xAB))

	got := c.Lookup(k)
	require.NotNil(t, got)
	assert.Equal(t, block(0xAB), got)
	assert.Equal(t, uint64(1), c.Hits())
}

func TestLookup_ReturnsCopy(t *testing.T) {
	c := New(2, nil)
	k := Key{Block: 1}
	c.Insert(k, block(1))

	got := c.Lookup(k)
	got[0] = 99

	assert.Equal(t, block(1), c.Lookup(k))
}

func TestInsert_UpdatesInPlace(t *testing.T) {
	c := New(3, nil)
	k := Key{Device: 0, Sector: 0, Block: 0}

	c.Insert(k, block(1))
	c.Insert(Key{Block: 1}, block(2))
	c.Insert(k, block(3))

	assert.Equal(t, 2, c.Populated())
	assert.Equal(t, block(3), c.Lookup(k))
}

func TestInsert_EvictsSmallestStamp(t *testing.T) {
	c := New(3, nil)
	a, b, d := Key{Block: 1}, Key{Block: 2}, Key{Block: 3}

	c.Insert(a, block(1))
	c.Insert(b, block(2))
	c.Insert(d, block(3))

	// touching a makes b the least recently referenced
	require.NotNil(t, c.Lookup(a))

	c.Insert(Key{Block: 4}, block(4))

	assert.Nil(t, c.Lookup(b))
	assert.NotNil(t, c.Lookup(a))
	assert.NotNil(t, c.Lookup(d))
	assert.NotNil(t, c.Lookup(Key{Block: 4}))
}

func TestInsert_FillsUnusedSlotsFirst(t *testing.T) {
	c := New(4, nil)

	for i := 0; i < 4; i++ {
		c.Insert(Key{Block: uint16(i)}, block(byte(i)))
	}

	for i := 0; i < 4; i++ {
		assert.NotNil(t, c.Lookup(Key{Block: uint16(i)}), "block %d evicted before cache was full", i)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	c := New(8, nil)
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		k := Key{Device: uint8(r.Intn(3)), Sector: uint16(r.Intn(4)), Block: uint16(r.Intn(8))}
		if r.Intn(2) == 0 {
			c.Insert(k, block(byte(i)))
		} else {
			c.Lookup(k)
		}
		require.LessOrEqual(t, c.Populated(), c.Capacity())
	}
}

func TestEvictionMatchesReference(t *testing.T) {
	// Independently track stamps and check the evicted key each time.
	const capacity = 5
	c := New(capacity, nil)
	r := rand.New(rand.NewSource(7))

	stamps := map[Key]uint64{}
	var clock uint64

	for i := 0; i < 500; i++ {
		k := Key{Block: uint16(r.Intn(12))}

		if r.Intn(3) == 0 {
			got := c.Lookup(k)
			if _, ok := stamps[k]; ok {
				require.NotNil(t, got)
				clock++
				stamps[k] = clock
			} else {
				require.Nil(t, got)
			}
			continue
		}

		if _, ok := stamps[k]; !ok && len(stamps) == capacity {
			var oldest Key
			lowest := ^uint64(0)
			for key, s := range stamps {
				if s < lowest {
					lowest, oldest = s, key
				}
			}
			delete(stamps, oldest)
		}

		c.Insert(k, block(byte(i)))
		clock++
		stamps[k] = clock
		require.Equal(t, len(stamps), c.Populated())
	}

	for k := range stamps {
		assert.NotNil(t, c.Lookup(k))
	}
}

func TestClose_DropsBlocks(t *testing.T) {
	c := New(2, nil)
	c.Insert(Key{}, block(1))
	c.Close()

	assert.Equal(t, 0, c.Populated())
	assert.Nil(t, c.Lookup(Key{}))
}

func TestNew_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultMaxBlocks, New(0, nil).Capacity())
}
