// internal/device/table_test.go
package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tamzrod/lcloud/internal/bussim"
	"github.com/tamzrod/lcloud/internal/frame"
)

func newTable(t *testing.T, devices ...bussim.Geometry) *Table {
	t.Helper()

	b, err := bussim.New(devices, nil)
	require.NoError(t, err)

	tbl := NewTable(zaptest.NewLogger(t))
	require.NoError(t, tbl.Initialize(&bussim.Loopback{Bus: b}))
	return tbl
}

// ---- fake requester ----

// fakeRequester answers every request; fail, when set, names the one opcode it rejects.
type fakeRequester struct {
	fail  *frame.Opcode
	err   error
	calls []frame.Fields
}

func failing(op frame.Opcode) *fakeRequester {
	return &fakeRequester{fail: &op}
}

func (f *fakeRequester) Exchange(req frame.Frame, _ []byte) (frame.Frame, error) {
	r := req.Decode()
	f.calls = append(f.calls, r)

	if f.err != nil {
		return 0, f.err
	}

	ok := f.fail == nil || r.Opcode() != *f.fail
	resp := frame.Respond(r, ok)
	switch r.Opcode() {
	case frame.OpDevProbe:
		resp.D0 = 1<<0 | 1<<3
	case frame.OpDevInit:
		resp.D0, resp.D1 = 2, 2
	}
	return frame.Encode(resp), nil
}

// ---- tests ----

func TestInitialize_DiscoversDevices(t *testing.T) {
	tbl := newTable(t,
		bussim.Geometry{ID: 5, Sectors: 2, Blocks: 3},
		bussim.Geometry{ID: 1, Sectors: 4, Blocks: 4},
	)

	devs := tbl.Devices()
	require.Len(t, devs, 2)
	assert.Equal(t, uint8(1), devs[0].ID)
	assert.Equal(t, uint8(5), devs[1].ID)
	assert.Equal(t, uint(16), devs[0].Capacity())
	assert.Equal(t, uint(6), devs[1].Capacity())
	assert.True(t, tbl.Powered())

	_, total := tbl.Usage()
	assert.Equal(t, uint(22), total)
}

func TestInitialize_RequestSequence(t *testing.T) {
	f := &fakeRequester{}
	tbl := NewTable(nil)
	require.NoError(t, tbl.Initialize(f))

	require.Len(t, f.calls, 4)
	assert.Equal(t, frame.OpPowerOn, f.calls[0].Opcode())
	assert.Equal(t, frame.OpDevProbe, f.calls[1].Opcode())
	assert.Equal(t, frame.OpDevInit, f.calls[2].Opcode())
	assert.Equal(t, uint8(0), f.calls[2].C1)
	assert.Equal(t, uint8(3), f.calls[3].C1)
}

func TestInitialize_BusFailure(t *testing.T) {
	for _, op := range []frame.Opcode{frame.OpPowerOn, frame.OpDevProbe, frame.OpDevInit} {
		f := failing(op)
		err := NewTable(nil).Initialize(f)
		assert.ErrorIs(t, err, ErrBusStatus, "failing %s", op)

		// discovery stops at the rejected request
		require.NotEmpty(t, f.calls)
		assert.Equal(t, op, f.calls[len(f.calls)-1].Opcode())
	}

	tbl := NewTable(nil)
	require.Error(t, tbl.Initialize(failing(frame.OpPowerOn)))
	assert.False(t, tbl.Powered())

	boom := errors.New("boom")
	err := NewTable(nil).Initialize(&fakeRequester{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestAllocate_RowMajorOrder(t *testing.T) {
	tbl := newTable(t, bussim.Geometry{ID: 0, Sectors: 2, Blocks: 3})

	var got []Location
	for i := 0; i < 6; i++ {
		loc, err := tbl.Allocate(0)
		require.NoError(t, err)
		got = append(got, loc)
	}

	assert.Equal(t, []Location{
		{0, 0, 0}, {0, 0, 1}, {0, 0, 2},
		{0, 1, 0}, {0, 1, 1}, {0, 1, 2},
	}, got)

	_, err := tbl.Allocate(0)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, 1, tbl.FullCount())
}

func TestAllocate_SpansDevices(t *testing.T) {
	tbl := newTable(t,
		bussim.Geometry{ID: 2, Sectors: 1, Blocks: 2},
		bussim.Geometry{ID: 7, Sectors: 1, Blocks: 2},
	)

	var devs []uint8
	for i := 0; i < 4; i++ {
		loc, err := tbl.Allocate(2)
		require.NoError(t, err)
		devs = append(devs, loc.Device)
	}
	assert.Equal(t, []uint8{2, 2, 7, 7}, devs)

	rec, ok := tbl.Device(2)
	require.True(t, ok)
	assert.True(t, rec.Full())

	_, err := tbl.Allocate(7)
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestAllocate_NeverCollides(t *testing.T) {
	tbl := newTable(t,
		bussim.Geometry{ID: 0, Sectors: 3, Blocks: 5},
		bussim.Geometry{ID: 1, Sectors: 2, Blocks: 7},
		bussim.Geometry{ID: 9, Sectors: 1, Blocks: 1},
	)

	seen := map[Location]bool{}
	prefs := []uint8{9, 1, 0, 4}
	for i := 0; ; i++ {
		loc, err := tbl.Allocate(prefs[i%len(prefs)])
		if errors.Is(err, ErrNoSpace) {
			break
		}
		require.NoError(t, err)
		require.False(t, seen[loc], "location %s handed out twice", loc)
		require.True(t, tbl.InUse(loc))
		seen[loc] = true
	}

	assert.Len(t, seen, 15+14+1)
	used, total := tbl.Usage()
	assert.Equal(t, total, used)
}

func TestMarkUsed_SkippedByAllocator(t *testing.T) {
	tbl := newTable(t, bussim.Geometry{ID: 0, Sectors: 1, Blocks: 3})

	require.NoError(t, tbl.MarkUsed(Location{0, 0, 0}))

	loc, err := tbl.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, Location{0, 0, 1}, loc)

	assert.ErrorIs(t, tbl.MarkUsed(Location{Device: 3}), ErrUnknownDevice)
	assert.Error(t, tbl.MarkUsed(Location{0, 1, 0}))
}

func TestMarkUsed_FillsDevice(t *testing.T) {
	tbl := newTable(t, bussim.Geometry{ID: 0, Sectors: 1, Blocks: 1})

	require.NoError(t, tbl.MarkUsed(Location{0, 0, 0}))
	rec, _ := tbl.Device(0)
	assert.True(t, rec.Full())
}

func TestAllocate_ZeroGeometryDeviceIsFull(t *testing.T) {
	tbl := newTable(t,
		bussim.Geometry{ID: 0, Sectors: 0, Blocks: 8},
		bussim.Geometry{ID: 1, Sectors: 1, Blocks: 1},
	)

	loc, err := tbl.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), loc.Device)
}
