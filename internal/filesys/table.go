// internal/filesys/table.go
package filesys

import (
	"fmt"

	"github.com/tamzrod/lcloud/internal/device"
)

// DefaultMaxHandles bounds the number of simultaneously open files.
const DefaultMaxHandles = 1024

// Handle identifies an open file. Handles are never reused.
type Handle int

// binding is one entry of a file's block map.
type binding struct {
	loc   device.Location
	bound bool
}

type openFile struct {
	id     Handle
	path   string
	length int64
	cursor int64
	blocks []binding // index = logical block
}

func (f *openFile) lookup(idx int) (device.Location, bool) {
	if idx < 0 || idx >= len(f.blocks) || !f.blocks[idx].bound {
		return device.Location{}, false
	}
	return f.blocks[idx].loc, true
}

func (f *openFile) bind(idx int, loc device.Location) {
	for len(f.blocks) <= idx {
		f.blocks = append(f.blocks, binding{})
	}
	f.blocks[idx] = binding{loc: loc, bound: true}
}

// preferredDevice keeps a file's blocks together on one device when it can.
func (f *openFile) preferredDevice(idx int) uint8 {
	if loc, ok := f.lookup(idx - 1); ok {
		return loc.Device
	}
	return device.AnyDevice
}

// fileTable owns every open file.
type fileTable struct {
	files map[Handle]*openFile
	next  Handle
	max   int
}

func newFileTable(limit int) *fileTable {
	if limit <= 0 {
		limit = DefaultMaxHandles
	}
	return &fileTable{
		files: make(map[Handle]*openFile),
		max:   limit,
	}
}

func (t *fileTable) open(path string) (*openFile, error) {
	if len(t.files) >= t.max {
		return nil, fmt.Errorf("%w: handle table exhausted (%d open)", ErrOpen, len(t.files))
	}

	t.next++
	f := &openFile{id: t.next, path: path}
	t.files[f.id] = f
	return f, nil
}

func (t *fileTable) get(h Handle) (*openFile, error) {
	f, ok := t.files[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return f, nil
}

func (t *fileTable) close(h Handle) (*openFile, error) {
	f, err := t.get(h)
	if err != nil {
		return nil, err
	}
	delete(t.files, h)
	return f, nil
}

func (t *fileTable) count() int { return len(t.files) }

func (t *fileTable) reset() {
	t.files = make(map[Handle]*openFile)
}
