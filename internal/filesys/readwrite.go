// internal/filesys/readwrite.go
package filesys

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/cache"
	"github.com/tamzrod/lcloud/internal/device"
	"github.com/tamzrod/lcloud/internal/frame"
)

const blockSize = frame.BlockSize

// Read copies up to len(p) bytes from the cursor and advances it.
// It never reads past the file length; a short count means end of file.
func (fs *Filesystem) Read(h Handle, p []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.operational(); err != nil {
		return 0, err
	}
	f, err := fs.files.get(h)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 || f.cursor >= f.length {
		return 0, nil
	}

	want := int64(len(p))
	if remain := f.length - f.cursor; want > remain {
		want = remain
	}

	var done int64
	for done < want {
		pos := f.cursor + done
		idx := int(pos / blockSize)
		off := pos % blockSize
		chunk := min(blockSize-off, want-done)

		loc, ok := f.lookup(idx)
		if !ok {
			f.cursor += done
			return int(done), fmt.Errorf("%w: %q block %d", ErrUnmappedBlock, f.path, idx)
		}

		data, err := fs.readBlock(loc)
		if err != nil {
			f.cursor += done
			return int(done), err
		}

		copy(p[done:done+chunk], data[off:off+chunk])
		done += chunk
	}

	f.cursor += done
	return int(done), nil
}

// Write stores p at the cursor, allocating blocks as the file grows,
// and advances the cursor. Partially covered blocks are read, merged and
// written back.
func (fs *Filesystem) Write(h Handle, p []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.operational(); err != nil {
		return 0, err
	}
	f, err := fs.files.get(h)
	if err != nil {
		return 0, err
	}

	want := int64(len(p))

	var done int64
	for done < want {
		pos := f.cursor + done
		idx := int(pos / blockSize)
		off := pos % blockSize
		chunk := min(blockSize-off, want-done)

		block := make([]byte, blockSize)

		loc, bound := f.lookup(idx)
		if bound {
			// a full overwrite has nothing to merge
			if chunk < blockSize {
				old, err := fs.readBlock(loc)
				if err != nil {
					return fs.advance(f, done), err
				}
				copy(block, old)
			}
		} else {
			loc, err = fs.devices.Allocate(f.preferredDevice(idx))
			if err != nil {
				return fs.advance(f, done), fmt.Errorf("filesys: %q block %d: %w", f.path, idx, err)
			}
			fs.log.Debug("block allocated",
				zap.String("path", f.path),
				zap.Int("index", idx),
				zap.Stringer("location", loc),
			)
		}

		copy(block[off:off+chunk], p[done:done+chunk])

		if err := fs.writeBlock(loc, block); err != nil {
			return fs.advance(f, done), err
		}
		if !bound {
			f.bind(idx, loc)
		}

		done += chunk
		if end := f.cursor + done; end > f.length {
			f.length = end
		}
	}

	return fs.advance(f, done), nil
}

// Seek moves the cursor to an absolute offset within [0, length].
func (fs *Filesystem) Seek(h Handle, offset int64) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.operational(); err != nil {
		return 0, err
	}
	f, err := fs.files.get(h)
	if err != nil {
		return 0, err
	}

	if offset < 0 || offset > f.length {
		return f.cursor, fmt.Errorf("%w: %d not in [0, %d]", ErrSeek, offset, f.length)
	}

	f.cursor = offset
	return f.cursor, nil
}

// Size returns the file length.
func (fs *Filesystem) Size(h Handle) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.operational(); err != nil {
		return 0, err
	}
	f, err := fs.files.get(h)
	if err != nil {
		return 0, err
	}
	return f.length, nil
}

// Tell returns the cursor.
func (fs *Filesystem) Tell(h Handle) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.operational(); err != nil {
		return 0, err
	}
	f, err := fs.files.get(h)
	if err != nil {
		return 0, err
	}
	return f.cursor, nil
}

func (fs *Filesystem) advance(f *openFile, n int64) int {
	f.cursor += n
	return int(n)
}

// readBlock returns one physical block, from the cache when it can.
func (fs *Filesystem) readBlock(loc device.Location) ([]byte, error) {
	key := cacheKey(loc)
	if data := fs.cache.Lookup(key); data != nil {
		return data, nil
	}

	buf := make([]byte, blockSize)
	fs.blockReads++
	resp, err := fs.bus.Exchange(frame.ReadBlock(loc.Device, loc.Sector, loc.Block), buf)
	if err != nil {
		return nil, fmt.Errorf("filesys: read %s: %w", loc, err)
	}
	if !resp.Decode().OK() {
		return nil, fmt.Errorf("%w: %s", ErrRead, loc)
	}

	fs.cache.Insert(key, buf)
	return buf, nil
}

// writeBlock sends one block to the bus and keeps the cache in step with it.
func (fs *Filesystem) writeBlock(loc device.Location, data []byte) error {
	fs.blockWrites++
	resp, err := fs.bus.Exchange(frame.WriteBlock(loc.Device, loc.Sector, loc.Block), data)
	if err != nil {
		return fmt.Errorf("filesys: write %s: %w", loc, err)
	}
	if !resp.Decode().OK() {
		return fmt.Errorf("%w: %s", ErrWrite, loc)
	}

	fs.cache.Insert(cacheKey(loc), data)
	return nil
}

func cacheKey(loc device.Location) cache.Key {
	return cache.Key{Device: loc.Device, Sector: loc.Sector, Block: loc.Block}
}
