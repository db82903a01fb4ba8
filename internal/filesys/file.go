// internal/filesys/file.go
package filesys

import (
	"fmt"
	"io"
)

// File adapts one handle to io.ReadWriteSeeker and io.Closer.
type File struct {
	fs *Filesystem
	h  Handle
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// File wraps an open handle. The handle is not checked until first use.
func (fs *Filesystem) File(h Handle) *File {
	return &File{fs: fs, h: h}
}

// OpenFile is Open followed by File.
func (fs *Filesystem) OpenFile(path string) (*File, error) {
	h, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	return fs.File(h), nil
}

func (f *File) Handle() Handle { return f.h }

// Read returns io.EOF once the cursor sits at the end of the file.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.fs.Read(f.h, p)
	if err == nil && n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.fs.Write(f.h, p)
	if err == nil && n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, err
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		cur, err := f.fs.Tell(f.h)
		if err != nil {
			return 0, err
		}
		base = cur
	case io.SeekEnd:
		size, err := f.fs.Size(f.h)
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, fmt.Errorf("%w: whence %d", ErrSeek, whence)
	}
	return f.fs.Seek(f.h, base+offset)
}

func (f *File) Close() error {
	return f.fs.Close(f.h)
}
