// internal/filesys/errors.go
package filesys

import "errors"

// Caller usage errors are surfaced immediately; nothing is retried.
var (
	ErrOpen           = errors.New("filesys: open failed")
	ErrInvalidHandle  = errors.New("filesys: invalid file handle")
	ErrSeek           = errors.New("filesys: invalid seek offset")
	ErrUnmappedBlock  = errors.New("filesys: logical block was never written")
	ErrWrite          = errors.New("filesys: bus rejected block write")
	ErrRead           = errors.New("filesys: bus rejected block read")
	ErrShutdown       = errors.New("filesys: shutdown failed")
	ErrNotOperational = errors.New("filesys: filesystem is not operational")
)
