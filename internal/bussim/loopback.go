// internal/bussim/loopback.go
package bussim

import (
	"github.com/tamzrod/lcloud/internal/frame"
)

// Loopback delivers requests straight to a Bus without a socket.
// It follows the same payload contract as bus.Client.Exchange.
type Loopback struct {
	Bus *Bus
}

func (l *Loopback) Exchange(req frame.Frame, buf []byte) (frame.Frame, error) {
	f := req.Decode()

	var in []byte
	if f.IsWrite() {
		in = buf[:frame.BlockSize]
	}

	resp, out := l.Bus.Handle(f, in)

	if f.IsRead() {
		copy(buf[:frame.BlockSize], out)
	}

	return frame.Encode(resp), nil
}

func (l *Loopback) Close() error { return nil }
