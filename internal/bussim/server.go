// internal/bussim/server.go
package bussim

import (
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/frame"
)

// Server speaks the register protocol over TCP on behalf of a Bus.
// Each connection is served strictly request-then-response.
type Server struct {
	bus *Bus
	log *zap.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewServer(bus *Bus, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		bus:   bus,
		log:   log,
		conns: make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections until Close is called.
// It returns nil after Close, otherwise the accept error.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(conn)
		}()
	}
}

// Close stops accepting, drops live connections and waits for their handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.log.Debug("bussim: client connected", zap.String("remote", remote))

	var hdr [frame.Size]byte
	payload := make([]byte, frame.BlockSize)

	for {
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("bussim: read frame", zap.String("remote", remote), zap.Error(err))
			}
			return
		}

		req := frame.Decode(frame.Get(hdr[:]))

		var in []byte
		if req.IsWrite() {
			if _, err := io.ReadFull(conn, payload); err != nil {
				s.log.Debug("bussim: short write payload", zap.String("remote", remote), zap.Error(err))
				return
			}
			in = payload
		}

		resp, out := s.bus.Handle(req, in)

		frame.Put(hdr[:], frame.Encode(resp))
		if _, err := conn.Write(hdr[:]); err != nil {
			return
		}

		if req.IsRead() {
			if _, err := conn.Write(out); err != nil {
				return
			}
		}

		if req.Opcode() == frame.OpPowerOff {
			s.log.Debug("bussim: power off", zap.String("remote", remote))
			return
		}
	}
}
