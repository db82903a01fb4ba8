// internal/bus/client.go
package bus

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/frame"
)

// DefaultEndpoint is where the bus listens unless configured otherwise.
const DefaultEndpoint = "127.0.0.1:16453"

// TransportError reports a connection failure or a short payload exchange.
// The session is always reset to disconnected before it is returned.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrShortTransfer is wrapped by TransportError when a payload is not exactly one block.
var ErrShortTransfer = errors.New("short block transfer")

// Config is minimal transport config.
type Config struct {
	Endpoint string
	// Timeout bounds one request/response exchange. Zero blocks indefinitely.
	Timeout time.Duration
	// Dial overrides net.Dial (tests).
	Dial func(network, address string) (net.Conn, error)
}

// Client owns the single logical connection to the bus.
// It is strictly request-then-response and NOT safe for concurrent use.
type Client struct {
	cfg     Config
	log     *zap.Logger
	conn    net.Conn
	session string

	hdr [frame.Size]byte
}

// New creates a disconnected client. The connection is opened by the first Exchange.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Dial == nil {
		cfg.Dial = net.Dial
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, log: log}
}

// Connected reports whether a live connection is held.
func (c *Client) Connected() bool { return c.conn != nil }

// Exchange sends one request frame and returns the response frame.
//
// Block reads fill buf with exactly frame.BlockSize bytes after the response
// frame arrives. Block writes send buf right after the request frame.
// A power-off request closes the connection whatever the response says.
func (c *Client) Exchange(req frame.Frame, buf []byte) (frame.Frame, error) {
	f := req.Decode()

	if f.IsTransfer() && len(buf) < frame.BlockSize {
		return 0, fmt.Errorf("bus transport: buffer of %d bytes, need %d", len(buf), frame.BlockSize)
	}

	if err := c.connect(); err != nil {
		return 0, err
	}

	if c.cfg.Timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	}

	var (
		resp frame.Frame
		err  error
	)

	switch {
	case f.IsRead():
		resp, err = c.exchangeRead(req, buf[:frame.BlockSize])
	case f.IsWrite():
		resp, err = c.exchangeWrite(req, buf[:frame.BlockSize])
	default:
		resp, err = c.exchange(req)
	}

	if err != nil {
		c.reset()
		return 0, err
	}

	if f.Opcode() == frame.OpPowerOff {
		c.reset()
	}

	return resp, nil
}

// Close drops the connection without notifying the bus.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ---- internal request/response helpers ----

func (c *Client) connect() error {
	if c.conn != nil {
		return nil
	}

	conn, err := c.cfg.Dial("tcp", c.cfg.Endpoint)
	if err != nil {
		return &TransportError{Op: "dial " + c.cfg.Endpoint, Err: err}
	}

	c.conn = conn
	c.session = uuid.NewString()
	c.log.Debug("bus connected",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.String("session", c.session),
	)
	return nil
}

func (c *Client) reset() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.log.Debug("bus disconnected", zap.String("session", c.session))
	c.session = ""
}

func (c *Client) exchange(req frame.Frame) (frame.Frame, error) {
	if err := c.sendFrame(req); err != nil {
		return 0, err
	}
	return c.recvFrame()
}

func (c *Client) exchangeRead(req frame.Frame, buf []byte) (frame.Frame, error) {
	resp, err := c.exchange(req)
	if err != nil {
		return 0, err
	}

	if n, err := io.ReadFull(c.conn, buf); err != nil {
		return 0, &TransportError{
			Op:  "read block",
			Err: fmt.Errorf("%w: received %d of %d bytes: %v", ErrShortTransfer, n, len(buf), err),
		}
	}
	return resp, nil
}

func (c *Client) exchangeWrite(req frame.Frame, buf []byte) (frame.Frame, error) {
	if err := c.sendFrame(req); err != nil {
		return 0, err
	}

	n, err := c.conn.Write(buf)
	if err != nil {
		return 0, &TransportError{Op: "write block", Err: err}
	}
	if n != len(buf) {
		return 0, &TransportError{
			Op:  "write block",
			Err: fmt.Errorf("%w: sent %d of %d bytes", ErrShortTransfer, n, len(buf)),
		}
	}

	return c.recvFrame()
}

func (c *Client) sendFrame(fr frame.Frame) error {
	frame.Put(c.hdr[:], fr)
	if _, err := c.conn.Write(c.hdr[:]); err != nil {
		return &TransportError{Op: "send frame", Err: err}
	}
	return nil
}

func (c *Client) recvFrame() (frame.Frame, error) {
	if _, err := io.ReadFull(c.conn, c.hdr[:]); err != nil {
		return 0, &TransportError{Op: "receive frame", Err: err}
	}
	return frame.Get(c.hdr[:]), nil
}
