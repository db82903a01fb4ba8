// internal/filesys/filesys.go
package filesys

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/cache"
	"github.com/tamzrod/lcloud/internal/device"
	"github.com/tamzrod/lcloud/internal/frame"
)

// Bus abstracts the transport. Exactly one exchange is in flight at a time.
type Bus interface {
	Exchange(req frame.Frame, buf []byte) (frame.Frame, error)
}

// State is the lifecycle of a Filesystem.
type State int

const (
	StateUnopened State = iota
	StatePoweredOn
	StateOperational
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StatePoweredOn:
		return "powered-on"
	case StateOperational:
		return "operational"
	case StateShutDown:
		return "shut-down"
	default:
		return "unknown"
	}
}

// Config is the runtime config of a Filesystem.
type Config struct {
	CacheBlocks int
	MaxHandles  int
}

// Stats is an aggregate snapshot of cache and bus activity.
type Stats struct {
	State State

	Hits   uint64
	Misses uint64

	BlockReads  uint64 // read transfers sent to the bus
	BlockWrites uint64 // write transfers sent to the bus

	BlocksUsed  uint
	BlocksTotal uint

	OpenFiles   int
	Devices     int
	DevicesFull int
}

// HitRatio is hits over all lookups, 0 when nothing was looked up.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Filesystem presents open/read/write/seek/close over the block bus.
// Every exported method is one critical section.
type Filesystem struct {
	mu sync.Mutex

	cfg     Config
	bus     Bus
	devices *device.Table
	cache   *cache.Cache
	files   *fileTable
	state   State

	blockReads  uint64
	blockWrites uint64

	log *zap.Logger
}

// New creates an unopened filesystem. Nothing is sent to the bus until the first Open.
func New(cfg Config, bus Bus, log *zap.Logger) *Filesystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &Filesystem{
		cfg:     cfg,
		bus:     bus,
		devices: device.NewTable(log.Named("device")),
		files:   newFileTable(cfg.MaxHandles),
		state:   StateUnopened,
		log:     log,
	}
}

// State returns the current lifecycle state.
func (fs *Filesystem) State() State {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state
}

// Open creates a new empty file. The first call powers the bus on and
// discovers its devices.
func (fs *Filesystem) Open(path string) (Handle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.bringUp(); err != nil {
		return 0, err
	}

	f, err := fs.files.open(path)
	if err != nil {
		return 0, err
	}

	fs.log.Debug("file opened", zap.String("path", path), zap.Int("handle", int(f.id)))
	return f.id, nil
}

// Close invalidates the handle.
func (fs *Filesystem) Close(h Handle) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.operational(); err != nil {
		return err
	}

	f, err := fs.files.close(h)
	if err != nil {
		return err
	}

	fs.log.Debug("file closed",
		zap.String("path", f.path),
		zap.Int("handle", int(h)),
		zap.Int64("length", f.length),
	)
	return nil
}

// Shutdown powers the bus off and releases the cache and every open file.
// Local resources are released even when the bus reports failure.
func (fs *Filesystem) Shutdown() (Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.state == StateShutDown {
		return fs.statsLocked(), fmt.Errorf("%w: already shut down", ErrShutdown)
	}

	var err error
	if fs.state != StateUnopened {
		resp, xerr := fs.bus.Exchange(frame.PowerOff(), nil)
		switch {
		case xerr != nil:
			err = fmt.Errorf("%w: power off: %w", ErrShutdown, xerr)
		case !resp.Decode().OK():
			err = fmt.Errorf("%w: bus reported failure on power off", ErrShutdown)
		}
	}

	stats := fs.statsLocked()

	if fs.cache != nil {
		fs.cache.Close()
	}
	fs.files.reset()
	fs.state = StateShutDown
	stats.State = fs.state

	fs.log.Info("filesystem shut down",
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Float64("hit_ratio_pct", stats.HitRatio()*100),
		zap.Uint64("block_reads", stats.BlockReads),
		zap.Uint64("block_writes", stats.BlockWrites),
	)

	return stats, err
}

// Stats returns a snapshot without changing any state.
func (fs *Filesystem) Stats() Stats {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.statsLocked()
}

func (fs *Filesystem) statsLocked() Stats {
	s := Stats{
		State:       fs.state,
		BlockReads:  fs.blockReads,
		BlockWrites: fs.blockWrites,
		OpenFiles:   fs.files.count(),
		Devices:     len(fs.devices.Devices()),
		DevicesFull: fs.devices.FullCount(),
	}
	if fs.cache != nil {
		s.Hits = fs.cache.Hits()
		s.Misses = fs.cache.Misses()
	}
	s.BlocksUsed, s.BlocksTotal = fs.devices.Usage()
	return s
}

// bringUp walks Unopened -> PoweredOn -> Operational.
// A failed step leaves the state where it was so the next Open retries it.
func (fs *Filesystem) bringUp() error {
	switch fs.state {
	case StateShutDown:
		return fmt.Errorf("%w: %w", ErrOpen, ErrNotOperational)

	case StateUnopened:
		if err := fs.devices.PowerOn(fs.bus); err != nil {
			return fmt.Errorf("%w: %w", ErrOpen, err)
		}
		fs.cache = cache.New(fs.cfg.CacheBlocks, fs.log.Named("cache"))
		fs.state = StatePoweredOn
		fallthrough

	case StatePoweredOn:
		if err := fs.devices.Discover(fs.bus); err != nil {
			return fmt.Errorf("%w: %w", ErrOpen, err)
		}
		fs.state = StateOperational
		fs.log.Info("filesystem operational",
			zap.Int("devices", len(fs.devices.Devices())),
			zap.Int("cache_blocks", fs.cache.Capacity()),
		)
	}
	return nil
}

func (fs *Filesystem) operational() error {
	if fs.state != StateOperational {
		return fmt.Errorf("%w: state %s", ErrNotOperational, fs.state)
	}
	return nil
}
