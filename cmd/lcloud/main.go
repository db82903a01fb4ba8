// cmd/lcloud/main.go
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/lcloud/internal/bus"
	"github.com/tamzrod/lcloud/internal/bussim"
	"github.com/tamzrod/lcloud/internal/config"
	"github.com/tamzrod/lcloud/internal/export"
	"github.com/tamzrod/lcloud/internal/filesys"
	"github.com/tamzrod/lcloud/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lcloud: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath     string
		logLevel    string
		endpoint    string
		embeddedBus bool
	)

	flagSet := pflag.NewFlagSet("lcloud", pflag.ContinueOnError)
	flagSet.StringVarP(&cfgPath, "config", "c", "", "path to lcloud YAML config")
	flagSet.StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flagSet.StringVar(&endpoint, "endpoint", "", "override bus endpoint host:port")
	flagSet.BoolVar(&embeddedBus, "embedded-bus", false, "serve the simulated bus in-process on the bus endpoint")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg := &config.Config{}
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		cfg = loaded
	}

	if logLevel != "" {
		cfg.LCloud.Log.Level = logLevel
	}
	if endpoint != "" {
		cfg.LCloud.Bus.Endpoint = endpoint
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	lc := cfg.LCloud

	log, err := logging.New(logging.Config{Level: lc.Log.Level, Development: lc.Log.Development})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Optional in-process bus
	// --------------------

	var servers errgroup.Group
	if embeddedBus {
		srv, ln, err := startEmbeddedBus(lc, log.Named("bussim"))
		if err != nil {
			return err
		}
		lc.Bus.Endpoint = ln.Addr().String()
		servers.Go(func() error { return srv.Serve(ln) })
		defer func() {
			_ = srv.Close()
			_ = servers.Wait()
		}()
	}

	// --------------------
	// Filesystem over the bus
	// --------------------

	client := bus.New(bus.Config{
		Endpoint: lc.Bus.Endpoint,
		Timeout:  time.Duration(lc.Bus.TimeoutMs) * time.Millisecond,
	}, log.Named("bus"))
	defer client.Close()

	fs := filesys.New(filesys.Config{
		CacheBlocks: lc.Cache.MaxBlocks,
		MaxHandles:  lc.Files.MaxHandles,
	}, client, log.Named("filesys"))

	// --------------------
	// Status export (optional)
	// --------------------

	var (
		pub       *export.Publisher
		publisher errgroup.Group
	)
	pubCtx, cancelPub := context.WithCancel(ctx)
	defer cancelPub()

	if lc.StatusExport != nil {
		p, closeExport, err := export.Build(lc.StatusExport, fs, log.Named("export"))
		if err != nil {
			return fmt.Errorf("status export build failed: %w", err)
		}
		defer func() { _ = closeExport() }()

		pub = p
		publisher.Go(func() error { return pub.Run(pubCtx) })
	}

	// --------------------
	// Workload, then shutdown
	// --------------------

	workErr := runWorkload(ctx, fs, lc.Workload.Files, log)

	stats, shutErr := fs.Shutdown()

	cancelPub()
	_ = publisher.Wait()
	if pub != nil {
		_ = pub.PublishStats(stats)
	}

	log.Info("lcloud finished",
		zap.Stringer("state", stats.State),
		zap.Uint64("cache_hits", stats.Hits),
		zap.Uint64("cache_misses", stats.Misses),
		zap.String("hit_ratio", fmt.Sprintf("%.2f%%", stats.HitRatio()*100)),
		zap.Uint("blocks_used", stats.BlocksUsed),
		zap.Uint("blocks_total", stats.BlocksTotal),
	)

	return errors.Join(workErr, shutErr)
}

func startEmbeddedBus(lc config.LCloudConfig, log *zap.Logger) (*bussim.Server, net.Listener, error) {
	devices := make([]bussim.Geometry, 0, len(lc.Simulator.Devices))
	for _, d := range lc.Simulator.Devices {
		devices = append(devices, bussim.Geometry{ID: d.ID, Sectors: d.Sectors, Blocks: d.Blocks})
	}

	sim, err := bussim.New(devices, log)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", lc.Simulator.Listen)
	if err != nil {
		return nil, nil, fmt.Errorf("embedded bus listen %s: %w", lc.Simulator.Listen, err)
	}

	log.Info("embedded bus listening", zap.String("addr", ln.Addr().String()), zap.Int("devices", len(devices)))
	return bussim.NewServer(sim, log), ln, nil
}

// runWorkload copies each source file in, reads it back and compares.
func runWorkload(ctx context.Context, fs *filesys.Filesystem, files []config.WorkloadFile, log *zap.Logger) error {
	for _, wf := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyAndVerify(fs, wf, log); err != nil {
			return fmt.Errorf("workload %q: %w", wf.Path, err)
		}
	}
	return nil
}

func copyAndVerify(fs *filesys.Filesystem, wf config.WorkloadFile, log *zap.Logger) error {
	want, err := os.ReadFile(wf.Source)
	if err != nil {
		return err
	}

	f, err := fs.OpenFile(wf.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(f, bytes.NewReader(want))
	if err != nil {
		return fmt.Errorf("copy in after %d bytes: %w", n, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	got, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("read back %d bytes, content differs from %d-byte source", len(got), len(want))
	}

	log.Info("workload file verified", zap.String("path", wf.Path), zap.Int64("bytes", n))
	return nil
}
