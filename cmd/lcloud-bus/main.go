// cmd/lcloud-bus/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/lcloud/internal/bussim"
	"github.com/tamzrod/lcloud/internal/config"
	"github.com/tamzrod/lcloud/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lcloud-bus: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath  string
		logLevel string
		listen   string
	)

	flagSet := pflag.NewFlagSet("lcloud-bus", pflag.ContinueOnError)
	flagSet.StringVarP(&cfgPath, "config", "c", "", "path to lcloud YAML config (simulator section)")
	flagSet.StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flagSet.StringVar(&listen, "listen", "", "override listen host:port")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

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
	if listen != "" {
		cfg.LCloud.Simulator.Listen = listen
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

	devices := make([]bussim.Geometry, 0, len(lc.Simulator.Devices))
	for _, d := range lc.Simulator.Devices {
		devices = append(devices, bussim.Geometry{ID: d.ID, Sectors: d.Sectors, Blocks: d.Blocks})
	}
	sim, err := bussim.New(devices, log)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", lc.Simulator.Listen)
	if err != nil {
		return err
	}
	srv := bussim.NewServer(sim, log)

	log.Info("bus listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("devices", len(devices)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ln) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("bus stopping", zap.Uint64("requests", sim.Requests()))
		return srv.Close()
	})

	return g.Wait()
}
