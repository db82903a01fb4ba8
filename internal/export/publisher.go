// internal/export/publisher.go
package export

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/lcloud/internal/filesys"
	"github.com/tamzrod/lcloud/internal/status"
)

// StatsSource is what the publisher samples.
type StatsSource interface {
	Stats() filesys.Stats
}

// Publisher samples filesystem stats and writes them to the status block.
type Publisher struct {
	src      StatsSource
	w        StatusWriter
	interval time.Duration
	log      *zap.Logger
}

func NewPublisher(src StatsSource, w StatusWriter, interval time.Duration, log *zap.Logger) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{src: src, w: w, interval: interval, log: log}
}

// Run writes once immediately and then on every tick until ctx is done.
// Write failures are logged and retried on the next tick. No overlap.
func (p *Publisher) Run(ctx context.Context) error {
	p.Publish()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Publish()
		}
	}
}

// Publish samples and writes one snapshot.
func (p *Publisher) Publish() error {
	snap := status.FromStats(p.src.Stats())
	if err := p.w.WriteStatus(snap); err != nil {
		p.log.Warn("status publish failed", zap.Error(err))
		return err
	}
	return nil
}

// PublishStats writes an explicit stats value, e.g. the one returned by Shutdown.
func (p *Publisher) PublishStats(s filesys.Stats) error {
	if err := p.w.WriteStatus(status.FromStats(s)); err != nil {
		p.log.Warn("status publish failed", zap.Error(err))
		return err
	}
	return nil
}
