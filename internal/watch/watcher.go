package watch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"miniswap/internal/pool"
)

// Heads reports the chain head.
type Heads interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// ReserveReader rereads the reserves and replaces the cached snapshot.
type ReserveReader interface {
	Reserves(ctx context.Context) (*pool.Snapshot, error)
}

// Config holds runtime settings for the watcher.
type Config struct {
	PollInterval time.Duration
}

// Watcher follows the chain head and refreshes the reserve snapshot once per
// new head, so quotes track trades made by other accounts.
type Watcher struct {
	cfg      Config
	heads    Heads
	reserves ReserveReader
	logger   *zap.Logger
	onChange func(block uint64, snap *pool.Snapshot)
	last     uint64
}

// NewWatcher builds a Watcher. onChange may be nil.
func NewWatcher(cfg Config, heads Heads, reserves ReserveReader, logger *zap.Logger, onChange func(uint64, *pool.Snapshot)) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Watcher{
		cfg:      cfg,
		heads:    heads,
		reserves: reserves,
		logger:   logger,
		onChange: onChange,
	}
}

// Run polls until ctx ends. Failed polls are logged and retried on the next
// tick.
func (w *Watcher) Run(ctx context.Context) error {
	if w.heads == nil || w.reserves == nil {
		return fmt.Errorf("watcher needs a head source and a reserve reader")
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll refreshes the reserves when the head moved past the last refreshed
// block. Several new blocks collapse into one refresh.
func (w *Watcher) Poll(ctx context.Context) (bool, error) {
	head, err := w.heads.LatestBlockNumber(ctx)
	if err != nil {
		return false, fmt.Errorf("get latest block: %w", err)
	}
	if head <= w.last {
		return false, nil
	}

	snap, err := w.reserves.Reserves(ctx)
	if err != nil {
		return false, err
	}
	if w.last != 0 && head > w.last+1 {
		w.logger.Debug("skipped blocks", zap.Uint64("from", w.last+1), zap.Uint64("to", head-1))
	}
	w.last = head

	w.logger.Debug("reserves refreshed",
		zap.Uint64("block", head),
		zap.Uint64("seq", snap.Seq),
		zap.String("reserve_a", snap.ReserveA.String()),
		zap.String("reserve_b", snap.ReserveB.String()),
	)
	if w.onChange != nil {
		w.onChange(head, snap)
	}
	return true, nil
}
