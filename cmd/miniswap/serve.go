package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"miniswap/internal/amm"
	"miniswap/internal/model"
	"miniswap/internal/notify"
	"miniswap/internal/pool"
	"miniswap/internal/server"
	"miniswap/internal/watch"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only pool state and quotes over HTTP",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8090", "listen address")
	cmd.Flags().Float64("api-rps", 5, "per-client request rate for pool and quote routes, 0 disables")
	cmd.Flags().Int("api-burst", 10, "per-client request burst")
	cmd.Flags().Bool("dev", false, "include error details in responses")
	cmd.Flags().Duration("poll-interval", 2*time.Second, "how often to check for new blocks")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	fee, err := a.cfg.Fee()
	if err != nil {
		return err
	}
	tol, err := a.cfg.Tolerance()
	if err != nil {
		return err
	}
	dev, _ := cmd.Flags().GetBool("dev")

	h := &server.Handlers{
		State:         a.reader,
		Pair:          a.pair,
		Fee:           fee,
		Tolerance:     tol,
		MaxAge:        a.cfg.SnapshotMaxAge,
		MetaA:         a.metaA,
		MetaB:         a.metaB,
		ShareDecimals: amm.DefaultDecimals,
		OnQuote:       a.metrics.ObserveQuote,
		DevMode:       dev,
		Logger:        a.logger,
	}
	watcher := watch.NewWatcher(watch.Config{PollInterval: a.cfg.PollInterval}, a.client, a.reader, a.logger,
		func(block uint64, _ *pool.Snapshot) { a.metrics.ObserveHead(block) })
	go func() {
		if err := watcher.Run(ctx); err != nil {
			a.logger.Warn("watcher stopped", zap.Error(err))
		}
	}()
	if a.publisher != nil {
		go a.refreshOnActions(ctx)
	}

	srv := server.NewServer(h, server.ServerConfig{
		Addr:     a.cfg.Addr,
		DevMode:  dev,
		RPS:      a.cfg.APIRPS,
		Burst:    a.cfg.APIBurst,
		Gatherer: a.registry,
	}, a.logger)
	return srv.Run(ctx)
}

// refreshOnActions rereads the reserves whenever an action on this pool
// completes, so quotes stop using the pre-trade snapshot.
func (a *app) refreshOnActions(ctx context.Context) {
	channel := notify.PoolChannel(a.pair.Pool.Hex())
	err := a.publisher.Subscribe(ctx, channel, func(e model.ActionEvent) {
		if _, err := a.reader.Reserves(ctx); err != nil {
			a.logger.Warn("refresh after action failed", zap.Uint64("action", e.ActionID), zap.Error(err))
			return
		}
		a.logger.Debug("reserves refreshed", zap.Uint64("action", e.ActionID), zap.String("state", e.State))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("action subscription ended", zap.String("channel", channel), zap.Error(err))
	}
}
