package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"miniswap/internal/amm"
	"miniswap/internal/chain"
	"miniswap/internal/config"
	"miniswap/internal/deployment"
	"miniswap/internal/dex"
	"miniswap/internal/ledger"
	"miniswap/internal/metrics"
	"miniswap/internal/model"
	"miniswap/internal/notify"
	"miniswap/internal/orchestrator"
	"miniswap/internal/pool"
	"miniswap/internal/storage/postgres"
	"miniswap/internal/wallet"
)

// app is everything a command needs to talk to the deployed pool.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	deployment model.Deployment
	pair       ledger.Pair
	client     *chain.Client
	wallet     *wallet.KeyedWallet
	ledger     *ledger.EVM
	reader     *pool.Reader
	metaA      model.TokenMeta
	metaB      model.TokenMeta
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	store      *postgres.Store
	publisher  *notify.Publisher
}

func setup(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.init(cmd.Context()); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	if a.cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	if a.cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.store = store
	}

	d, err := a.resolveDeployment(ctx)
	if err != nil {
		return err
	}
	a.deployment = d
	if a.pair, err = deployment.ToPair(d); err != nil {
		return err
	}

	a.client, err = chain.NewClient(ctx, a.cfg.RPCURL, chain.WithReadLimit(a.cfg.ReadRPS, a.cfg.ReadBurst))
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}

	a.wallet, err = wallet.NewKeyedWallet(a.cfg.PrivateKey, a.client)
	if err != nil {
		return err
	}
	if err := wallet.CheckNetwork(ctx, a.wallet, d.ChainID); err != nil {
		return err
	}

	a.ledger, err = ledger.NewEVM(a.client, a.wallet, a.pair, a.logger)
	if err != nil {
		return err
	}
	if err := checkPoolAssets(ctx, a.client, a.pair, a.logger); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	a.reader = pool.NewReader(a.ledger, a.pair, pool.ReaderConfig{
		MaxRetries:    a.cfg.MaxRetries,
		RetryBackoff:  a.cfg.RetryBackoff,
		OnReserveRead: a.metrics.ObserveReserveRead,
	}, a.logger)

	metaCache := dex.NewTokenMetaCache()
	a.metaA = metaCache.Resolve(ctx, a.client, a.pair.AssetA, amm.DefaultDecimals, a.logger)
	a.metaB = metaCache.Resolve(ctx, a.client, a.pair.AssetB, amm.DefaultDecimals, a.logger)

	if a.cfg.RedisAddr != "" {
		a.publisher, err = notify.Dial(ctx, a.cfg.RedisAddr, a.logger)
		if err != nil {
			return err
		}
	}

	a.logger.Debug("pool bound",
		zap.String("network", d.Network),
		zap.String("pool", a.pair.Pool.Hex()),
		zap.String("asset_a", a.metaA.Symbol),
		zap.String("asset_b", a.metaB.Symbol),
	)
	return nil
}

// resolveDeployment prefers the registry entry for the configured network and
// falls back to the deployment file.
func (a *app) resolveDeployment(ctx context.Context) (model.Deployment, error) {
	if a.store != nil && a.cfg.Network != "" {
		d, ok, err := a.store.LoadDeployment(ctx, a.cfg.Network)
		if err != nil {
			return model.Deployment{}, fmt.Errorf("load deployment %s: %w", a.cfg.Network, err)
		}
		if ok {
			if err := deployment.Validate(d); err != nil {
				return model.Deployment{}, fmt.Errorf("registry deployment %s: %w", a.cfg.Network, err)
			}
			return d, nil
		}
		a.logger.Info("deployment not registered, using file", zap.String("network", a.cfg.Network))
	}

	d, err := deployment.LoadFile(a.cfg.Deployment)
	if err != nil {
		return model.Deployment{}, err
	}
	if a.cfg.Network != "" && d.Network != "" && d.Network != a.cfg.Network {
		a.logger.Warn("deployment file network differs",
			zap.String("file", d.Network),
			zap.String("network", a.cfg.Network),
		)
	}
	return d, nil
}

func (a *app) orchestrator() (*orchestrator.Orchestrator, error) {
	fee, err := a.cfg.Fee()
	if err != nil {
		return nil, err
	}
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithRecorder(a.metrics),
		orchestrator.WithObserver(func(t orchestrator.Transition) {
			a.logger.Info("action state",
				zap.Uint64("action", t.ActionID),
				zap.Stringer("intent", t.Intent),
				zap.Stringer("from", t.From),
				zap.Stringer("to", t.To),
			)
		}),
	}
	if a.publisher != nil {
		opts = append(opts, orchestrator.WithNotifier(a.publisher))
	}
	return orchestrator.New(a.ledger, a.pair, a.reader, a.wallet, orchestrator.Config{
		Fee:            fee,
		ConfirmTimeout: a.cfg.ConfirmTimeout,
	}, opts...)
}

// parseAsset accepts "a", "b", a token symbol or a hex address.
func (a *app) parseAsset(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(raw, "a"), a.metaA.Symbol != "" && strings.EqualFold(raw, a.metaA.Symbol):
		return a.pair.AssetA, nil
	case strings.EqualFold(raw, "b"), a.metaB.Symbol != "" && strings.EqualFold(raw, a.metaB.Symbol):
		return a.pair.AssetB, nil
	case common.IsHexAddress(raw):
		return common.HexToAddress(raw), nil
	default:
		return common.Address{}, fmt.Errorf("unknown asset %q", raw)
	}
}

func (a *app) meta(asset common.Address) model.TokenMeta {
	if asset == a.pair.AssetA {
		return a.metaA
	}
	return a.metaB
}

// checkPoolAssets compares the deployment's assets with the ones the pool
// reports. A pool that does not expose them is only logged.
func checkPoolAssets(ctx context.Context, caller dex.Caller, pair ledger.Pair, logger *zap.Logger) error {
	assetA, assetB, err := dex.PoolAssets(ctx, caller, pair.Pool)
	if err != nil {
		logger.Warn("pool assets not readable, trusting deployment", zap.String("pool", pair.Pool.Hex()), zap.Error(err))
		return nil
	}
	if assetA != pair.AssetA || assetB != pair.AssetB {
		return fmt.Errorf("deployment assets %s/%s do not match pool %s (%s/%s)",
			pair.AssetA.Hex(), pair.AssetB.Hex(), pair.Pool.Hex(), assetA.Hex(), assetB.Hex())
	}
	return nil
}

func (a *app) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
