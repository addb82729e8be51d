package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "miniswap",
		Short:        "Quote and trade against a MiniUniswap pool",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", "http://127.0.0.1:8545", "JSON-RPC URL of the node")
	pf.String("deployment", "./deployments.json", "deployments.json written by the deploy script")
	pf.String("network", "", "network name; selects the deployment from the registry when --pg-dsn is set")
	pf.String("pg-dsn", "", "Postgres DSN of the deployment registry")
	pf.String("redis-addr", "", "redis address for action events")
	pf.Uint64("fee-numerator", 3, "pool fee numerator")
	pf.Uint64("fee-denominator", 1000, "pool fee denominator")
	pf.Int("max-retries", 2, "retries for failed reads")
	pf.Duration("retry-backoff", 250*time.Millisecond, "initial read retry backoff")
	pf.Float64("read-rps", 0, "eth_call rate limit, 0 disables")
	pf.Int("read-burst", 10, "eth_call burst")
	pf.Duration("snapshot-max-age", 10*time.Second, "reuse reserve snapshots younger than this")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newPoolCmd(),
		newQuoteCmd(),
		newSwapCmd(),
		newAddLiquidityCmd(),
		newRemoveLiquidityCmd(),
		newDeploymentCmd(),
		newServeCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
