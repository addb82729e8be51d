package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.QuoteDebounce != 500*time.Millisecond || cfg.SnapshotMaxAge != 10*time.Second {
		t.Fatalf("unexpected quote timings %+v", cfg)
	}
	if cfg.ConfirmTimeout != 2*time.Minute || cfg.MaxRetries != 2 {
		t.Fatalf("unexpected action settings %+v", cfg)
	}
	fee, err := cfg.Fee()
	if err != nil || fee.Numerator != 3 || fee.Denominator != 1000 {
		t.Fatalf("unexpected fee %v %v", fee, err)
	}
	tol, err := cfg.Tolerance()
	if err != nil || tol.String() != "0.5%" {
		t.Fatalf("unexpected tolerance %v %v", tol, err)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("MINISWAP_SNAPSHOT_MAX_AGE", "3s")
	t.Setenv("MINISWAP_RPC", "http://env:8545")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("slippage", "", "")
	if err := flags.Parse([]string{"--rpc", "http://flag:8545", "--slippage", "1%"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://flag:8545" {
		t.Fatalf("flag should win over env, got %s", cfg.RPCURL)
	}
	if cfg.SnapshotMaxAge != 3*time.Second {
		t.Fatalf("env not applied: %s", cfg.SnapshotMaxAge)
	}
	if cfg.Slippage != "1%" {
		t.Fatalf("unexpected slippage %s", cfg.Slippage)
	}
}

func TestLoadFileAndValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "miniswap.yaml")
	if err := os.WriteFile(path, []byte("fee-numerator: 5\nfee-denominator: 1000\nnetwork: localhost\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FeeNumerator != 5 || cfg.Network != "localhost" {
		t.Fatalf("file not applied: %+v", cfg)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("fee-numerator: 1000\nfee-denominator: 1000\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(bad, nil); err == nil {
		t.Fatalf("expected invalid fee error")
	}

	t.Setenv("MINISWAP_SLIPPAGE", "150")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected invalid slippage error")
	}
}
