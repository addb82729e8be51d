package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"miniswap/internal/dexerr"
	"miniswap/internal/ledger"
	"miniswap/internal/model"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"pool"},
		{"quote", "swap"},
		{"quote", "deposit"},
		{"quote", "withdraw"},
		{"swap"},
		{"add-liquidity"},
		{"remove-liquidity"},
		{"deployment", "register"},
		{"deployment", "show"},
		{"serve"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not found: %v", path, err)
		}
	}
}

func TestParseAsset(t *testing.T) {
	a := &app{
		pair: ledger.Pair{
			Pool:   common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"),
			AssetA: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			AssetB: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
		},
		metaA: model.TokenMeta{Symbol: "TKA"},
	}
	cases := map[string]common.Address{
		"a":   a.pair.AssetA,
		"B":   a.pair.AssetB,
		"tka": a.pair.AssetA,
		"0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512": a.pair.AssetB,
	}
	for raw, want := range cases {
		got, err := a.parseAsset(raw)
		if err != nil || got != want {
			t.Fatalf("parseAsset(%q) = %s, %v", raw, got.Hex(), err)
		}
	}
	if _, err := a.parseAsset("TKB"); err == nil {
		t.Fatalf("expected error for unknown symbol")
	}
}

func TestWatchInputFeedsLines(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	var got []string
	err := watchInput(cmd, strings.NewReader("1\n 2.5 \n\n"), func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if strings.Join(got, ",") != "1,2.5," {
		t.Fatalf("unexpected inputs %q", got)
	}
}

func TestActionsRejectBadAmountBeforeSetup(t *testing.T) {
	cases := []struct {
		build func() *cobra.Command
		run   func(*cobra.Command, []string) error
		flag  string
		raw   string
	}{
		{newSwapCmd, runSwap, "amount", "0"},
		{newSwapCmd, runSwap, "amount", "1e999999999"},
		{newAddLiquidityCmd, runAddLiquidity, "amount-a", "0.0"},
		{newAddLiquidityCmd, runAddLiquidity, "amount-b", "-1"},
		{newRemoveLiquidityCmd, runRemoveLiquidity, "shares", ""},
	}
	for _, tc := range cases {
		cmd := tc.build()
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)
		if tc.flag == "amount-b" {
			if err := cmd.Flags().Set("amount-a", "1"); err != nil {
				t.Fatalf("set amount-a: %v", err)
			}
		}
		if err := cmd.Flags().Set(tc.flag, tc.raw); err != nil {
			t.Fatalf("set %s: %v", tc.flag, err)
		}

		// No rpc or deployment flags exist here, so reaching setup would fail
		// with a different error.
		err := tc.run(cmd, nil)
		if !errors.Is(err, dexerr.ErrInvalidAmount) {
			t.Fatalf("%s --%s=%q: expected InvalidAmount, got %v", cmd.Name(), tc.flag, tc.raw, err)
		}
		if !strings.Contains(stderr.String(), "hint:") {
			t.Fatalf("%s: expected a hint on stderr, got %q", cmd.Name(), stderr.String())
		}
	}
}
