package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"miniswap/internal/amm"
	"miniswap/internal/model"
	"miniswap/internal/wallet"
)

type poolOutput struct {
	model.PoolState
	Fee      string            `json:"fee"`
	Account  string            `json:"account,omitempty"`
	Balances map[string]string `json:"balances,omitempty"`
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Show reserves, LP supply and balances",
		RunE:  runPool,
	}
	cmd.Flags().String("account", "", "account to show balances for (defaults to the wallet account)")
	return cmd
}

func runPool(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	snap, err := a.reader.Reserves(ctx)
	if err != nil {
		return err
	}
	supply, err := a.reader.TotalSupply(ctx)
	if err != nil {
		return err
	}
	fee, err := a.cfg.Fee()
	if err != nil {
		return err
	}

	out := poolOutput{
		PoolState: model.PoolState{
			Pool:            a.pair.Pool.Hex(),
			AssetA:          a.pair.AssetA.Hex(),
			AssetB:          a.pair.AssetB.Hex(),
			ReserveA:        snap.ReserveA.String(),
			ReserveB:        snap.ReserveB.String(),
			ReserveADisplay: amm.FormatUnitsFixed(snap.ReserveA, a.metaA.Decimals, 4),
			ReserveBDisplay: amm.FormatUnitsFixed(snap.ReserveB, a.metaB.Decimals, 4),
			TotalSupply:     supply.String(),
			Seq:             snap.Seq,
			CapturedAt:      snap.CapturedAt.UTC().Format(time.RFC3339),
		},
		Fee: fee.Percent().String() + "%",
	}

	account, err := resolveAccount(cmd, a)
	if err != nil {
		return err
	}
	if account != (common.Address{}) {
		bals, err := a.reader.Balances(ctx, account)
		if err != nil {
			return err
		}
		out.Account = account.Hex()
		out.Balances = map[string]string{
			symbolOr(a.metaA, "A"): amm.FormatUnits(bals.AssetA, a.metaA.Decimals),
			symbolOr(a.metaB, "B"): amm.FormatUnits(bals.AssetB, a.metaB.Decimals),
			"LP":                   amm.FormatUnits(bals.Shares, amm.DefaultDecimals),
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}

// resolveAccount returns --account, else the wallet account, else zero.
func resolveAccount(cmd *cobra.Command, a *app) (common.Address, error) {
	raw, _ := cmd.Flags().GetString("account")
	if raw != "" {
		if !common.IsHexAddress(raw) {
			return common.Address{}, fmt.Errorf("invalid account %q", raw)
		}
		return common.HexToAddress(raw), nil
	}
	account, err := wallet.Account(cmd.Context(), a.wallet)
	if err != nil {
		return common.Address{}, nil
	}
	return account, nil
}

func symbolOr(meta model.TokenMeta, fallback string) string {
	if meta.Symbol != "" {
		return meta.Symbol
	}
	return fallback
}
