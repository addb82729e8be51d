package main

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"miniswap/internal/amm"
	"miniswap/internal/dexerr"
	"miniswap/internal/orchestrator"
	"miniswap/internal/wallet"
)

type approvalOutput struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	TxHash string `json:"tx_hash"`
}

type actionOutput struct {
	Action    uint64           `json:"action"`
	Intent    string           `json:"intent"`
	State     string           `json:"state"`
	TxHash    string           `json:"tx_hash,omitempty"`
	Expected  []string         `json:"expected,omitempty"`
	Minimum   []string         `json:"minimum,omitempty"`
	Approvals []approvalOutput `json:"approvals,omitempty"`
	Error     string           `json:"error,omitempty"`
	Kind      string           `json:"kind,omitempty"`
	Hint      string           `json:"hint,omitempty"`
	Refresh   bool             `json:"refresh_required"`
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one pool asset for the other",
		RunE:  runSwap,
	}
	cmd.Flags().String("asset-in", "a", "asset sold: a, b, symbol or address")
	cmd.Flags().String("amount", "", "amount sold")
	addWriteFlags(cmd)
	return cmd
}

func newAddLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Deposit both assets for LP shares",
		RunE:  runAddLiquidity,
	}
	cmd.Flags().String("amount-a", "", "amount of asset A")
	cmd.Flags().String("amount-b", "", "amount of asset B; derived from the reserves when omitted")
	addWriteFlags(cmd)
	return cmd
}

func newRemoveLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-liquidity",
		Short: "Burn LP shares for both assets",
		RunE:  runRemoveLiquidity,
	}
	cmd.Flags().String("shares", "", "LP shares to burn")
	addWriteFlags(cmd)
	return cmd
}

func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().String("slippage", "0.5", "slippage tolerance in percent")
	cmd.Flags().String("private-key", "", "hex private key of the signing account")
	cmd.Flags().Duration("confirm-timeout", 0, "how long to wait for confirmation")
}

func runSwap(cmd *cobra.Command, _ []string) error {
	if err := checkAmountFlags(cmd, "amount"); err != nil {
		return reportFailure(cmd, err)
	}
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	rawAsset, _ := cmd.Flags().GetString("asset-in")
	assetIn, err := a.parseAsset(rawAsset)
	if err != nil {
		return err
	}
	rawAmount, _ := cmd.Flags().GetString("amount")
	amountIn, err := amm.ParseUnits(rawAmount, a.meta(assetIn).Decimals)
	if err != nil {
		return err
	}
	tol, err := a.cfg.Tolerance()
	if err != nil {
		return err
	}

	account, err := wallet.Account(ctx, a.wallet)
	if err != nil {
		return reportFailure(cmd, err)
	}
	balance, err := a.reader.Balance(ctx, assetIn, account)
	if err != nil {
		return reportFailure(cmd, err)
	}
	snap, err := a.reader.ReservesWithin(ctx, a.cfg.SnapshotMaxAge)
	if err != nil {
		return reportFailure(cmd, err)
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	res, err := orch.Swap(ctx, orchestrator.NewForm("swap"), orchestrator.SwapRequest{
		AssetIn:   assetIn,
		AmountIn:  amountIn,
		Balance:   balance,
		Tolerance: tol,
		Snapshot:  snap,
	})
	return a.report(cmd, res, err)
}

func runAddLiquidity(cmd *cobra.Command, _ []string) error {
	amountFlags := []string{"amount-a"}
	if cmd.Flags().Changed("amount-b") {
		amountFlags = append(amountFlags, "amount-b")
	}
	if err := checkAmountFlags(cmd, amountFlags...); err != nil {
		return reportFailure(cmd, err)
	}
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	rawA, _ := cmd.Flags().GetString("amount-a")
	amountA, err := amm.ParseUnits(rawA, a.metaA.Decimals)
	if err != nil {
		return err
	}
	tol, err := a.cfg.Tolerance()
	if err != nil {
		return err
	}

	var amountB *big.Int
	if rawB, _ := cmd.Flags().GetString("amount-b"); rawB != "" {
		if amountB, err = amm.ParseUnits(rawB, a.metaB.Decimals); err != nil {
			return err
		}
	} else {
		snap, err := a.reader.ReservesWithin(ctx, a.cfg.SnapshotMaxAge)
		if err != nil {
			return reportFailure(cmd, err)
		}
		amountB, err = amm.QuoteProportionalDeposit(amountA, snap.ReserveA, snap.ReserveB)
		if err != nil {
			return reportFailure(cmd, fmt.Errorf("pass --amount-b for the first deposit: %w", err))
		}
		a.logger.Info("derived amount b", zap.String("amount_b", amm.FormatUnits(amountB, a.metaB.Decimals)))
	}

	account, err := wallet.Account(ctx, a.wallet)
	if err != nil {
		return reportFailure(cmd, err)
	}
	bals, err := a.reader.Balances(ctx, account)
	if err != nil {
		return reportFailure(cmd, err)
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	res, err := orch.AddLiquidity(ctx, orchestrator.NewForm("add-liquidity"), orchestrator.AddLiquidityRequest{
		AmountA:   amountA,
		AmountB:   amountB,
		BalanceA:  bals.AssetA,
		BalanceB:  bals.AssetB,
		Tolerance: tol,
	})
	return a.report(cmd, res, err)
}

func runRemoveLiquidity(cmd *cobra.Command, _ []string) error {
	if err := checkAmountFlags(cmd, "shares"); err != nil {
		return reportFailure(cmd, err)
	}
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	raw, _ := cmd.Flags().GetString("shares")
	shares, err := amm.ParseUnits(raw, amm.DefaultDecimals)
	if err != nil {
		return err
	}
	tol, err := a.cfg.Tolerance()
	if err != nil {
		return err
	}

	account, err := wallet.Account(ctx, a.wallet)
	if err != nil {
		return reportFailure(cmd, err)
	}
	shareBalance, err := a.reader.Balance(ctx, a.pair.Pool, account)
	if err != nil {
		return reportFailure(cmd, err)
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	res, err := orch.RemoveLiquidity(ctx, orchestrator.NewForm("remove-liquidity"), orchestrator.RemoveLiquidityRequest{
		Shares:       shares,
		ShareBalance: shareBalance,
		Tolerance:    tol,
	})
	return a.report(cmd, res, err)
}

// report prints the action outcome and passes err through.
func (a *app) report(cmd *cobra.Command, res *orchestrator.Result, err error) error {
	if res == nil || res.Action == nil {
		return reportFailure(cmd, err)
	}
	act := res.Action
	out := actionOutput{
		Action:  act.ID,
		Intent:  act.Intent.String(),
		State:   act.State().String(),
		Refresh: res.RefreshRequired,
	}
	if h := act.TxHash(); h != (common.Hash{}) {
		out.TxHash = h.Hex()
	}
	for _, v := range res.Expected {
		out.Expected = append(out.Expected, v.String())
	}
	for _, v := range res.Minimum {
		out.Minimum = append(out.Minimum, v.String())
	}
	for _, ap := range act.Approvals() {
		out.Approvals = append(out.Approvals, approvalOutput{
			Asset:  symbolOr(a.meta(ap.Asset), ap.Asset.Hex()),
			Amount: ap.Amount.String(),
			TxHash: ap.TxHash.Hex(),
		})
	}
	if err != nil {
		kind := dexerr.KindOf(err)
		out.Error = err.Error()
		out.Kind = kind.String()
		out.Hint = kind.Hint()
	}
	if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}

// reportFailure prints the recovery hint for a failure that happened before
// any action was created.
// checkAmountFlags rejects non-positive or malformed amounts before setup
// opens any connection.
func checkAmountFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		raw, _ := cmd.Flags().GetString(name)
		if err := amm.CheckAmount(raw); err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
	}
	return nil
}

func reportFailure(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	if hint := hintFor(err); hint != "" {
		cmd.PrintErrln("hint:", hint)
	}
	return err
}

func hintFor(err error) string {
	if err == nil {
		return ""
	}
	kind := dexerr.KindOf(err)
	if kind == dexerr.KindUnknown {
		return ""
	}
	return kind.Hint()
}
