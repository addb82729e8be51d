package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"miniswap/internal/amm"
	"miniswap/internal/quote"
)

type quoteOutput struct {
	Status      string `json:"status"`
	Input       string `json:"input"`
	Output      string `json:"output,omitempty"`
	Minimum     string `json:"minimum,omitempty"`
	PriceImpact string `json:"price_impact,omitempty"`
	Seq         uint64 `json:"seq,omitempty"`
	Hint        string `json:"hint,omitempty"`
}

type withdrawOutput struct {
	Shares   string `json:"shares"`
	AmountA  string `json:"amount_a"`
	AmountB  string `json:"amount_b"`
	MinimumA string `json:"minimum_a"`
	MinimumB string `json:"minimum_b"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate swaps and liquidity changes without sending anything",
	}

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Estimate the output of a swap",
		RunE:  runQuoteSwap,
	}
	swapCmd.Flags().String("asset-in", "a", "asset sold: a, b, symbol or address")
	swapCmd.Flags().String("amount", "", "amount sold")
	swapCmd.Flags().String("slippage", "0.5", "slippage tolerance in percent")
	swapCmd.Flags().Bool("watch", false, "read amounts from stdin and print a quote once input settles")
	swapCmd.Flags().Duration("quote-debounce", 0, "quiet period before a watched quote refreshes")

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Derive the proportional amount of B for a deposit",
		RunE:  runQuoteDeposit,
	}
	depositCmd.Flags().String("amount-a", "", "amount of asset A")
	depositCmd.Flags().String("slippage", "0.5", "slippage tolerance in percent")

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Estimate the payout for burning LP shares",
		RunE:  runQuoteWithdraw,
	}
	withdrawCmd.Flags().String("shares", "", "LP shares to burn")
	withdrawCmd.Flags().String("slippage", "0.5", "slippage tolerance in percent")

	cmd.AddCommand(swapCmd, depositCmd, withdrawCmd)
	return cmd
}

func runQuoteSwap(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	rawAsset, _ := cmd.Flags().GetString("asset-in")
	assetIn, err := a.parseAsset(rawAsset)
	if err != nil {
		return err
	}
	if !a.pair.Has(assetIn) {
		return fmt.Errorf("%s is not a pool asset", assetIn.Hex())
	}
	tol, err := a.cfg.Tolerance()
	if err != nil {
		return err
	}
	fee, err := a.cfg.Fee()
	if err != nil {
		return err
	}
	metaIn, metaOut := a.meta(assetIn), a.meta(a.pair.Other(assetIn))

	cfg := quote.Config{
		Quiet:       a.cfg.QuoteDebounce,
		MaxAge:      a.cfg.SnapshotMaxAge,
		InDecimals:  metaIn.Decimals,
		OutDecimals: metaOut.Decimals,
	}
	render := func(q quote.Quote) quoteOutput {
		out := quoteOutput{Status: q.Status.String(), Input: q.Input}
		switch q.Status {
		case quote.StatusReady:
			in, outReserve := q.Snapshot.Reserves(a.pair, assetIn)
			out.Output = q.Display
			out.Minimum = amm.FormatUnits(amm.ApplySlippage(q.Output, tol), metaOut.Decimals)
			out.PriceImpact = amm.PriceImpact(q.AmountIn, q.Output, in, outReserve).StringFixed(4) + "%"
			out.Seq = q.Snapshot.Seq
		case quote.StatusNoQuote:
			out.Output = "0"
		default:
			out.Hint = hintFor(q.Err)
		}
		return out
	}

	estimate := quote.SwapEstimator(a.pair, assetIn, fee)
	hook := quote.WithStatusHook(func(s quote.Status) { a.metrics.ObserveQuote(s.String()) })

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		raw, _ := cmd.Flags().GetString("amount")
		r := quote.NewRefresher(a.reader, estimate, cfg, nil, quote.WithLogger(a.logger))
		q := r.Evaluate(cmd.Context(), raw)
		a.metrics.ObserveQuote(q.Status.String())
		return printJSON(cmd.OutOrStdout(), render(q))
	}

	var mu sync.Mutex
	w := cmd.OutOrStdout()
	r := quote.NewRefresher(a.reader, estimate, cfg, func(q quote.Quote) {
		mu.Lock()
		defer mu.Unlock()
		_ = printJSON(w, render(q))
	}, quote.WithLogger(a.logger), hook)
	defer r.Close()

	return watchInput(cmd, cmd.InOrStdin(), r.SetInput)
}

// watchInput feeds each stdin line to set until EOF or cancellation.
func watchInput(cmd *cobra.Command, in io.Reader, set func(string)) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case line := <-lines:
			set(line)
		case err := <-errCh:
			return err
		}
	}
}

func runQuoteDeposit(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tol, err := a.cfg.Tolerance()
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetString("amount-a")
	r := quote.NewRefresher(a.reader, quote.DepositEstimator(a.pair, a.pair.AssetA), quote.Config{
		MaxAge:      a.cfg.SnapshotMaxAge,
		InDecimals:  a.metaA.Decimals,
		OutDecimals: a.metaB.Decimals,
	}, nil, quote.WithLogger(a.logger))
	q := r.Evaluate(cmd.Context(), raw)
	a.metrics.ObserveQuote(q.Status.String())

	out := quoteOutput{Status: q.Status.String(), Input: q.Input}
	switch q.Status {
	case quote.StatusReady:
		out.Output = q.Display
		out.Minimum = amm.FormatUnits(amm.ApplySlippage(q.Output, tol), a.metaB.Decimals)
		out.Seq = q.Snapshot.Seq
	case quote.StatusNoQuote:
		out.Output = "0"
	default:
		out.Hint = hintFor(q.Err)
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runQuoteWithdraw(cmd *cobra.Command, _ []string) error {
	if err := checkAmountFlags(cmd, "shares"); err != nil {
		return reportFailure(cmd, err)
	}
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	tol, err := a.cfg.Tolerance()
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetString("shares")
	shares, err := amm.ParseUnits(raw, amm.DefaultDecimals)
	if err != nil {
		return err
	}
	supply, err := a.reader.TotalSupply(ctx)
	if err != nil {
		return err
	}
	snap, err := a.reader.ReservesWithin(ctx, a.cfg.SnapshotMaxAge)
	if err != nil {
		return err
	}
	amountA, amountB, err := amm.QuoteWithdrawal(shares, supply, snap.ReserveA, snap.ReserveB)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), withdrawOutput{
		Shares:   amm.FormatUnits(shares, amm.DefaultDecimals),
		AmountA:  amm.FormatUnits(amountA, a.metaA.Decimals),
		AmountB:  amm.FormatUnits(amountB, a.metaB.Decimals),
		MinimumA: amm.FormatUnits(amm.ApplySlippage(amountA, tol), a.metaA.Decimals),
		MinimumB: amm.FormatUnits(amm.ApplySlippage(amountB, tol), a.metaB.Decimals),
	})
}
