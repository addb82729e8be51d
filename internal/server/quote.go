package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"miniswap/internal/amm"
	"miniswap/internal/dexerr"
	"miniswap/internal/quote"
)

// QuoteSwap estimates selling amount of asset_in.
func (h *Handlers) QuoteSwap(c echo.Context) error {
	rawAsset := strings.TrimSpace(c.QueryParam("asset_in"))
	if !common.IsHexAddress(rawAsset) {
		return h.err(c, http.StatusBadRequest, "invalid asset_in", map[string]any{"asset_in": "must be a hex address"})
	}
	assetIn := common.HexToAddress(rawAsset)
	if !h.Pair.Has(assetIn) {
		return h.kindErr(c, dexerr.Errorf(dexerr.KindInvalidAsset, "quote swap", "%s is not a pool asset", assetIn.Hex()))
	}
	tol, err := h.tolerance(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid slippage", map[string]any{"slippage": err.Error()})
	}
	assetOut := h.Pair.Other(assetIn)
	metaIn, metaOut := h.metaOf(assetIn), h.metaOf(assetOut)

	q := h.evaluate(c, quote.SwapEstimator(h.Pair, assetIn, h.Fee), metaIn.Decimals, metaOut.Decimals)
	if q.Status != quote.StatusReady {
		return h.quoteErr(c, q)
	}

	reserveIn, reserveOut := q.Snapshot.Reserves(h.Pair, assetIn)
	minOut := amm.ApplySlippage(q.Output, tol)
	return c.JSON(http.StatusOK, SwapQuoteResponse{
		Status:            q.Status.String(),
		AssetIn:           assetIn.Hex(),
		AssetOut:          assetOut.Hex(),
		AmountIn:          q.AmountIn.String(),
		AmountOut:         q.Output.String(),
		AmountOutDisplay:  q.Display,
		MinimumOut:        minOut.String(),
		MinimumOutDisplay: amm.FormatUnits(minOut, metaOut.Decimals),
		PriceImpact:       amm.PriceImpact(q.AmountIn, q.Output, reserveIn, reserveOut).StringFixed(4),
		Slippage:          tol.String(),
		Seq:               q.Snapshot.Seq,
	})
}

// QuoteDeposit derives the proportional amount of B for amount_a.
func (h *Handlers) QuoteDeposit(c echo.Context) error {
	tol, err := h.tolerance(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid slippage", map[string]any{"slippage": err.Error()})
	}
	q := h.evaluateParam(c, "amount_a", quote.DepositEstimator(h.Pair, h.Pair.AssetA), h.MetaA.Decimals, h.MetaB.Decimals)
	if q.Status != quote.StatusReady {
		return h.quoteErr(c, q)
	}
	return c.JSON(http.StatusOK, DepositQuoteResponse{
		Status:         q.Status.String(),
		AmountA:        q.AmountIn.String(),
		AmountB:        q.Output.String(),
		AmountBDisplay: q.Display,
		MinimumA:       amm.ApplySlippage(q.AmountIn, tol).String(),
		MinimumB:       amm.ApplySlippage(q.Output, tol).String(),
		Slippage:       tol.String(),
		Seq:            q.Snapshot.Seq,
	})
}

// QuoteWithdraw estimates the payout for burning shares LP shares.
func (h *Handlers) QuoteWithdraw(c echo.Context) error {
	tol, err := h.tolerance(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid slippage", map[string]any{"slippage": err.Error()})
	}
	shares, err := amm.ParseUnits(c.QueryParam("shares"), h.ShareDecimals)
	if err != nil || shares.Sign() <= 0 {
		return h.kindErr(c, dexerr.Errorf(dexerr.KindInvalidAmount, "quote withdraw", "shares must be positive"))
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	supply, err := h.State.TotalSupply(ctx)
	if err != nil {
		return h.kindErr(c, err)
	}
	snap, err := h.State.ReservesWithin(ctx, h.MaxAge)
	if err != nil {
		return h.kindErr(c, err)
	}
	amountA, amountB, err := amm.QuoteWithdrawal(shares, supply, snap.ReserveA, snap.ReserveB)
	if err != nil {
		return h.kindErr(c, err)
	}

	return c.JSON(http.StatusOK, WithdrawQuoteResponse{
		Shares:         shares.String(),
		TotalSupply:    supply.String(),
		AmountA:        amountA.String(),
		AmountB:        amountB.String(),
		AmountADisplay: amm.FormatUnits(amountA, h.MetaA.Decimals),
		AmountBDisplay: amm.FormatUnits(amountB, h.MetaB.Decimals),
		MinimumA:       amm.ApplySlippage(amountA, tol).String(),
		MinimumB:       amm.ApplySlippage(amountB, tol).String(),
		Slippage:       tol.String(),
		Seq:            snap.Seq,
	})
}

func (h *Handlers) evaluate(c echo.Context, estimate quote.Estimator, inDecimals, outDecimals uint8) quote.Quote {
	return h.evaluateParam(c, "amount", estimate, inDecimals, outDecimals)
}

// evaluateParam runs a one-shot quote for the named query parameter.
func (h *Handlers) evaluateParam(c echo.Context, param string, estimate quote.Estimator, inDecimals, outDecimals uint8) quote.Quote {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	r := quote.NewRefresher(h.State, estimate, quote.Config{
		MaxAge:      h.MaxAge,
		InDecimals:  inDecimals,
		OutDecimals: outDecimals,
	}, nil)
	q := r.Evaluate(ctx, c.QueryParam(param))
	if h.OnQuote != nil {
		h.OnQuote(q.Status.String())
	}
	return q
}

func (h *Handlers) quoteErr(c echo.Context, q quote.Quote) error {
	switch q.Status {
	case quote.StatusNoQuote:
		return h.kindErr(c, dexerr.Errorf(dexerr.KindInvalidAmount, "quote", "amount %q is not a positive number", q.Input))
	case quote.StatusPoolEmpty, quote.StatusUnavailable:
		return h.kindErr(c, q.Err)
	default:
		return h.kindErr(c, dexerr.Errorf(dexerr.KindUnknown, "quote", "unexpected status %s", q.Status))
	}
}
