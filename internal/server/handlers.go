package server

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"miniswap/internal/amm"
	"miniswap/internal/dexerr"
	"miniswap/internal/ledger"
	"miniswap/internal/model"
	"miniswap/internal/pool"
)

// PoolSource serves reserve snapshots and the LP supply.
type PoolSource interface {
	ReservesWithin(ctx context.Context, maxAge time.Duration) (*pool.Snapshot, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// Handlers serves read-only pool state and quotes.
type Handlers struct {
	State     PoolSource
	Pair      ledger.Pair
	Fee       amm.Fee
	Tolerance amm.Tolerance
	MaxAge    time.Duration
	MetaA     model.TokenMeta
	MetaB     model.TokenMeta
	// ShareDecimals scales the shares parameter of withdraw quotes.
	ShareDecimals uint8
	// OnQuote, when set, sees the status name of every swap or deposit quote.
	OnQuote func(status string)
	DevMode bool
	Logger  *zap.Logger
}

func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// kindErr renders a classified failure with its recovery hint.
func (h *Handlers) kindErr(c echo.Context, err error) error {
	kind := dexerr.KindOf(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.Warn("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	resp := ErrorResponse{Error: err.Error(), Code: code, Kind: kind.String(), Hint: kind.Hint()}
	if code >= http.StatusInternalServerError && !h.DevMode {
		resp.Error = http.StatusText(code)
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Pool returns the current reserves and LP supply.
func (h *Handlers) Pool(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	snap, err := h.State.ReservesWithin(ctx, h.MaxAge)
	if err != nil {
		return h.kindErr(c, err)
	}
	supply, err := h.State.TotalSupply(ctx)
	if err != nil {
		return h.kindErr(c, err)
	}

	return c.JSON(http.StatusOK, PoolResponse{
		PoolState: model.PoolState{
			Pool:            h.Pair.Pool.Hex(),
			AssetA:          h.Pair.AssetA.Hex(),
			AssetB:          h.Pair.AssetB.Hex(),
			ReserveA:        snap.ReserveA.String(),
			ReserveB:        snap.ReserveB.String(),
			ReserveADisplay: amm.FormatUnits(snap.ReserveA, h.MetaA.Decimals),
			ReserveBDisplay: amm.FormatUnits(snap.ReserveB, h.MetaB.Decimals),
			TotalSupply:     supply.String(),
			Seq:             snap.Seq,
			CapturedAt:      snap.CapturedAt.UTC().Format(time.RFC3339Nano),
		},
		Fee:       h.Fee.Percent().String() + "%",
		MetaA:     h.MetaA,
		MetaB:     h.MetaB,
		AgeMillis: time.Since(snap.CapturedAt).Milliseconds(),
	})
}

func (h *Handlers) tolerance(c echo.Context) (amm.Tolerance, error) {
	raw := strings.TrimSpace(c.QueryParam("slippage"))
	if raw == "" {
		return h.Tolerance, nil
	}
	return amm.ParseTolerance(raw)
}

func (h *Handlers) metaOf(asset common.Address) model.TokenMeta {
	if asset == h.Pair.AssetA {
		return h.MetaA
	}
	return h.MetaB
}
