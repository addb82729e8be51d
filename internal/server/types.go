package server

import "miniswap/internal/model"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Details any    `json:"details,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

// PoolResponse is the pool state plus asset metadata.
type PoolResponse struct {
	model.PoolState
	Fee       string          `json:"fee"`
	MetaA     model.TokenMeta `json:"meta_a"`
	MetaB     model.TokenMeta `json:"meta_b"`
	AgeMillis int64           `json:"age_ms"`
}

// SwapQuoteResponse is an estimate for selling AmountIn of AssetIn. Raw
// amounts are in smallest units.
type SwapQuoteResponse struct {
	Status            string `json:"status"`
	AssetIn           string `json:"asset_in"`
	AssetOut          string `json:"asset_out"`
	AmountIn          string `json:"amount_in"`
	AmountOut         string `json:"amount_out"`
	AmountOutDisplay  string `json:"amount_out_display"`
	MinimumOut        string `json:"minimum_out"`
	MinimumOutDisplay string `json:"minimum_out_display"`
	PriceImpact       string `json:"price_impact"`
	Slippage          string `json:"slippage"`
	Seq               uint64 `json:"seq"`
}

// DepositQuoteResponse pairs an entered amount with its proportional counter
// amount.
type DepositQuoteResponse struct {
	Status         string `json:"status"`
	AmountA        string `json:"amount_a"`
	AmountB        string `json:"amount_b"`
	AmountBDisplay string `json:"amount_b_display"`
	MinimumA       string `json:"minimum_a"`
	MinimumB       string `json:"minimum_b"`
	Slippage       string `json:"slippage"`
	Seq            uint64 `json:"seq"`
}

// WithdrawQuoteResponse is the expected payout for burning Shares.
type WithdrawQuoteResponse struct {
	Shares         string `json:"shares"`
	TotalSupply    string `json:"total_supply"`
	AmountA        string `json:"amount_a"`
	AmountB        string `json:"amount_b"`
	AmountADisplay string `json:"amount_a_display"`
	AmountBDisplay string `json:"amount_b_display"`
	MinimumA       string `json:"minimum_a"`
	MinimumB       string `json:"minimum_b"`
	Slippage       string `json:"slippage"`
	Seq            uint64 `json:"seq"`
}
