package amm

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"miniswap/internal/dexerr"
)

// Fee is the share of each swap input kept by the pool, Numerator/Denominator.
// It mirrors the pool contract and must be updated together with it.
type Fee struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

// DefaultFee is the 0.3% fee charged by the MiniUniswap pool.
var DefaultFee = Fee{Numerator: 3, Denominator: 1000}

// Validate checks that the fee is a proper fraction.
func (f Fee) Validate() error {
	if f.Denominator == 0 {
		return fmt.Errorf("fee denominator is zero")
	}
	if f.Numerator >= f.Denominator {
		return fmt.Errorf("fee %d/%d must be below 1", f.Numerator, f.Denominator)
	}
	return nil
}

// Percent renders the fee as a percentage.
func (f Fee) Percent() decimal.Decimal {
	if f.Denominator == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(100).
		Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(f.Numerator), 0)).
		Div(decimal.NewFromBigInt(new(big.Int).SetUint64(f.Denominator), 0))
}

func (f Fee) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// QuoteSwapOutput estimates the output of selling amountIn against the
// reserves, charging the fee on the input:
//
//	out = in*(d-n)*reserveOut / (reserveIn*d + in*(d-n))
//
// The result truncates toward zero and is always below reserveOut.
func QuoteSwapOutput(amountIn, reserveIn, reserveOut *big.Int, fee Fee) (*big.Int, error) {
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	if !positive(reserveIn) || !positive(reserveOut) {
		return nil, dexerr.Errorf(dexerr.KindInvalidReserves, "quote swap", "reserves %s/%s", str(reserveIn), str(reserveOut))
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, dexerr.Errorf(dexerr.KindInvalidAmount, "quote swap", "amount in %s", str(amountIn))
	}

	den := new(big.Int).SetUint64(fee.Denominator)
	keep := new(big.Int).SetUint64(fee.Denominator - fee.Numerator)

	inWithFee := new(big.Int).Mul(amountIn, keep)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, den)
	denominator.Add(denominator, inWithFee)

	return numerator.Quo(numerator, denominator), nil
}

// QuoteProportionalDeposit returns the amount of asset B matching amountA at
// the current reserve ratio, truncated toward zero.
func QuoteProportionalDeposit(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	if !positive(reserveA) || !positive(reserveB) {
		return nil, dexerr.Errorf(dexerr.KindInvalidReserves, "quote deposit", "reserves %s/%s", str(reserveA), str(reserveB))
	}
	if amountA == nil || amountA.Sign() < 0 {
		return nil, dexerr.Errorf(dexerr.KindInvalidAmount, "quote deposit", "amount %s", str(amountA))
	}
	out := new(big.Int).Mul(amountA, reserveB)
	return out.Quo(out, reserveA), nil
}

// QuoteWithdrawal estimates the assets released by burning shares. The
// result is only as fresh as the totalSupply and reserves it was given.
func QuoteWithdrawal(shares, totalSupply, reserveA, reserveB *big.Int) (*big.Int, *big.Int, error) {
	if !positive(totalSupply) {
		return nil, nil, dexerr.Errorf(dexerr.KindInvalidReserves, "quote withdrawal", "total supply %s", str(totalSupply))
	}
	if reserveA == nil || reserveB == nil || reserveA.Sign() < 0 || reserveB.Sign() < 0 {
		return nil, nil, dexerr.Errorf(dexerr.KindInvalidReserves, "quote withdrawal", "reserves %s/%s", str(reserveA), str(reserveB))
	}
	if shares == nil || shares.Sign() < 0 || shares.Cmp(totalSupply) > 0 {
		return nil, nil, dexerr.Errorf(dexerr.KindInvalidAmount, "quote withdrawal", "shares %s of %s", str(shares), totalSupply)
	}

	outA := new(big.Int).Mul(shares, reserveA)
	outA.Quo(outA, totalSupply)
	outB := new(big.Int).Mul(shares, reserveB)
	outB.Quo(outB, totalSupply)
	return outA, outB, nil
}

// PriceImpact is the percentage by which the execution price of a swap is
// worse than the spot price. Display only.
func PriceImpact(amountIn, amountOut, reserveIn, reserveOut *big.Int) decimal.Decimal {
	if !positive(amountIn) || amountOut == nil || !positive(reserveIn) || !positive(reserveOut) {
		return decimal.Zero
	}
	exec := decimal.NewFromBigInt(amountOut, 0).Mul(decimal.NewFromBigInt(reserveIn, 0))
	spot := decimal.NewFromBigInt(amountIn, 0).Mul(decimal.NewFromBigInt(reserveOut, 0))
	ratio := exec.DivRound(spot, 18)
	return decimal.NewFromInt(1).Sub(ratio).Mul(decimal.NewFromInt(100))
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func str(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
