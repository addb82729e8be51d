package amm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Tolerance is the maximum adverse price movement accepted, as a percentage
// in [0, 100).
type Tolerance struct {
	pct decimal.Decimal
}

// Preset tolerances offered by the swap form.
var PresetTolerances = []Tolerance{
	MustTolerance("0.1"),
	MustTolerance("0.5"),
	MustTolerance("1"),
	MustTolerance("2"),
}

// DefaultTolerance is 0.5%.
var DefaultTolerance = MustTolerance("0.5")

// NewTolerance validates pct and wraps it.
func NewTolerance(pct decimal.Decimal) (Tolerance, error) {
	if pct.Sign() < 0 || pct.GreaterThanOrEqual(hundred) {
		return Tolerance{}, fmt.Errorf("slippage %s%% out of range [0, 100)", pct.String())
	}
	return Tolerance{pct: pct}, nil
}

// ParseTolerance parses a percentage such as "0.5" or "0.5%".
func ParseTolerance(raw string) (Tolerance, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	if len(raw) > 40 || !plainDecimal.MatchString(raw) {
		return Tolerance{}, fmt.Errorf("parse slippage %q: not a plain decimal percentage", truncate(raw, 32))
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return Tolerance{}, fmt.Errorf("parse slippage %q: %w", raw, err)
	}
	return NewTolerance(pct)
}

// MustTolerance is ParseTolerance for constants.
func MustTolerance(raw string) Tolerance {
	t, err := ParseTolerance(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Percent returns the tolerance as a percentage.
func (t Tolerance) Percent() decimal.Decimal {
	return t.pct
}

func (t Tolerance) String() string {
	return t.pct.String() + "%"
}

// ApplySlippage returns floor(amount * (100 - tolerance) / 100). It never
// exceeds amount, and is strictly below it when both are positive.
func ApplySlippage(amount *big.Int, tolerance Tolerance) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	product := decimal.NewFromBigInt(amount, 0).Mul(hundred.Sub(tolerance.pct))
	// QuoRem at precision 0 truncates exactly; both operands are positive.
	quotient, _ := product.QuoRem(hundred, 0)
	return quotient.BigInt()
}
