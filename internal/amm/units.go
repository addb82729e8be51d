package amm

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"miniswap/internal/dexerr"
)

// DefaultDecimals is the scale used when token metadata is unavailable.
const DefaultDecimals uint8 = 18

// MaxAmount is the largest amount the ledger can hold (2^256-1).
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// plainDecimal accepts digits with at most one dot. Signs and exponents are
// rejected before any scaling happens.
var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// maxAmountDigits bounds the input length: 78 integer digits cover 2^256-1 and
// the fraction can never exceed 255 digits.
const maxAmountDigits = 78 + 1 + 255

// ParseUnits converts a human decimal string into smallest units. Inputs with
// more fractional digits than decimals are rejected rather than rounded.
func ParseUnits(raw string, decimals uint8) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, dexerr.Errorf(dexerr.KindInvalidAmount, "parse units", "empty amount")
	}
	if len(raw) > maxAmountDigits || !plainDecimal.MatchString(raw) {
		return nil, dexerr.Errorf(dexerr.KindInvalidAmount, "parse units", "%q is not a plain decimal amount", truncate(raw, 32))
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, dexerr.E(dexerr.KindInvalidAmount, "parse units", err)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, dexerr.Errorf(dexerr.KindInvalidAmount, "parse units", "%s has more than %d decimals", raw, decimals)
	}
	out := scaled.BigInt()
	if out.Cmp(MaxAmount) > 0 {
		return nil, dexerr.Errorf(dexerr.KindInvalidAmount, "parse units", "amount exceeds 2^256-1")
	}
	return out, nil
}

// CheckAmount rejects raw unless it is a plain decimal greater than zero. It
// does not need token decimals, so callers can run it before any network
// access.
func CheckAmount(raw string) error {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxAmountDigits || !plainDecimal.MatchString(raw) {
		return dexerr.Errorf(dexerr.KindInvalidAmount, "check amount", "%q is not a plain decimal amount", truncate(raw, 32))
	}
	if strings.Trim(raw, "0.") == "" {
		return dexerr.Errorf(dexerr.KindInvalidAmount, "check amount", "amount must be greater than zero")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// FormatUnits renders smallest units as a decimal string without trailing
// zeros.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// FormatUnitsFixed renders smallest units rounded to places fractional digits.
// The result is for display only.
func FormatUnitsFixed(value *big.Int, decimals uint8, places int32) string {
	if value == nil {
		value = new(big.Int)
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).StringFixed(places)
}
