package quote

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"miniswap/internal/amm"
	"miniswap/internal/ledger"
	"miniswap/internal/pool"
)

// Estimator turns an input amount into an estimate against a snapshot.
type Estimator func(snap *pool.Snapshot, amountIn *big.Int) (*big.Int, error)

// SwapEstimator estimates the output of selling assetIn.
func SwapEstimator(pair ledger.Pair, assetIn common.Address, fee amm.Fee) Estimator {
	return func(snap *pool.Snapshot, amountIn *big.Int) (*big.Int, error) {
		reserveIn, reserveOut := snap.Reserves(pair, assetIn)
		return amm.QuoteSwapOutput(amountIn, reserveIn, reserveOut, fee)
	}
}

// DepositEstimator estimates the counter amount of a proportional deposit
// when assetIn's side is entered.
func DepositEstimator(pair ledger.Pair, assetIn common.Address) Estimator {
	return func(snap *pool.Snapshot, amountIn *big.Int) (*big.Int, error) {
		reserveIn, reserveOut := snap.Reserves(pair, assetIn)
		return amm.QuoteProportionalDeposit(amountIn, reserveIn, reserveOut)
	}
}
