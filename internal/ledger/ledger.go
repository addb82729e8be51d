package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pair identifies the pool contract and its two assets. The pool address is
// also the LP share token and the spender of approvals.
type Pair struct {
	Pool   common.Address
	AssetA common.Address
	AssetB common.Address
}

// Validate rejects zero or duplicate addresses.
func (p Pair) Validate() error {
	zero := common.Address{}
	if p.Pool == zero || p.AssetA == zero || p.AssetB == zero {
		return fmt.Errorf("pair has zero address: %+v", p)
	}
	if p.AssetA == p.AssetB {
		return fmt.Errorf("pair assets must differ: %s", p.AssetA.Hex())
	}
	return nil
}

// Has reports whether asset is one of the two pool assets.
func (p Pair) Has(asset common.Address) bool {
	return asset == p.AssetA || asset == p.AssetB
}

// Other returns the counter asset of asset.
func (p Pair) Other(asset common.Address) common.Address {
	if asset == p.AssetA {
		return p.AssetB
	}
	return p.AssetA
}

// TxHandle tracks one submitted write.
type TxHandle interface {
	Hash() common.Hash
	// Wait blocks until the write is confirmed. A write the ledger executed
	// but reverted returns an error matching ErrRejected.
	Wait(ctx context.Context) error
}

// Reader is the read side of the remote ledger. Reads have no side effects.
type Reader interface {
	GetReserves(ctx context.Context) (*big.Int, *big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, asset common.Address, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, asset common.Address, owner common.Address, spender common.Address) (*big.Int, error)
}

// Writer submits writes attributed to the connected account.
type Writer interface {
	Approve(ctx context.Context, asset common.Address, spender common.Address, amount *big.Int) (TxHandle, error)
	Swap(ctx context.Context, assetIn common.Address, amountIn *big.Int, minOut *big.Int) (TxHandle, error)
	AddLiquidity(ctx context.Context, amountA, amountB, minA, minB *big.Int) (TxHandle, error)
	RemoveLiquidity(ctx context.Context, shares, minA, minB *big.Int) (TxHandle, error)
}

// Ledger is the full remote ledger surface.
type Ledger interface {
	Reader
	Writer
}

// ErrRejected matches any write the ledger refused to apply.
var ErrRejected = errors.New("rejected by ledger")

// RejectedError describes a refused write. Hash is zero when the refusal
// happened before the transaction was broadcast.
type RejectedError struct {
	Method string
	Hash   common.Hash
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Hash != (common.Hash{}) {
		return fmt.Sprintf("%s %s rejected: %s", e.Method, e.Hash.Hex(), e.Reason)
	}
	return fmt.Sprintf("%s rejected: %s", e.Method, e.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
