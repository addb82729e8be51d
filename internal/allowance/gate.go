package allowance

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"miniswap/internal/dexerr"
	"miniswap/internal/ledger"
)

// Ledger is the part of the remote ledger the gate needs.
type Ledger interface {
	Allowance(ctx context.Context, asset common.Address, owner common.Address, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, asset common.Address, spender common.Address, amount *big.Int) (ledger.TxHandle, error)
}

// Gate makes sure spender may move at least the required amount of an asset
// before a primary action is submitted.
type Gate struct {
	ledger Ledger
	logger *zap.Logger
}

func NewGate(l Ledger, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{ledger: l, logger: logger}
}

// Approval describes an approval the gate had to submit.
type Approval struct {
	Asset  common.Address
	Amount *big.Int
	TxHash common.Hash
}

// Ensure reads the allowance once and, only if it is short, approves exactly
// required and waits for confirmation. It returns nil when no write was
// needed.
func (g *Gate) Ensure(ctx context.Context, asset, owner, spender common.Address, required *big.Int) (*Approval, error) {
	current, err := g.ledger.Allowance(ctx, asset, owner, spender)
	if err != nil {
		return nil, dexerr.E(dexerr.KindReadFailed, "allowance", err)
	}
	if current.Cmp(required) >= 0 {
		g.logger.Debug("allowance sufficient",
			zap.String("asset", asset.Hex()),
			zap.Stringer("allowance", current),
			zap.Stringer("required", required),
		)
		return nil, nil
	}

	g.logger.Info("approval required",
		zap.String("asset", asset.Hex()),
		zap.String("spender", spender.Hex()),
		zap.Stringer("allowance", current),
		zap.Stringer("required", required),
	)

	tx, err := g.ledger.Approve(ctx, asset, spender, new(big.Int).Set(required))
	if err != nil {
		if dexerr.KindOf(err) == dexerr.KindNoWalletConnected {
			return nil, err
		}
		return nil, dexerr.E(dexerr.KindApprovalFailed, "approve", err)
	}
	approval := &Approval{Asset: asset, Amount: new(big.Int).Set(required), TxHash: tx.Hash()}
	if err := tx.Wait(ctx); err != nil {
		return approval, dexerr.E(dexerr.KindApprovalFailed, "approve", err)
	}
	return approval, nil
}
