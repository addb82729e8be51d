package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"miniswap/internal/chain"
	"miniswap/internal/dex"
	"miniswap/internal/dexerr"
	"miniswap/internal/wallet"
)

// EVM is the Ledger backed by a JSON-RPC endpoint and the MiniUniswap
// contract. Reads go through eth_call; writes are signed by the wallet.
type EVM struct {
	client *chain.Client
	signer wallet.Signer
	pair   Pair
	logger *zap.Logger
}

// NewEVM binds a chain client and signer to the deployed pair. signer may be
// nil for read-only use; writes then fail with NoWalletConnected.
func NewEVM(client *chain.Client, signer wallet.Signer, pair Pair, logger *zap.Logger) (*EVM, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EVM{client: client, signer: signer, pair: pair, logger: logger}, nil
}

// Pair returns the bound pool and assets.
func (l *EVM) Pair() Pair {
	return l.pair
}

func (l *EVM) GetReserves(ctx context.Context) (*big.Int, *big.Int, error) {
	return dex.GetReserves(ctx, l.client, l.pair.Pool)
}

func (l *EVM) TotalSupply(ctx context.Context) (*big.Int, error) {
	return dex.TotalSupply(ctx, l.client, l.pair.Pool)
}

func (l *EVM) BalanceOf(ctx context.Context, asset common.Address, account common.Address) (*big.Int, error) {
	return dex.BalanceOf(ctx, l.client, asset, account)
}

func (l *EVM) Allowance(ctx context.Context, asset common.Address, owner common.Address, spender common.Address) (*big.Int, error) {
	return dex.Allowance(ctx, l.client, asset, owner, spender)
}

func (l *EVM) Approve(ctx context.Context, asset common.Address, spender common.Address, amount *big.Int) (TxHandle, error) {
	parsed, err := dex.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return l.transact(ctx, asset, parsed, "approve", spender, amount)
}

func (l *EVM) Swap(ctx context.Context, assetIn common.Address, amountIn *big.Int, minOut *big.Int) (TxHandle, error) {
	parsed, err := dex.PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	return l.transact(ctx, l.pair.Pool, parsed, "swap", assetIn, amountIn, minOut)
}

func (l *EVM) AddLiquidity(ctx context.Context, amountA, amountB, minA, minB *big.Int) (TxHandle, error) {
	parsed, err := dex.PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	return l.transact(ctx, l.pair.Pool, parsed, "addLiquidity", amountA, amountB, minA, minB)
}

func (l *EVM) RemoveLiquidity(ctx context.Context, shares, minA, minB *big.Int) (TxHandle, error) {
	parsed, err := dex.PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	return l.transact(ctx, l.pair.Pool, parsed, "removeLiquidity", shares, minA, minB)
}

func (l *EVM) transact(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (TxHandle, error) {
	if l.signer == nil {
		return nil, dexerr.E(dexerr.KindNoWalletConnected, method, nil)
	}
	opts, err := l.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}

	backend := l.client.Backend()
	bound := bind.NewBoundContract(contract, parsed, backend, backend, backend)
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		// Gas estimation runs the call first, so most reverts surface here.
		if IsRevert(err) {
			return nil, &RejectedError{Method: method, Reason: err.Error()}
		}
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	l.logger.Info("transaction sent",
		zap.String("method", method),
		zap.String("contract", contract.Hex()),
		zap.String("tx", tx.Hash().Hex()),
		zap.String("from", opts.From.Hex()),
	)

	return &evmTx{tx: tx, method: method, backend: backend, logger: l.logger}, nil
}

type evmTx struct {
	tx      *types.Transaction
	method  string
	backend bind.DeployBackend
	logger  *zap.Logger
}

func (t *evmTx) Hash() common.Hash {
	return t.tx.Hash()
}

func (t *evmTx) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, t.backend, t.tx)
	if err != nil {
		return fmt.Errorf("wait %s: %w", t.method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &RejectedError{Method: t.method, Hash: t.tx.Hash(), Reason: "execution reverted"}
	}
	t.logger.Info("transaction confirmed",
		zap.String("method", t.method),
		zap.String("tx", t.tx.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return nil
}

// IsRevert reports whether err is the node refusing a call because the
// contract reverted.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
