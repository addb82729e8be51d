package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"miniswap/internal/dexerr"
)

// Provider exposes the connected account and network.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	NetworkID(ctx context.Context) (*big.Int, error)
}

// Signer authorizes writes for the connected account.
type Signer interface {
	Provider
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// ChainIDSource reports the chain the RPC endpoint serves.
type ChainIDSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
}

// KeyedWallet signs with a single private key handed in by the operator.
// A wallet built from an empty key has no connected account.
type KeyedWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chain   ChainIDSource
}

// NewKeyedWallet parses a hex private key, with or without 0x prefix.
func NewKeyedWallet(hexKey string, chain ChainIDSource) (*KeyedWallet, error) {
	w := &KeyedWallet{chain: chain}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return w, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	w.key = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
	return w, nil
}

// RequestAccounts returns the connected account, or none.
func (w *KeyedWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	if w.key == nil {
		return nil, nil
	}
	return []common.Address{w.address}, nil
}

// NetworkID returns the chain ID of the RPC endpoint.
func (w *KeyedWallet) NetworkID(ctx context.Context) (*big.Int, error) {
	if w.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	return w.chain.GetChainID(ctx)
}

// TransactOpts builds signing options bound to ctx.
func (w *KeyedWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if w.key == nil {
		return nil, dexerr.E(dexerr.KindNoWalletConnected, "transact opts", nil)
	}
	chainID, err := w.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Account returns the single connected account of p.
func Account(ctx context.Context, p Provider) (common.Address, error) {
	if p == nil {
		return common.Address{}, dexerr.E(dexerr.KindNoWalletConnected, "request accounts", nil)
	}
	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, dexerr.E(dexerr.KindNoWalletConnected, "request accounts", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, dexerr.E(dexerr.KindNoWalletConnected, "request accounts", nil)
	}
	return accounts[0], nil
}

// CheckNetwork fails when the provider is on a different chain than expected.
// An expected value of zero disables the check.
func CheckNetwork(ctx context.Context, p Provider, expected uint64) error {
	if expected == 0 {
		return nil
	}
	id, err := p.NetworkID(ctx)
	if err != nil {
		return dexerr.E(dexerr.KindReadFailed, "network id", err)
	}
	if !id.IsUint64() || id.Uint64() != expected {
		return fmt.Errorf("wallet is on chain %s, deployment expects %d", id, expected)
	}
	return nil
}
