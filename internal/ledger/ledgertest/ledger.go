// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"miniswap/internal/ledger"
)

// Call records one ledger interaction.
type Call struct {
	Method string
	Asset  common.Address
	Args   []*big.Int
}

// Ledger is an in-memory ledger.Ledger for a single connected account.
// Errors set on it are returned by the matching operations.
type Ledger struct {
	mu sync.Mutex

	Pair       ledger.Pair
	ReserveA   *big.Int
	ReserveB   *big.Int
	Supply     *big.Int
	Balances   map[common.Address]*big.Int
	Allowances map[common.Address]*big.Int

	ReadErr        error
	ApproveErr     error
	ApproveWaitErr error
	PrimaryErr     error
	PrimaryWaitErr error
	// Release, when set, holds every Wait until it is closed.
	Release chan struct{}

	calls []Call
	seq   uint64
}

var _ ledger.Ledger = (*Ledger)(nil)

// New returns a ledger with the given reserves and no balances.
func New(pair ledger.Pair, reserveA, reserveB, supply int64) *Ledger {
	return &Ledger{
		Pair:       pair,
		ReserveA:   big.NewInt(reserveA),
		ReserveB:   big.NewInt(reserveB),
		Supply:     big.NewInt(supply),
		Balances:   make(map[common.Address]*big.Int),
		Allowances: make(map[common.Address]*big.Int),
	}
}

// Calls returns a copy of the recorded interactions.
func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// Methods returns the recorded method names in order.
func (l *Ledger) Methods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.calls))
	for _, c := range l.calls {
		out = append(out, c.Method)
	}
	return out
}

// Count returns how many times method was called.
func (l *Ledger) Count(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// SetReserves replaces the pool reserves.
func (l *Ledger) SetReserves(a, b int64) {
	l.mu.Lock()
	l.ReserveA = big.NewInt(a)
	l.ReserveB = big.NewInt(b)
	l.mu.Unlock()
}

func (l *Ledger) record(method string, asset common.Address, args ...*big.Int) {
	copied := make([]*big.Int, 0, len(args))
	for _, a := range args {
		copied = append(copied, new(big.Int).Set(a))
	}
	l.calls = append(l.calls, Call{Method: method, Asset: asset, Args: copied})
}

func (l *Ledger) GetReserves(context.Context) (*big.Int, *big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("getReserves", l.Pair.Pool)
	if l.ReadErr != nil {
		return nil, nil, l.ReadErr
	}
	return new(big.Int).Set(l.ReserveA), new(big.Int).Set(l.ReserveB), nil
}

func (l *Ledger) TotalSupply(context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("totalSupply", l.Pair.Pool)
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	return new(big.Int).Set(l.Supply), nil
}

func (l *Ledger) BalanceOf(_ context.Context, asset common.Address, _ common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("balanceOf", asset)
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	if bal, ok := l.Balances[asset]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (l *Ledger) Allowance(_ context.Context, asset common.Address, _ common.Address, _ common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("allowance", asset)
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	if a, ok := l.Allowances[asset]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (l *Ledger) Approve(_ context.Context, asset common.Address, _ common.Address, amount *big.Int) (ledger.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("approve", asset, amount)
	if l.ApproveErr != nil {
		return nil, l.ApproveErr
	}
	granted := new(big.Int).Set(amount)
	return l.newTx("approve", l.ApproveWaitErr, func() {
		l.Allowances[asset] = granted
	}), nil
}

func (l *Ledger) Swap(_ context.Context, assetIn common.Address, amountIn *big.Int, minOut *big.Int) (ledger.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("swap", assetIn, amountIn, minOut)
	if l.PrimaryErr != nil {
		return nil, l.PrimaryErr
	}
	return l.newTx("swap", l.PrimaryWaitErr, nil), nil
}

func (l *Ledger) AddLiquidity(_ context.Context, amountA, amountB, minA, minB *big.Int) (ledger.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("addLiquidity", l.Pair.Pool, amountA, amountB, minA, minB)
	if l.PrimaryErr != nil {
		return nil, l.PrimaryErr
	}
	return l.newTx("addLiquidity", l.PrimaryWaitErr, nil), nil
}

func (l *Ledger) RemoveLiquidity(_ context.Context, shares, minA, minB *big.Int) (ledger.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("removeLiquidity", l.Pair.Pool, shares, minA, minB)
	if l.PrimaryErr != nil {
		return nil, l.PrimaryErr
	}
	return l.newTx("removeLiquidity", l.PrimaryWaitErr, nil), nil
}

func (l *Ledger) newTx(method string, waitErr error, onConfirm func()) *Tx {
	l.seq++
	return &Tx{
		ledger:    l,
		hash:      common.BigToHash(new(big.Int).SetUint64(l.seq)),
		method:    method,
		waitErr:   waitErr,
		onConfirm: onConfirm,
		release:   l.Release,
	}
}

// Tx is a fake transaction handle.
type Tx struct {
	ledger    *Ledger
	hash      common.Hash
	method    string
	waitErr   error
	onConfirm func()
	release   chan struct{}
}

func (t *Tx) Hash() common.Hash {
	return t.hash
}

func (t *Tx) Wait(ctx context.Context) error {
	if t.release != nil {
		select {
		case <-t.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.ledger.mu.Lock()
	defer t.ledger.mu.Unlock()
	t.ledger.record("wait:"+t.method, common.Address{})
	if t.waitErr != nil {
		return t.waitErr
	}
	if t.onConfirm != nil {
		t.onConfirm()
	}
	return nil
}
