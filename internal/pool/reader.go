package pool

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"miniswap/internal/dexerr"
	"miniswap/internal/ledger"
)

// Snapshot is one reading of the pool reserves. It is never mutated after
// creation; a later read replaces it.
type Snapshot struct {
	ReserveA   *big.Int
	ReserveB   *big.Int
	Seq        uint64
	CapturedAt time.Time
}

// Empty reports whether either side of the pool has no reserve.
func (s *Snapshot) Empty() bool {
	return s == nil || s.ReserveA == nil || s.ReserveB == nil || s.ReserveA.Sign() == 0 || s.ReserveB.Sign() == 0
}

// Reserves returns (reserveIn, reserveOut) for a swap selling assetIn.
func (s *Snapshot) Reserves(pair ledger.Pair, assetIn common.Address) (*big.Int, *big.Int) {
	if assetIn == pair.AssetA {
		return s.ReserveA, s.ReserveB
	}
	return s.ReserveB, s.ReserveA
}

// Age is how long ago the snapshot was captured.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// Balances holds one account's holdings relevant to the pool.
type Balances struct {
	AssetA *big.Int
	AssetB *big.Int
	Shares *big.Int
}

// Of returns the balance held in asset.
func (b Balances) Of(pair ledger.Pair, asset common.Address) *big.Int {
	switch asset {
	case pair.AssetA:
		return b.AssetA
	case pair.AssetB:
		return b.AssetB
	case pair.Pool:
		return b.Shares
	default:
		return nil
	}
}

// ReaderConfig tunes read retries.
type ReaderConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// OnReserveRead, when set, sees the result of every reserve read.
	OnReserveRead func(error)
}

// Reader fetches pool state from the ledger and keeps the latest reserve
// snapshot for quoting.
type Reader struct {
	ledger ledger.Reader
	pair   ledger.Pair
	cfg    ReaderConfig
	logger *zap.Logger
	now    func() time.Time

	seq    atomic.Uint64
	latest atomic.Pointer[Snapshot]
}

func NewReader(l ledger.Reader, pair ledger.Pair, cfg ReaderConfig, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		ledger: l,
		pair:   pair,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Pair returns the pool and assets being read.
func (r *Reader) Pair() ledger.Pair {
	return r.pair
}

// Reserves reads the reserves and replaces the cached snapshot.
func (r *Reader) Reserves(ctx context.Context) (*Snapshot, error) {
	var reserveA, reserveB *big.Int
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		reserveA, reserveB, err = r.ledger.GetReserves(ctx)
		return err
	})
	if r.cfg.OnReserveRead != nil {
		r.cfg.OnReserveRead(err)
	}
	if err != nil {
		r.logger.Warn("reserve read failed", zap.String("pool", r.pair.Pool.Hex()), zap.Error(err))
		return nil, dexerr.E(dexerr.KindReadFailed, "getReserves", err)
	}

	snap := &Snapshot{
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		Seq:        r.seq.Add(1),
		CapturedAt: r.now(),
	}
	r.store(snap)
	return snap, nil
}

// store keeps the snapshot unless a later read already landed.
func (r *Reader) store(snap *Snapshot) {
	for {
		cur := r.latest.Load()
		if cur != nil && cur.Seq > snap.Seq {
			return
		}
		if r.latest.CompareAndSwap(cur, snap) {
			return
		}
	}
}

// Latest returns the cached snapshot, if any.
func (r *Reader) Latest() (*Snapshot, bool) {
	snap := r.latest.Load()
	return snap, snap != nil
}

// ReservesWithin returns the cached snapshot when it is younger than maxAge,
// otherwise reads a fresh one.
func (r *Reader) ReservesWithin(ctx context.Context, maxAge time.Duration) (*Snapshot, error) {
	if snap, ok := r.Latest(); ok && snap.Age(r.now()) < maxAge {
		return snap, nil
	}
	return r.Reserves(ctx)
}

// TotalSupply reads the LP share supply.
func (r *Reader) TotalSupply(ctx context.Context) (*big.Int, error) {
	var supply *big.Int
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		supply, err = r.ledger.TotalSupply(ctx)
		return err
	})
	if err != nil {
		return nil, dexerr.E(dexerr.KindReadFailed, "totalSupply", err)
	}
	return supply, nil
}

// Balance reads one asset balance of account. Passing the pool address reads
// LP shares.
func (r *Reader) Balance(ctx context.Context, asset common.Address, account common.Address) (*big.Int, error) {
	var bal *big.Int
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		bal, err = r.ledger.BalanceOf(ctx, asset, account)
		return err
	})
	if err != nil {
		return nil, dexerr.E(dexerr.KindReadFailed, "balanceOf", err)
	}
	return bal, nil
}

// Balances reads both asset balances and the LP share balance of account.
func (r *Reader) Balances(ctx context.Context, account common.Address) (Balances, error) {
	var out Balances
	var err error
	if out.AssetA, err = r.Balance(ctx, r.pair.AssetA, account); err != nil {
		return Balances{}, err
	}
	if out.AssetB, err = r.Balance(ctx, r.pair.AssetB, account); err != nil {
		return Balances{}, err
	}
	if out.Shares, err = r.Balance(ctx, r.pair.Pool, account); err != nil {
		return Balances{}, err
	}
	return out, nil
}
