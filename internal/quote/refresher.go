package quote

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"miniswap/internal/amm"
	"miniswap/internal/dexerr"
	"miniswap/internal/pool"
)

// Status tells how to render a quote.
type Status int

const (
	// StatusNoQuote is the empty estimate for blank, non-numeric or
	// non-positive input.
	StatusNoQuote Status = iota
	StatusReady
	// StatusPoolEmpty means the pool has no reserves to price against.
	StatusPoolEmpty
	// StatusUnavailable means the reserves could not be read. The estimate
	// is unknown, not zero.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusNoQuote:
		return "no_quote"
	case StatusReady:
		return "ready"
	case StatusPoolEmpty:
		return "pool_empty"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Quote is one published estimate.
type Quote struct {
	Input    string
	AmountIn *big.Int
	Output   *big.Int
	Display  string
	Snapshot *pool.Snapshot
	Status   Status
	Err      error
}

// Source supplies reserve snapshots no older than maxAge.
type Source interface {
	ReservesWithin(ctx context.Context, maxAge time.Duration) (*pool.Snapshot, error)
}

// Config tunes a Refresher.
type Config struct {
	Quiet       time.Duration
	MaxAge      time.Duration
	Timeout     time.Duration
	InDecimals  uint8
	OutDecimals uint8
}

// Option customizes a Refresher.
type Option func(*Refresher)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStatusHook is called with the status of every published quote.
func WithStatusHook(fn func(Status)) Option {
	return func(r *Refresher) { r.statusHook = fn }
}

// Refresher recomputes an estimate once input has been quiet for a while.
// Only the estimate for the most recent input is ever published. publish
// must not call SetInput synchronously.
type Refresher struct {
	src        Source
	estimate   Estimator
	cfg        Config
	publish    func(Quote)
	logger     *zap.Logger
	statusHook func(Status)

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	gen    uint64
	closed bool

	pubMu sync.Mutex
}

func NewRefresher(src Source, estimate Estimator, cfg Config, publish func(Quote), opts ...Option) *Refresher {
	if cfg.Quiet <= 0 {
		cfg.Quiet = 500 * time.Millisecond
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	r := &Refresher{
		src:      src,
		estimate: estimate,
		cfg:      cfg,
		publish:  publish,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetInput records new raw input. Unusable input publishes an empty quote at
// once; anything else schedules a recomputation after the quiet period,
// replacing any pending or running one.
func (r *Refresher) SetInput(raw string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	r.stopLocked()

	amount, ok := parseInput(raw, r.cfg.InDecimals)
	if !ok {
		r.mu.Unlock()
		r.deliver(gen, Quote{Input: raw, Output: new(big.Int), Status: StatusNoQuote})
		return
	}
	r.timer = time.AfterFunc(r.cfg.Quiet, func() { r.fire(gen, raw, amount) })
	r.mu.Unlock()
}

// Close stops the pending timer and any running computation. Nothing is
// published afterwards.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.stopLocked()
	r.mu.Unlock()
}

// Evaluate computes a quote for raw right away, without debouncing or
// publishing.
func (r *Refresher) Evaluate(ctx context.Context, raw string) Quote {
	amount, ok := parseInput(raw, r.cfg.InDecimals)
	if !ok {
		return Quote{Input: raw, Output: new(big.Int), Status: StatusNoQuote}
	}
	return r.compute(ctx, raw, amount)
}

func (r *Refresher) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Refresher) fire(gen uint64, raw string, amount *big.Int) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	r.timer = nil
	r.cancel = cancel
	r.mu.Unlock()

	q := r.compute(ctx, raw, amount)
	cancel()
	r.deliver(gen, q)
}

func (r *Refresher) compute(ctx context.Context, raw string, amount *big.Int) Quote {
	q := Quote{Input: raw, AmountIn: amount}

	snap, err := r.src.ReservesWithin(ctx, r.cfg.MaxAge)
	if err != nil {
		q.Status = StatusUnavailable
		q.Err = err
		return q
	}
	q.Snapshot = snap

	out, err := r.estimate(snap, amount)
	switch {
	case errors.Is(err, dexerr.ErrInvalidReserves):
		q.Status = StatusPoolEmpty
		q.Err = err
	case err != nil:
		q.Status = StatusUnavailable
		q.Err = err
	default:
		q.Status = StatusReady
		q.Output = out
		q.Display = amm.FormatUnits(out, r.cfg.OutDecimals)
	}
	return q
}

// deliver publishes q unless a newer input superseded it.
func (r *Refresher) deliver(gen uint64, q Quote) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	current := !r.closed && gen == r.gen
	r.mu.Unlock()
	if !current {
		r.logger.Debug("quote superseded", zap.String("input", q.Input))
		return
	}
	if q.Status == StatusUnavailable {
		r.logger.Warn("quote unavailable", zap.String("input", q.Input), zap.Error(q.Err))
	}
	if r.statusHook != nil {
		r.statusHook(q.Status)
	}
	if r.publish != nil {
		r.publish(q)
	}
}

func parseInput(raw string, decimals uint8) (*big.Int, bool) {
	amount, err := amm.ParseUnits(raw, decimals)
	if err != nil || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}
