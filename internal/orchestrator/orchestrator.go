package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"miniswap/internal/allowance"
	"miniswap/internal/amm"
	"miniswap/internal/dexerr"
	"miniswap/internal/ledger"
	"miniswap/internal/model"
	"miniswap/internal/pool"
	"miniswap/internal/wallet"
)

// StateSource supplies fresh pool reads. *pool.Reader implements it.
type StateSource interface {
	Reserves(ctx context.Context) (*pool.Snapshot, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// Notifier is told about actions that reached the ledger.
type Notifier interface {
	Publish(ctx context.Context, event model.ActionEvent) error
}

// Recorder counts transitions and outcomes.
type Recorder interface {
	ObserveTransition(intent string, state string)
	ObserveOutcome(intent string, state string, kind string, elapsed time.Duration)
}

// Config holds orchestration parameters.
type Config struct {
	Fee            amm.Fee
	ConfirmTimeout time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithObserver registers a callback invoked synchronously on every
// transition, so a caller can mirror progress in its own state.
func WithObserver(fn func(Transition)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// Orchestrator sequences validation, approvals, the primary write and its
// confirmation for swaps and liquidity changes. It never retries a write.
type Orchestrator struct {
	ledger   ledger.Ledger
	pair     ledger.Pair
	state    StateSource
	gate     *allowance.Gate
	wallet   wallet.Provider
	cfg      Config
	logger   *zap.Logger
	notifier Notifier
	recorder Recorder
	observer func(Transition)
	now      func() time.Time
	ids      atomic.Uint64
}

// New builds an Orchestrator for pair.
func New(l ledger.Ledger, pair ledger.Pair, state StateSource, w wallet.Provider, cfg Config, opts ...Option) (*Orchestrator, error) {
	if l == nil || state == nil {
		return nil, fmt.Errorf("ledger and state source are required")
	}
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Fee.Validate(); err != nil {
		return nil, err
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	o := &Orchestrator{
		ledger: l,
		pair:   pair,
		state:  state,
		wallet: w,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.gate = allowance.NewGate(l, o.logger)
	return o, nil
}

// SwapRequest sells AmountIn of AssetIn for the other pool asset.
type SwapRequest struct {
	AssetIn  common.Address
	AmountIn *big.Int
	// Balance is the last known balance of AssetIn; nil counts as zero.
	Balance   *big.Int
	Tolerance amm.Tolerance
	// Snapshot is the reading behind the quote the user saw. When nil the
	// reserves are read before submitting.
	Snapshot *pool.Snapshot
}

// AddLiquidityRequest deposits both assets.
type AddLiquidityRequest struct {
	AmountA   *big.Int
	AmountB   *big.Int
	BalanceA  *big.Int
	BalanceB  *big.Int
	Tolerance amm.Tolerance
}

// RemoveLiquidityRequest burns Shares for both assets.
type RemoveLiquidityRequest struct {
	Shares       *big.Int
	ShareBalance *big.Int
	Tolerance    amm.Tolerance
}

type spend struct {
	asset  common.Address
	amount *big.Int
}

// plan is the remote work of an action once inputs are validated.
type plan struct {
	spends   []spend
	expected []*big.Int
	minimum  []*big.Int
	submit   func(ctx context.Context) (ledger.TxHandle, error)
}

// Swap runs a swap to completion.
func (o *Orchestrator) Swap(ctx context.Context, form *Form, req SwapRequest) (*Result, error) {
	validate := func() error {
		if !o.pair.Has(req.AssetIn) {
			return dexerr.Errorf(dexerr.KindInvalidAsset, "swap", "asset %s not in pool", req.AssetIn.Hex())
		}
		if err := checkAmount("swap", req.AmountIn); err != nil {
			return err
		}
		return checkBalance("swap", req.AmountIn, req.Balance)
	}
	prepare := func(ctx context.Context) (*plan, error) {
		snap := req.Snapshot
		if snap == nil {
			var err error
			if snap, err = o.state.Reserves(ctx); err != nil {
				return nil, err
			}
		}
		reserveIn, reserveOut := snap.Reserves(o.pair, req.AssetIn)
		expected, err := amm.QuoteSwapOutput(req.AmountIn, reserveIn, reserveOut, o.cfg.Fee)
		if err != nil {
			return nil, err
		}
		if expected.Sign() == 0 {
			return nil, dexerr.Errorf(dexerr.KindInvalidAmount, "swap", "amount %s yields no output", req.AmountIn)
		}
		minOut := amm.ApplySlippage(expected, req.Tolerance)
		return &plan{
			spends:   []spend{{asset: req.AssetIn, amount: req.AmountIn}},
			expected: []*big.Int{expected},
			minimum:  []*big.Int{minOut},
			submit: func(ctx context.Context) (ledger.TxHandle, error) {
				return o.ledger.Swap(ctx, req.AssetIn, req.AmountIn, minOut)
			},
		}, nil
	}
	return o.execute(ctx, form, IntentSwap, validate, prepare)
}

// AddLiquidity approves asset A then asset B and deposits both.
func (o *Orchestrator) AddLiquidity(ctx context.Context, form *Form, req AddLiquidityRequest) (*Result, error) {
	validate := func() error {
		if err := checkAmount("add liquidity", req.AmountA); err != nil {
			return err
		}
		if err := checkAmount("add liquidity", req.AmountB); err != nil {
			return err
		}
		if err := checkBalance("add liquidity", req.AmountA, req.BalanceA); err != nil {
			return err
		}
		return checkBalance("add liquidity", req.AmountB, req.BalanceB)
	}
	prepare := func(context.Context) (*plan, error) {
		minA := amm.ApplySlippage(req.AmountA, req.Tolerance)
		minB := amm.ApplySlippage(req.AmountB, req.Tolerance)
		return &plan{
			spends: []spend{
				{asset: o.pair.AssetA, amount: req.AmountA},
				{asset: o.pair.AssetB, amount: req.AmountB},
			},
			expected: []*big.Int{req.AmountA, req.AmountB},
			minimum:  []*big.Int{minA, minB},
			submit: func(ctx context.Context) (ledger.TxHandle, error) {
				return o.ledger.AddLiquidity(ctx, req.AmountA, req.AmountB, minA, minB)
			},
		}, nil
	}
	return o.execute(ctx, form, IntentAddLiquidity, validate, prepare)
}

// RemoveLiquidity burns shares. Minimums come from a fresh totalSupply and
// reserve read, taken as two separate reads.
func (o *Orchestrator) RemoveLiquidity(ctx context.Context, form *Form, req RemoveLiquidityRequest) (*Result, error) {
	validate := func() error {
		if err := checkAmount("remove liquidity", req.Shares); err != nil {
			return err
		}
		return checkBalance("remove liquidity", req.Shares, req.ShareBalance)
	}
	prepare := func(ctx context.Context) (*plan, error) {
		supply, err := o.state.TotalSupply(ctx)
		if err != nil {
			return nil, err
		}
		snap, err := o.state.Reserves(ctx)
		if err != nil {
			return nil, err
		}
		outA, outB, err := amm.QuoteWithdrawal(req.Shares, supply, snap.ReserveA, snap.ReserveB)
		if err != nil {
			return nil, err
		}
		minA := amm.ApplySlippage(outA, req.Tolerance)
		minB := amm.ApplySlippage(outB, req.Tolerance)
		return &plan{
			expected: []*big.Int{outA, outB},
			minimum:  []*big.Int{minA, minB},
			submit: func(ctx context.Context) (ledger.TxHandle, error) {
				return o.ledger.RemoveLiquidity(ctx, req.Shares, minA, minB)
			},
		}, nil
	}
	return o.execute(ctx, form, IntentRemoveLiquidity, validate, prepare)
}

func (o *Orchestrator) execute(ctx context.Context, form *Form, intent Intent, validate func() error, prepare func(context.Context) (*plan, error)) (*Result, error) {
	if form != nil {
		if !form.acquire() {
			return nil, dexerr.E(dexerr.KindFormBusy, intent.String(), nil)
		}
		defer form.release()
	}

	started := o.now()
	action := &PendingAction{ID: o.ids.Add(1), Intent: intent}
	res := &Result{Action: action}
	log := o.logger.With(zap.Uint64("action", action.ID), zap.Stringer("intent", intent))

	o.transition(action, StateValidating, nil)
	if err := validate(); err != nil {
		return o.fail(ctx, action, res, started, err)
	}

	account, err := wallet.Account(ctx, o.wallet)
	if err != nil {
		return o.fail(ctx, action, res, started, err)
	}

	p, err := prepare(ctx)
	if err != nil {
		return o.fail(ctx, action, res, started, abandonedOr(ctx, err))
	}
	res.Expected, res.Minimum = p.expected, p.minimum

	if len(p.spends) > 0 {
		o.transition(action, StateAwaitingApproval, nil)
		for _, s := range p.spends {
			approveCtx, cancel := context.WithTimeout(ctx, o.cfg.ConfirmTimeout)
			approval, err := o.gate.Ensure(approveCtx, s.asset, account, o.pair.Pool, s.amount)
			cancel()
			if approval != nil {
				action.addApproval(*approval)
			}
			if err != nil {
				return o.fail(ctx, action, res, started, abandonedOr(ctx, err))
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, action, res, started, dexerr.E(dexerr.KindAbandoned, intent.String(), err))
	}

	// From here on the caller can no longer abandon the action.
	submitCtx := context.WithoutCancel(ctx)
	o.transition(action, StateSubmitting, nil)
	tx, err := p.submit(submitCtx)
	if err != nil {
		return o.fail(submitCtx, action, res, started, classifySubmit(intent, err))
	}
	action.setTxHash(tx.Hash())
	res.RefreshRequired = true
	log.Info("action submitted", zap.String("tx", tx.Hash().Hex()), zap.String("account", account.Hex()))

	o.transition(action, StateConfirming, nil)
	waitCtx, cancel := context.WithTimeout(submitCtx, o.cfg.ConfirmTimeout)
	defer cancel()
	if err := tx.Wait(waitCtx); err != nil {
		return o.fail(submitCtx, action, res, started, classifyWait(intent, err))
	}

	o.transition(action, StateSucceeded, nil)
	o.finish(submitCtx, action, account, started)
	log.Info("action succeeded", zap.Duration("elapsed", o.now().Sub(started)))
	return res, nil
}

func (o *Orchestrator) transition(a *PendingAction, to State, cause error) {
	a.mu.Lock()
	from := a.state
	if !CanTransition(from, to) {
		a.mu.Unlock()
		o.logger.Error("illegal transition",
			zap.Uint64("action", a.ID),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		return
	}
	t := Transition{ActionID: a.ID, Intent: a.Intent, From: from, To: to, At: o.now(), Err: cause}
	a.state = to
	a.history = append(a.history, t)
	if to == StateFailed {
		a.err = cause
	}
	a.mu.Unlock()

	if o.recorder != nil {
		o.recorder.ObserveTransition(a.Intent.String(), to.String())
	}
	if o.observer != nil {
		o.observer(t)
	}
}

func (o *Orchestrator) fail(ctx context.Context, a *PendingAction, res *Result, started time.Time, err error) (*Result, error) {
	o.transition(a, StateFailed, err)
	o.logger.Warn("action failed",
		zap.Uint64("action", a.ID),
		zap.Stringer("intent", a.Intent),
		zap.Stringer("kind", dexerr.KindOf(err)),
		zap.Error(err),
	)
	if res.RefreshRequired {
		o.publish(ctx, a, common.Address{})
	}
	o.observeOutcome(a, err, started)
	return res, err
}

func (o *Orchestrator) finish(ctx context.Context, a *PendingAction, account common.Address, started time.Time) {
	o.publish(ctx, a, account)
	o.observeOutcome(a, nil, started)
}

func (o *Orchestrator) observeOutcome(a *PendingAction, err error, started time.Time) {
	if o.recorder == nil {
		return
	}
	kind := ""
	if err != nil {
		kind = dexerr.KindOf(err).String()
	}
	o.recorder.ObserveOutcome(a.Intent.String(), a.State().String(), kind, o.now().Sub(started))
}

// publish is best effort; a lost event only delays the subscriber's refresh.
func (o *Orchestrator) publish(ctx context.Context, a *PendingAction, account common.Address) {
	if o.notifier == nil {
		return
	}
	event := model.ActionEvent{
		ActionID:  a.ID,
		Intent:    a.Intent.String(),
		State:     a.State().String(),
		Pool:      o.pair.Pool.Hex(),
		Timestamp: o.now().Unix(),
	}
	if account != (common.Address{}) {
		event.Account = account.Hex()
	}
	if h := a.TxHash(); h != (common.Hash{}) {
		event.TxHash = h.Hex()
	}
	if err := a.Err(); err != nil {
		event.ErrorKind = dexerr.KindOf(err).String()
		event.Error = err.Error()
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.notifier.Publish(pubCtx, event); err != nil {
		o.logger.Warn("publish action event failed", zap.Uint64("action", a.ID), zap.Error(err))
	}
}

func checkAmount(op string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return dexerr.Errorf(dexerr.KindInvalidAmount, op, "amount must be positive")
	}
	return nil
}

func checkBalance(op string, amount, balance *big.Int) error {
	if balance == nil {
		balance = new(big.Int)
	}
	if amount.Cmp(balance) > 0 {
		return dexerr.Errorf(dexerr.KindInsufficientBalance, op, "amount %s exceeds balance %s", amount, balance)
	}
	return nil
}

// abandonedOr reports a cancelled caller as Abandoned instead of whatever the
// interrupted step made of it.
func abandonedOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return dexerr.E(dexerr.KindAbandoned, "pre-submit", err)
	}
	return err
}

func classifySubmit(intent Intent, err error) error {
	switch {
	case dexerr.KindOf(err) == dexerr.KindNoWalletConnected:
		return err
	case errors.Is(err, ledger.ErrRejected):
		return dexerr.E(dexerr.KindSlippageExceeded, intent.String(), err)
	default:
		return dexerr.E(dexerr.KindSubmitFailed, intent.String(), err)
	}
}

func classifyWait(intent Intent, err error) error {
	switch {
	case errors.Is(err, ledger.ErrRejected):
		return dexerr.E(dexerr.KindSlippageExceeded, intent.String(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return dexerr.E(dexerr.KindConfirmationTimeout, intent.String(), err)
	default:
		return dexerr.E(dexerr.KindSubmitFailed, intent.String(), err)
	}
}
