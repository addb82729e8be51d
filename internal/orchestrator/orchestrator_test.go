package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniswap/internal/amm"
	"miniswap/internal/dexerr"
	"miniswap/internal/ledger"
	"miniswap/internal/ledger/ledgertest"
	"miniswap/internal/model"
	"miniswap/internal/pool"
)

var (
	testPair = ledger.Pair{
		Pool:   common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"),
		AssetA: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		AssetB: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
	}
	user = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeWallet struct {
	accounts []common.Address
}

func (w fakeWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	return w.accounts, nil
}

func (w fakeWallet) NetworkID(context.Context) (*big.Int, error) {
	return big.NewInt(31337), nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.ActionEvent
}

func (n *fakeNotifier) Publish(_ context.Context, e model.ActionEvent) error {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
	return nil
}

type fakeRecorder struct {
	mu          sync.Mutex
	transitions []string
	outcomes    []string
}

func (r *fakeRecorder) ObserveTransition(intent, state string) {
	r.mu.Lock()
	r.transitions = append(r.transitions, intent+":"+state)
	r.mu.Unlock()
}

func (r *fakeRecorder) ObserveOutcome(intent, state, kind string, _ time.Duration) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, intent+":"+state+":"+kind)
	r.mu.Unlock()
}

type harness struct {
	ledger   *ledgertest.Ledger
	reader   *pool.Reader
	orch     *Orchestrator
	notifier *fakeNotifier
	recorder *fakeRecorder
	states   chan State
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	fake := ledgertest.New(testPair, 1000, 2000, 100)
	fake.Balances[testPair.AssetA] = big.NewInt(10_000)
	fake.Balances[testPair.AssetB] = big.NewInt(10_000)
	fake.Balances[testPair.Pool] = big.NewInt(50)

	if cfg.Fee == (amm.Fee{}) {
		cfg.Fee = amm.DefaultFee
	}

	h := &harness{
		ledger:   fake,
		reader:   pool.NewReader(fake, testPair, pool.ReaderConfig{}, nil),
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
		states:   make(chan State, 32),
	}
	orch, err := New(fake, testPair, h.reader, fakeWallet{accounts: []common.Address{user}}, cfg,
		WithNotifier(h.notifier),
		WithRecorder(h.recorder),
		WithObserver(func(tr Transition) { h.states <- tr.To }),
	)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func historyStates(a *PendingAction) []State {
	var out []State
	for _, tr := range a.History() {
		out = append(out, tr.To)
	}
	return out
}

func waitForState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("state %s not reached", want)
		}
	}
}

func TestSwapZeroAmountMakesNoCalls(t *testing.T) {
	h := newHarness(t, Config{})

	res, err := h.orch.Swap(context.Background(), NewForm("swap"), SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(0),
		Balance:   big.NewInt(100),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrInvalidAmount))
	assert.Empty(t, h.ledger.Calls())
	assert.Equal(t, StateFailed, res.Action.State())
	assert.Equal(t, []State{StateValidating, StateFailed}, historyStates(res.Action))
	assert.False(t, res.RefreshRequired)
}

func TestSwapInsufficientBalanceMakesNoCalls(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(101),
		Balance:   big.NewInt(100),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrInsufficientBalance))
	assert.Empty(t, h.ledger.Calls())
}

func TestSwapRejectsForeignAsset(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:  testPair.Pool,
		AmountIn: big.NewInt(1),
		Balance:  big.NewInt(1),
	})
	require.True(t, errors.Is(err, dexerr.ErrInvalidAsset))
	assert.Empty(t, h.ledger.Calls())
}

func TestSwapHappyPath(t *testing.T) {
	h := newHarness(t, Config{})

	res, err := h.orch.Swap(context.Background(), NewForm("swap"), SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"getReserves", "allowance", "approve", "wait:approve", "swap", "wait:swap",
	}, h.ledger.Methods())

	calls := h.ledger.Calls()
	swap := calls[4]
	assert.Equal(t, testPair.AssetA, swap.Asset)
	assert.Equal(t, int64(100), swap.Args[0].Int64())
	assert.Equal(t, int64(180), swap.Args[1].Int64(), "min out is 181 less 0.5%")

	assert.Equal(t, int64(181), res.Expected[0].Int64())
	assert.Equal(t, int64(180), res.Minimum[0].Int64())
	assert.True(t, res.RefreshRequired)
	assert.Equal(t, StateSucceeded, res.Action.State())
	assert.Equal(t, []State{
		StateValidating, StateAwaitingApproval, StateSubmitting, StateConfirming, StateSucceeded,
	}, historyStates(res.Action))
	require.Len(t, res.Action.Approvals(), 1)
	assert.NotEqual(t, common.Hash{}, res.Action.TxHash())

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, "succeeded", h.notifier.events[0].State)
	assert.Equal(t, res.Action.TxHash().Hex(), h.notifier.events[0].TxHash)
	assert.Equal(t, user.Hex(), h.notifier.events[0].Account)
	assert.Equal(t, []string{"swap:succeeded:"}, h.recorder.outcomes)
}

func TestSwapSkipsApprovalWhenAllowanceCovers(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.Allowances[testPair.AssetB] = big.NewInt(1_000_000)

	res, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetB,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, h.ledger.Count("approve"))
	assert.Empty(t, res.Action.Approvals())
}

func TestSwapUsesQuotedSnapshot(t *testing.T) {
	h := newHarness(t, Config{})
	snap := &pool.Snapshot{ReserveA: big.NewInt(1000), ReserveB: big.NewInt(2000), Seq: 1, CapturedAt: time.Now()}

	_, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
		Snapshot:  snap,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, h.ledger.Count("getReserves"))
}

func TestSwapRejectedAfterApproval(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.PrimaryWaitErr = &ledger.RejectedError{Method: "swap", Reason: "execution reverted"}

	res, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrSlippageExceeded))
	assert.Equal(t, StateFailed, res.Action.State())
	assert.True(t, res.RefreshRequired)

	// The approval stays in place.
	require.Len(t, res.Action.Approvals(), 1)
	assert.Equal(t, int64(100), h.ledger.Allowances[testPair.AssetA].Int64())
	assert.Equal(t, 1, h.ledger.Count("swap"), "writes are never retried")

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, "slippage_exceeded", h.notifier.events[0].ErrorKind)
}

func TestSwapRejectedAtSubmission(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.PrimaryErr = &ledger.RejectedError{Method: "swap", Reason: "execution reverted: INSUFFICIENT_OUTPUT"}

	res, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrSlippageExceeded))
	assert.False(t, res.RefreshRequired)
	assert.Equal(t, common.Hash{}, res.Action.TxHash())
}

func TestSwapSubmitTransportFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.PrimaryErr = errors.New("dial tcp: connection refused")

	_, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrSubmitFailed))
	assert.Equal(t, 1, h.ledger.Count("swap"))
}

func TestApprovalFailureStopsBeforePrimary(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.ApproveErr = errors.New("user rejected")

	res, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrApprovalFailed))
	assert.Equal(t, 0, h.ledger.Count("swap"))
	assert.Equal(t, []State{StateValidating, StateAwaitingApproval, StateFailed}, historyStates(res.Action))
	assert.Empty(t, h.notifier.events)
}

func TestSwapReadFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.ReadErr = errors.New("dial tcp: connection refused")

	_, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrReadFailed))
	assert.Equal(t, 0, h.ledger.Count("approve"))
	assert.Equal(t, 0, h.ledger.Count("swap"))
}

func TestSwapEmptyPool(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.SetReserves(0, 0)

	_, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrInvalidReserves))
	assert.Equal(t, 0, h.ledger.Count("swap"))
}

func TestNoWalletConnected(t *testing.T) {
	h := newHarness(t, Config{})
	h.orch.wallet = fakeWallet{}

	_, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrNoWalletConnected))
	assert.Empty(t, h.ledger.Calls())
}

func TestAddLiquidityApprovesAThenB(t *testing.T) {
	h := newHarness(t, Config{})

	res, err := h.orch.AddLiquidity(context.Background(), NewForm("liquidity"), AddLiquidityRequest{
		AmountA:   big.NewInt(100),
		AmountB:   big.NewInt(200),
		BalanceA:  big.NewInt(100),
		BalanceB:  big.NewInt(500),
		Tolerance: amm.MustTolerance("1"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"allowance", "approve", "wait:approve",
		"allowance", "approve", "wait:approve",
		"addLiquidity", "wait:addLiquidity",
	}, h.ledger.Methods())

	calls := h.ledger.Calls()
	assert.Equal(t, testPair.AssetA, calls[0].Asset)
	assert.Equal(t, testPair.AssetB, calls[3].Asset)

	add := calls[6]
	got := []int64{add.Args[0].Int64(), add.Args[1].Int64(), add.Args[2].Int64(), add.Args[3].Int64()}
	assert.Equal(t, []int64{100, 200, 99, 198}, got)
	assert.Len(t, res.Action.Approvals(), 2)
}

func TestAddLiquiditySecondApprovalFails(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.Allowances[testPair.AssetA] = big.NewInt(1000)
	h.ledger.ApproveErr = errors.New("user rejected")

	_, err := h.orch.AddLiquidity(context.Background(), nil, AddLiquidityRequest{
		AmountA:   big.NewInt(100),
		AmountB:   big.NewInt(200),
		BalanceA:  big.NewInt(100),
		BalanceB:  big.NewInt(500),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrApprovalFailed))
	assert.Equal(t, []string{"allowance", "allowance", "approve"}, h.ledger.Methods())
}

func TestAddLiquidityValidatesBothSides(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.AddLiquidity(context.Background(), nil, AddLiquidityRequest{
		AmountA:  big.NewInt(100),
		AmountB:  big.NewInt(0),
		BalanceA: big.NewInt(100),
		BalanceB: big.NewInt(100),
	})
	require.True(t, errors.Is(err, dexerr.ErrInvalidAmount))

	_, err = h.orch.AddLiquidity(context.Background(), nil, AddLiquidityRequest{
		AmountA:  big.NewInt(100),
		AmountB:  big.NewInt(200),
		BalanceA: big.NewInt(100),
		BalanceB: big.NewInt(199),
	})
	require.True(t, errors.Is(err, dexerr.ErrInsufficientBalance))
	assert.Empty(t, h.ledger.Calls())
}

func TestRemoveLiquidity(t *testing.T) {
	h := newHarness(t, Config{})

	res, err := h.orch.RemoveLiquidity(context.Background(), nil, RemoveLiquidityRequest{
		Shares:       big.NewInt(10),
		ShareBalance: big.NewInt(50),
		Tolerance:    amm.MustTolerance("1"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"totalSupply", "getReserves", "removeLiquidity", "wait:removeLiquidity"}, h.ledger.Methods())
	remove := h.ledger.Calls()[2]
	got := []int64{remove.Args[0].Int64(), remove.Args[1].Int64(), remove.Args[2].Int64()}
	assert.Equal(t, []int64{10, 99, 198}, got)
	assert.Equal(t, int64(100), res.Expected[0].Int64())
	assert.Equal(t, int64(200), res.Expected[1].Int64())
	assert.Equal(t, []State{StateValidating, StateSubmitting, StateConfirming, StateSucceeded}, historyStates(res.Action))
}

func TestRemoveLiquidityExceedsShares(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.RemoveLiquidity(context.Background(), nil, RemoveLiquidityRequest{
		Shares:       big.NewInt(51),
		ShareBalance: big.NewInt(50),
	})
	require.True(t, errors.Is(err, dexerr.ErrInsufficientBalance))
	assert.Empty(t, h.ledger.Calls())
}

func TestFormBusyRejectsConcurrentSubmit(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.Allowances[testPair.AssetA] = big.NewInt(1_000_000)
	h.ledger.Release = make(chan struct{})
	form := NewForm("swap")

	req := SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Swap(context.Background(), form, req)
		done <- err
	}()
	waitForState(t, h.states, StateConfirming)
	require.True(t, form.Busy())

	res, err := h.orch.Swap(context.Background(), form, req)
	require.True(t, errors.Is(err, dexerr.ErrFormBusy))
	assert.Nil(t, res)
	assert.Equal(t, 1, h.ledger.Count("swap"))

	close(h.ledger.Release)
	require.NoError(t, <-done)
	assert.False(t, form.Busy())
}

func TestAbandonBeforeSubmit(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.Release = make(chan struct{})
	form := NewForm("swap")

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.orch.Swap(ctx, form, SwapRequest{
			AssetIn:   testPair.AssetA,
			AmountIn:  big.NewInt(100),
			Balance:   big.NewInt(1000),
			Tolerance: amm.DefaultTolerance,
		})
		done <- outcome{res, err}
	}()
	waitForState(t, h.states, StateAwaitingApproval)
	require.Eventually(t, func() bool { return h.ledger.Count("approve") == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	out := <-done
	require.True(t, errors.Is(out.err, dexerr.ErrAbandoned))
	assert.Equal(t, StateFailed, out.res.Action.State())
	assert.Equal(t, 0, h.ledger.Count("swap"))
	assert.False(t, form.Busy())
}

func TestCancelAfterSubmitIsIgnored(t *testing.T) {
	h := newHarness(t, Config{})
	h.ledger.Allowances[testPair.AssetA] = big.NewInt(1_000_000)
	h.ledger.Release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Swap(ctx, nil, SwapRequest{
			AssetIn:   testPair.AssetA,
			AmountIn:  big.NewInt(100),
			Balance:   big.NewInt(1000),
			Tolerance: amm.DefaultTolerance,
		})
		done <- err
	}()
	waitForState(t, h.states, StateConfirming)
	cancel()
	close(h.ledger.Release)

	require.NoError(t, <-done)
}

func TestConfirmationTimeout(t *testing.T) {
	h := newHarness(t, Config{ConfirmTimeout: 20 * time.Millisecond})
	h.ledger.Allowances[testPair.AssetA] = big.NewInt(1_000_000)
	h.ledger.Release = make(chan struct{})
	defer close(h.ledger.Release)

	res, err := h.orch.Swap(context.Background(), nil, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrConfirmationTimeout))
	assert.True(t, res.RefreshRequired)
	assert.NotEqual(t, common.Hash{}, res.Action.TxHash())
}

func TestApprovalConfirmationTimeout(t *testing.T) {
	h := newHarness(t, Config{ConfirmTimeout: 20 * time.Millisecond})
	h.ledger.Release = make(chan struct{})
	defer close(h.ledger.Release)
	form := NewForm("swap")

	res, err := h.orch.Swap(context.Background(), form, SwapRequest{
		AssetIn:   testPair.AssetA,
		AmountIn:  big.NewInt(100),
		Balance:   big.NewInt(1000),
		Tolerance: amm.DefaultTolerance,
	})
	require.True(t, errors.Is(err, dexerr.ErrApprovalFailed), "got %v", err)
	assert.False(t, errors.Is(err, dexerr.ErrAbandoned))
	assert.Equal(t, 1, h.ledger.Count("approve"))
	assert.Equal(t, 0, h.ledger.Count("swap"))
	assert.Equal(t, []State{StateValidating, StateAwaitingApproval, StateFailed}, historyStates(res.Action))
	assert.Len(t, res.Action.Approvals(), 1)
	assert.False(t, form.Busy())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateValidating, true},
		{StateValidating, StateSubmitting, true},
		{StateValidating, StateAwaitingApproval, true},
		{StateAwaitingApproval, StateSubmitting, true},
		{StateSubmitting, StateConfirming, true},
		{StateConfirming, StateSucceeded, true},
		{StateConfirming, StateFailed, true},
		{StateIdle, StateSubmitting, false},
		{StateSucceeded, StateFailed, false},
		{StateFailed, StateValidating, false},
		{StateConfirming, StateSubmitting, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("CanTransition(%s, %s) = %v", tc.from, tc.to, got)
		}
	}
	assert.True(t, StateAwaitingApproval.Cancellable())
	assert.False(t, StateSubmitting.Cancellable())
	assert.True(t, StateFailed.Terminal())
}
