package orchestrator

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"miniswap/internal/allowance"
)

// Transition is one recorded state change.
type Transition struct {
	ActionID uint64
	Intent   Intent
	From     State
	To       State
	At       time.Time
	Err      error
}

// PendingAction is the scratch state of one submit. It is owned by the
// orchestrator call that created it and is never persisted.
type PendingAction struct {
	ID     uint64
	Intent Intent

	mu        sync.Mutex
	state     State
	history   []Transition
	approvals []allowance.Approval
	txHash    common.Hash
	err       error
}

func (a *PendingAction) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// History returns the transitions taken so far.
func (a *PendingAction) History() []Transition {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Transition, len(a.history))
	copy(out, a.history)
	return out
}

// Approvals returns the approvals submitted for this action. They stay in
// effect even if the primary call later fails.
func (a *PendingAction) Approvals() []allowance.Approval {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]allowance.Approval, len(a.approvals))
	copy(out, a.approvals)
	return out
}

// TxHash is the primary transaction hash, zero until submitted.
func (a *PendingAction) TxHash() common.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.txHash
}

// Err is the terminal error of a failed action.
func (a *PendingAction) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *PendingAction) addApproval(ap allowance.Approval) {
	a.mu.Lock()
	a.approvals = append(a.approvals, ap)
	a.mu.Unlock()
}

func (a *PendingAction) setTxHash(h common.Hash) {
	a.mu.Lock()
	a.txHash = h
	a.mu.Unlock()
}

// Form is the mutual-exclusion token of one input form: while an action
// from it is in flight, further submits are refused.
type Form struct {
	Name string
	busy atomic.Bool
}

func NewForm(name string) *Form {
	return &Form{Name: name}
}

// Busy reports whether an action from this form is in flight.
func (f *Form) Busy() bool {
	return f.busy.Load()
}

func (f *Form) acquire() bool {
	return f.busy.CompareAndSwap(false, true)
}

func (f *Form) release() {
	f.busy.Store(false)
}

// Result is what a submit returns. Expected and Minimum follow the argument
// order of the primary call's output side.
type Result struct {
	Action          *PendingAction
	Expected        []*big.Int
	Minimum         []*big.Int
	RefreshRequired bool
}
