package orchestrator

import "fmt"

// State is a stage of a PendingAction.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateAwaitingApproval
	StateSubmitting
	StateConfirming
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateValidating:       "validating",
	StateAwaitingApproval: "awaiting_approval",
	StateSubmitting:       "submitting",
	StateConfirming:       "confirming",
	StateSucceeded:        "succeeded",
	StateFailed:           "failed",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Cancellable reports whether an action in this state may still be
// abandoned. Once the primary write is submitted it cannot be recalled.
func (s State) Cancellable() bool {
	return s < StateSubmitting
}

var transitions = map[State][]State{
	StateIdle:             {StateValidating},
	StateValidating:       {StateAwaitingApproval, StateSubmitting, StateFailed},
	StateAwaitingApproval: {StateSubmitting, StateFailed},
	StateSubmitting:       {StateConfirming, StateFailed},
	StateConfirming:       {StateSucceeded, StateFailed},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Intent is the primary action a PendingAction performs.
type Intent int

const (
	IntentSwap Intent = iota + 1
	IntentAddLiquidity
	IntentRemoveLiquidity
)

func (i Intent) String() string {
	switch i {
	case IntentSwap:
		return "swap"
	case IntentAddLiquidity:
		return "add_liquidity"
	case IntentRemoveLiquidity:
		return "remove_liquidity"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}
