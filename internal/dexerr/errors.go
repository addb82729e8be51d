package dexerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can pick a user-facing recovery.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidAmount
	KindInvalidAsset
	KindInsufficientBalance
	KindInvalidReserves
	KindApprovalFailed
	KindSlippageExceeded
	KindReadFailed
	KindNoWalletConnected
	KindSubmitFailed
	KindConfirmationTimeout
	KindAbandoned
	KindFormBusy
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindInvalidAmount:       "invalid_amount",
	KindInvalidAsset:        "invalid_asset",
	KindInsufficientBalance: "insufficient_balance",
	KindInvalidReserves:     "invalid_reserves",
	KindApprovalFailed:      "approval_failed",
	KindSlippageExceeded:    "slippage_exceeded",
	KindReadFailed:          "read_failed",
	KindNoWalletConnected:   "no_wallet_connected",
	KindSubmitFailed:        "submit_failed",
	KindConfirmationTimeout: "confirmation_timeout",
	KindAbandoned:           "abandoned",
	KindFormBusy:            "form_busy",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Hint is the recovery message shown next to a failure of this kind.
func (k Kind) Hint() string {
	switch k {
	case KindInvalidAmount:
		return "enter a valid amount"
	case KindInvalidAsset:
		return "choose one of the pool assets"
	case KindInsufficientBalance:
		return "insufficient balance"
	case KindInvalidReserves:
		return "pool is empty, set both amounts"
	case KindApprovalFailed:
		return "approval failed, try again"
	case KindSlippageExceeded:
		return "price moved beyond tolerance, try a higher slippage"
	case KindReadFailed:
		return "could not read pool state, check your connection"
	case KindNoWalletConnected:
		return "connect a wallet"
	case KindSubmitFailed:
		return "could not submit transaction, check your connection"
	case KindConfirmationTimeout:
		return "transaction not confirmed yet, check it before resubmitting"
	case KindFormBusy:
		return "a transaction from this form is already in progress"
	default:
		return ""
	}
}

// Error carries a Kind together with the operation and cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches bare sentinels by kind, so errors.Is(err, ErrReadFailed) holds
// for any ReadFailed error regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount}
	ErrInvalidAsset        = &Error{Kind: KindInvalidAsset}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrInvalidReserves     = &Error{Kind: KindInvalidReserves}
	ErrApprovalFailed      = &Error{Kind: KindApprovalFailed}
	ErrSlippageExceeded    = &Error{Kind: KindSlippageExceeded}
	ErrReadFailed          = &Error{Kind: KindReadFailed}
	ErrNoWalletConnected   = &Error{Kind: KindNoWalletConnected}
	ErrSubmitFailed        = &Error{Kind: KindSubmitFailed}
	ErrConfirmationTimeout = &Error{Kind: KindConfirmationTimeout}
	ErrAbandoned           = &Error{Kind: KindAbandoned}
	ErrFormBusy            = &Error{Kind: KindFormBusy}
)

// E builds a classified error.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
