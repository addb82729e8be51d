package dexerr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := E(KindReadFailed, "getReserves", context.DeadlineExceeded)
	wrapped := fmt.Errorf("refresh: %w", err)

	if !errors.Is(wrapped, ErrReadFailed) {
		t.Fatalf("expected ReadFailed match")
	}
	if errors.Is(wrapped, ErrApprovalFailed) {
		t.Fatalf("unexpected ApprovalFailed match")
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable")
	}
	if got := KindOf(wrapped); got != KindReadFailed {
		t.Fatalf("kind mismatch: %s", got)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("kind mismatch: %s", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Fatalf("kind mismatch: %s", got)
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(KindInvalidAmount, "swap", "amount %s", "-1")
	if err.Error() != "swap: invalid_amount: amount -1" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if ErrSlippageExceeded.Error() != "slippage_exceeded" {
		t.Fatalf("unexpected message %q", ErrSlippageExceeded.Error())
	}
}
