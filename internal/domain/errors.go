package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is wrapped by store lookups that found no row.
	ErrNotFound = errors.New("not found")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentExpired    = errors.New("payment window has expired")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// InvalidTransitionError reports a rejected staff transition together with
// the machine-readable detail staff tooling needs for debugging.
type InvalidTransitionError struct {
	From    OrderStatus
	To      OrderStatus
	Allowed []OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot transition from terminal status %q", e.From)
	}
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot transition from %q to %q (allowed: %s)",
		e.From, e.To, strings.Join(allowed, ", "))
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
