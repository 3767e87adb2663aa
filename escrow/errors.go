/*
errors.go - Centralized error types for the escrow engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; the HTTP layer maps these
  onto status codes.

ERROR CATEGORIES:
  1. Ledger errors - balance preconditions (insufficient funds, bad amounts)
  2. State machine errors - authority and status preconditions
  3. Store errors - missing or duplicate records

USAGE:
    if errors.Is(err, escrow.ErrInvalidTransition) {
        // rejected intent, nothing was mutated
    }

    var insufficient *escrow.InsufficientFundsError
    if errors.As(err, &insufficient) {
        fmt.Println("short by", insufficient.Shortfall)
    }

SEE ALSO:
  - ledger.go: Returns InsufficientFundsError
  - order.go: Returns InvalidTransitionError
*/
package escrow

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a hold, refund, release, transfer,
	// or exchange exceeds the source balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransition is returned when the actor lacks authority on the
	// order, or the order's current status does not permit the requested
	// action. The attempt leaves all state unchanged.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound is returned when a referenced order id or account email
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAccount is returned when registering with an email that
	// already exists.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrInvalidAmount is returned when an operation is given a zero or
	// negative amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidCredentials is returned when login email and password do not
	// match an account.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports a balance shortage on a specific account.
type InsufficientFundsError struct {
	Email     string
	Balance   string // which balance fell short: "coin", "cash", "escrow"
	Available decimal.Decimal
	Requested decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %v, requested %v, shortfall %v",
		e.Balance, e.Email, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// InvalidTransitionError reports a rejected order transition.
type InvalidTransitionError struct {
	OrderID OrderID
	Action  Action
	Status  OrderStatus
	Actor   string
	Reason  string // "authority" or "status"
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s order %s (status %s) as %s: %s check failed",
		e.Action, e.OrderID, e.Status, e.Actor, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateAccount) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidCredentials)
}

// IsNotFound returns true if the error indicates a missing order or account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
