package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failure the core returns wraps one of these
// sentinels so callers can classify it with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBudgetExceeded    = errors.New("budget exceeded")

	// ErrVersionConflict signals that a concurrent writer committed first;
	// the failed operation applied nothing and may be retried.
	ErrVersionConflict = errors.New("version conflict")
)

// InsufficientFundsError reports a debit that exceeds the available funds
// under the account's overdraft policy.
type InsufficientFundsError struct {
	AccountID string
	Available Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: account %s has %s available, %s requested",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// BudgetExceededError reports a debit that would cross an enforced category
// limit, including how far past the limit the debit would land.
type BudgetExceededError struct {
	AccountID string
	Category  Category
	Spent     Money
	Limit     Money
	Requested Money
	Over      Money
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: category %s spent %s of %s limit, debit of %s would exceed it by %s",
		e.Category, e.Spent, e.Limit, e.Requested, e.Over)
}

func (e *BudgetExceededError) Unwrap() error {
	return ErrBudgetExceeded
}
