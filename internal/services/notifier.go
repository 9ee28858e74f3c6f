package services

import (
	"context"

	"paghetta/internal/core"
)

// Notifier is the optional fire-and-forget broadcast capability. Services
// hold it as a nil-able field: a nil notifier is a no-op, and a publish
// failure is logged and swallowed, never surfaced to the caller.
type Notifier interface {
	AllowancePaid(ctx context.Context, accountID string, amount core.Money) error
	RewardApproved(ctx context.Context, accountID, taskTitle string, amount core.Money) error
	BudgetAlert(ctx context.Context, accountID string, category core.Category, status core.BudgetStatus, spent, limit core.Money) error
}
