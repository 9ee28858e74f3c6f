// Package storage provides persistence for the allowance ledger. Store is
// the interface the services depend on; SQLiteRepository and MemoryStore
// implement it.
package storage

import (
	"context"
	"time"

	"paghetta/internal/core"
)

// Store is the persistence boundary of the core. Implementations must make
// CommitEntry atomic: the account's balances and the new ledger entries become
// visible together or not at all, including across a crash.
//
// Account writes are guarded by an optimistic version token: UpdateAccount
// and CommitEntry compare the account's Version against the stored row and
// fail with core.ErrVersionConflict when a concurrent writer committed first.
type Store interface {
	CreateAccount(ctx context.Context, a *core.Account) error
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	// UpdateAccount persists the account's mutable fields and bumps Version.
	UpdateAccount(ctx context.Context, a *core.Account) error
	// ListPayableAccounts returns unpaused accounts with a non-zero
	// weekly allowance.
	ListPayableAccounts(ctx context.Context) ([]core.Account, error)

	// CommitEntry atomically persists the account's balances (version
	// checked) and inserts the ledger entries in the given order. A debit
	// that draws on savings commits its two entries through a single call.
	CommitEntry(ctx context.Context, a *core.Account, entries ...*core.LedgerEntry) error
	ListEntries(ctx context.Context, accountID string, limit int) ([]core.LedgerEntry, error)
	// SumCategoryDebits returns the cumulative debit amount for a category
	// since the given instant.
	SumCategoryDebits(ctx context.Context, accountID string, category core.Category, since time.Time) (core.Money, error)

	UpsertBudget(ctx context.Context, b *core.CategoryBudget) error
	GetBudget(ctx context.Context, accountID string, category core.Category) (*core.CategoryBudget, error)
	DeleteBudget(ctx context.Context, accountID string, category core.Category) error

	AppendAdjustment(ctx context.Context, adj *core.AllowanceAdjustment) error
	ListAdjustments(ctx context.Context, accountID string) ([]core.AllowanceAdjustment, error)

	CreateTask(ctx context.Context, t *core.ChoreTask) error
	GetTask(ctx context.Context, id string) (*core.ChoreTask, error)
	UpdateTask(ctx context.Context, t *core.ChoreTask) error
	ListTasksByFamily(ctx context.Context, familyID string) ([]core.ChoreTask, error)

	CreateCompletion(ctx context.Context, c *core.TaskCompletion) error
	GetCompletion(ctx context.Context, id string) (*core.TaskCompletion, error)
	UpdateCompletion(ctx context.Context, c *core.TaskCompletion) error
	ListPendingCompletions(ctx context.Context, familyID string) ([]core.TaskCompletion, error)
	ListCompletionsByAccount(ctx context.Context, accountID string) ([]core.TaskCompletion, error)

	Close() error
}
