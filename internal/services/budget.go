package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paghetta/internal/core"
	"paghetta/internal/storage"
)

// BudgetGuard evaluates category spending limits. The Ledger consults it
// before committing any debit; it never blocks credits.
type BudgetGuard struct {
	store storage.Store
	now   func() time.Time
}

func NewBudgetGuard(store storage.Store) *BudgetGuard {
	return &BudgetGuard{store: store, now: time.Now}
}

// BudgetReport is the reporting view of a budget: current spending inside
// the rolling period window and the resulting status classification.
type BudgetReport struct {
	Budget core.CategoryBudget
	Spent  core.Money
	Status core.BudgetStatus
}

// CheckBudget evaluates a prospective debit against the category's budget.
// Without a budget it allows unconditionally and returns a nil report. With
// an enforced budget whose limit the debit would cross it returns a
// *core.BudgetExceededError alongside the report.
func (g *BudgetGuard) CheckBudget(ctx context.Context, accountID string, category core.Category, amount core.Money) (*BudgetReport, error) {
	budget, err := g.store.GetBudget(ctx, accountID, category)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check budget: %w", err)
	}

	since := budget.Period.WindowStart(g.now())
	spent, err := g.store.SumCategoryDebits(ctx, accountID, category, since)
	if err != nil {
		return nil, fmt.Errorf("sum category spending: %w", err)
	}

	report := &BudgetReport{Budget: *budget, Spent: spent, Status: budget.Status(spent)}

	if budget.EnforceLimit && spent.Add(amount).Cents > budget.Limit.Cents {
		return report, &core.BudgetExceededError{
			AccountID: accountID,
			Category:  category,
			Spent:     spent,
			Limit:     budget.Limit,
			Requested: amount,
			Over:      spent.Add(amount).Sub(budget.Limit),
		}
	}
	return report, nil
}

// SetBudget creates or replaces the single budget for (account, category).
// Parent-only.
func (g *BudgetGuard) SetBudget(ctx context.Context, actor core.Actor, budget core.CategoryBudget) (*core.CategoryBudget, error) {
	acct, err := g.store.GetAccount(ctx, budget.AccountID)
	if err != nil {
		return nil, err
	}
	if !actor.IsParent() || !actor.SameFamily(acct) {
		return nil, fmt.Errorf("actor %s cannot manage budgets for account %s: %w",
			actor.AccountID, budget.AccountID, core.ErrUnauthorized)
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	budget.UpdatedAt = g.now().UTC()
	if err := g.store.UpsertBudget(ctx, &budget); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "budget set",
		"account_id", budget.AccountID,
		"category", budget.Category,
		"limit_cents", budget.Limit.Cents,
		"period", budget.Period,
		"enforced", budget.EnforceLimit,
		"actor", actor.AccountID)
	return &budget, nil
}

// GetBudget returns the budget with its current spending and status.
// Readable by a parent of the family or by the account owner.
func (g *BudgetGuard) GetBudget(ctx context.Context, actor core.Actor, accountID string, category core.Category) (*BudgetReport, error) {
	acct, err := g.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if actor.AccountID != accountID && !(actor.IsParent() && actor.SameFamily(acct)) {
		return nil, fmt.Errorf("actor %s cannot read budgets for account %s: %w",
			actor.AccountID, accountID, core.ErrUnauthorized)
	}

	budget, err := g.store.GetBudget(ctx, accountID, category)
	if err != nil {
		return nil, err
	}
	since := budget.Period.WindowStart(g.now())
	spent, err := g.store.SumCategoryDebits(ctx, accountID, category, since)
	if err != nil {
		return nil, fmt.Errorf("sum category spending: %w", err)
	}
	return &BudgetReport{Budget: *budget, Spent: spent, Status: budget.Status(spent)}, nil
}

// DeleteBudget removes the budget for (account, category). Parent-only.
func (g *BudgetGuard) DeleteBudget(ctx context.Context, actor core.Actor, accountID string, category core.Category) error {
	acct, err := g.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !actor.IsParent() || !actor.SameFamily(acct) {
		return fmt.Errorf("actor %s cannot manage budgets for account %s: %w",
			actor.AccountID, accountID, core.ErrUnauthorized)
	}
	if err := g.store.DeleteBudget(ctx, accountID, category); err != nil {
		return err
	}

	slog.InfoContext(ctx, "budget deleted",
		"account_id", accountID,
		"category", category,
		"actor", actor.AccountID)
	return nil
}
