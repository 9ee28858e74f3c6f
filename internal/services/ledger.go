// Package services implements the allowance ledger core: balance mutation,
// budget enforcement, allowance scheduling and the chore reward workflow.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"paghetta/internal/core"
	"paghetta/internal/storage"
)

// Ledger mutates balances and records immutable transaction history. Every
// balance change commits together with exactly one LedgerEntry.
//
// Writers touching the same account are serialized twice: an in-process
// per-account mutex keeps this process's own writers ordered, and the
// store's version token catches anything else.
type Ledger struct {
	store    storage.Store
	budgets  *BudgetGuard
	notifier Notifier

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func NewLedger(store storage.Store, budgets *BudgetGuard, notifier Notifier) *Ledger {
	return &Ledger{
		store:    store,
		budgets:  budgets,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// TransactionRequest describes a single credit or debit.
type TransactionRequest struct {
	AccountID string
	Amount    core.Money
	Direction core.Direction
	// Category may be left empty; it is then suggested from the description.
	Category    core.Category
	Description string
	// DrawFromSavings lets a debit pull the shortfall from the savings
	// balance when spending alone cannot cover it.
	DrawFromSavings bool
	Actor           core.Actor
}

func (r TransactionRequest) validate() error {
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Direction.Validate(); err != nil {
		return err
	}
	if err := r.Category.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return core.ErrEmptyDescription
	}
	return nil
}

func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	if _, ok := l.locks[accountID]; !ok {
		l.locks[accountID] = &sync.Mutex{}
	}
	return l.locks[accountID]
}

// CreateTransaction applies a credit or debit and records the entry. Debits
// are checked against the Budget Guard and the overdraft policy before any
// state changes; failure at either gate leaves the balance untouched.
func (l *Ledger) CreateTransaction(ctx context.Context, req TransactionRequest) (*core.LedgerEntry, error) {
	if req.Category == "" {
		req.Category = core.SuggestCategory(req.Description, req.Direction)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	lock := l.accountLock(req.AccountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	var report *BudgetReport
	var draw *core.LedgerEntry
	if req.Direction == core.Debit {
		report, err = l.budgets.CheckBudget(ctx, req.AccountID, req.Category, req.Amount)
		if err != nil {
			return nil, err
		}
		draw, err = l.applyDebit(acct, req)
		if err != nil {
			return nil, err
		}
	} else {
		acct.SpendingBalance = acct.SpendingBalance.Add(req.Amount)
	}

	entry := &core.LedgerEntry{
		ID:           uuid.NewString(),
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Direction:    req.Direction,
		Category:     req.Category,
		Description:  req.Description,
		BalanceAfter: acct.SpendingBalance,
		Actor:        req.Actor.AccountID,
		CreatedAt:    l.now().UTC(),
	}

	// The savings draw, when present, commits together with the debit so
	// the entry history explains every cent the spending balance moved.
	entries := []*core.LedgerEntry{entry}
	if draw != nil {
		entries = []*core.LedgerEntry{draw, entry}
	}
	if err := l.store.CommitEntry(ctx, acct, entries...); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "transaction committed",
		"entry_id", entry.ID,
		"account_id", entry.AccountID,
		"direction", entry.Direction,
		"category", entry.Category,
		"amount_cents", entry.Amount.Cents,
		"balance_after_cents", entry.BalanceAfter.Cents,
		"actor", entry.Actor)

	if report != nil {
		l.alertIfNearLimit(ctx, req, report)
	}
	return entry, nil
}

// applyDebit mutates the account's balances under the overdraft policy.
// A shortfall covered from savings is itself a ledger entry, a
// Savings-category credit returned for the caller to commit with the debit.
func (l *Ledger) applyDebit(acct *core.Account, req TransactionRequest) (*core.LedgerEntry, error) {
	var draw *core.LedgerEntry
	if acct.SpendingBalance.LessThan(req.Amount) {
		shortfall := req.Amount.Sub(acct.SpendingBalance)
		switch {
		case req.DrawFromSavings && !acct.SavingsBalance.LessThan(shortfall):
			acct.SavingsBalance = acct.SavingsBalance.Sub(shortfall)
			acct.SpendingBalance = acct.SpendingBalance.Add(shortfall)
			draw = &core.LedgerEntry{
				ID:           uuid.NewString(),
				AccountID:    acct.ID,
				Amount:       shortfall,
				Direction:    core.Credit,
				Category:     core.CategorySavings,
				Description:  "Drawn from savings",
				BalanceAfter: acct.SpendingBalance,
				Actor:        req.Actor.AccountID,
				CreatedAt:    l.now().UTC(),
			}
		case acct.AllowDebt:
			// Negative spending balance permitted.
		default:
			return nil, &core.InsufficientFundsError{
				AccountID: acct.ID,
				Available: acct.SpendingBalance,
				Requested: req.Amount,
			}
		}
	}
	acct.SpendingBalance = acct.SpendingBalance.Sub(req.Amount)
	return draw, nil
}

// alertIfNearLimit publishes a budget alert once the committed debit lands
// the category at or past its alert threshold. Best-effort.
func (l *Ledger) alertIfNearLimit(ctx context.Context, req TransactionRequest, report *BudgetReport) {
	if l.notifier == nil {
		return
	}
	spentAfter := report.Spent.Add(req.Amount)
	status := report.Budget.Status(spentAfter)
	if status == core.BudgetSafe {
		return
	}
	if err := l.notifier.BudgetAlert(ctx, req.AccountID, req.Category, status, spentAfter, report.Budget.Limit); err != nil {
		slog.ErrorContext(ctx, "failed to publish budget alert",
			"account_id", req.AccountID,
			"category", req.Category,
			"error", err)
	}
}

// TransferToSavings moves an amount from the spending balance to savings,
// recording a Savings-category debit entry.
func (l *Ledger) TransferToSavings(ctx context.Context, accountID string, amount core.Money, description string, actor core.Actor) (*core.LedgerEntry, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.SpendingBalance.LessThan(amount) && !acct.AllowDebt {
		return nil, &core.InsufficientFundsError{
			AccountID: accountID,
			Available: acct.SpendingBalance,
			Requested: amount,
		}
	}

	acct.SpendingBalance = acct.SpendingBalance.Sub(amount)
	acct.SavingsBalance = acct.SavingsBalance.Add(amount)

	entry := &core.LedgerEntry{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Amount:       amount,
		Direction:    core.Debit,
		Category:     core.CategorySavings,
		Description:  description,
		BalanceAfter: acct.SpendingBalance,
		Actor:        actor.AccountID,
		CreatedAt:    l.now().UTC(),
	}

	if err := l.store.CommitEntry(ctx, acct, entry); err != nil {
		return nil, fmt.Errorf("commit savings transfer: %w", err)
	}

	slog.InfoContext(ctx, "savings transfer committed",
		"entry_id", entry.ID,
		"account_id", accountID,
		"amount_cents", amount.Cents,
		"savings_cents", acct.SavingsBalance.Cents)
	return entry, nil
}

// BalanceSnapshot is a point-in-time view of both balances.
type BalanceSnapshot struct {
	AccountID string
	Spending  core.Money
	Savings   core.Money
	AsOf      time.Time
}

func (l *Ledger) GetBalance(ctx context.Context, accountID string) (*BalanceSnapshot, error) {
	acct, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &BalanceSnapshot{
		AccountID: accountID,
		Spending:  acct.SpendingBalance,
		Savings:   acct.SavingsBalance,
		AsOf:      l.now().UTC(),
	}, nil
}

// GetAccountTransactions returns the newest entries first, up to limit
// (50 when limit <= 0).
func (l *Ledger) GetAccountTransactions(ctx context.Context, accountID string, limit int) ([]core.LedgerEntry, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListEntries(ctx, accountID, limit)
}
