package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paghetta/internal/core"
	"paghetta/internal/storage"
)

// schedulerActor is recorded on entries the scheduler creates on its own
// clock, where no human actor exists.
var schedulerActor = core.Actor{AccountID: "allowance-scheduler"}

// AllowanceScheduler pays recurring allowances idempotently and keeps the
// append-only adjustment audit trail.
type AllowanceScheduler struct {
	store    storage.Store
	ledger   *Ledger
	notifier Notifier
	now      func() time.Time
}

func NewAllowanceScheduler(store storage.Store, ledger *Ledger, notifier Notifier) *AllowanceScheduler {
	return &AllowanceScheduler{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
	}
}

// PayWeeklyAllowance credits the account's configured allowance when the
// pay schedule says it is due. A second call inside the same window fails
// with ErrInvalidState and changes nothing.
//
// The savings auto-transfer after the credit is deliberately best-effort:
// its failure is logged and swallowed so the committed credit is never
// undone by a downstream step.
func (s *AllowanceScheduler) PayWeeklyAllowance(ctx context.Context, accountID string) (*core.LedgerEntry, error) {
	entry, acct, err := s.payDueAllowance(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if transfer := acct.Savings.TransferAmount(acct.WeeklyAllowance); !transfer.IsZero() {
		if _, err := s.ledger.TransferToSavings(ctx, accountID, transfer, "Automatic savings transfer", schedulerActor); err != nil {
			slog.ErrorContext(ctx, "savings auto-transfer failed, allowance credit stands",
				"account_id", accountID,
				"transfer_cents", transfer.Cents,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "allowance paid",
		"account_id", accountID,
		"amount_cents", acct.WeeklyAllowance.Cents,
		"entry_id", entry.ID)

	if s.notifier != nil {
		if err := s.notifier.AllowancePaid(ctx, accountID, acct.WeeklyAllowance); err != nil {
			slog.ErrorContext(ctx, "failed to publish allowance notification",
				"account_id", accountID, "error", err)
		}
	}
	return entry, nil
}

// payDueAllowance checks eligibility and commits the credit against the
// same account read. The ledger's per-account lock serializes callers in
// this process; the commit carries the version token from the eligibility
// read, so the loser of any other race gets ErrVersionConflict instead of
// paying the window twice. LastAllowancePaidAt lands in the same commit as
// the credit.
func (s *AllowanceScheduler) payDueAllowance(ctx context.Context, accountID string) (*core.LedgerEntry, *core.Account, error) {
	lock := s.ledger.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if acct.AllowancePaused {
		return nil, nil, fmt.Errorf("allowance is paused for account %s: %w", accountID, core.ErrInvalidState)
	}
	if acct.WeeklyAllowance.IsZero() {
		return nil, nil, fmt.Errorf("no allowance configured for account %s: %w", accountID, core.ErrInvalidState)
	}

	now := s.now()
	if due, reason := acct.Schedule().Due(now); !due {
		return nil, nil, fmt.Errorf("%s: %w", reason, core.ErrInvalidState)
	}

	acct.SpendingBalance = acct.SpendingBalance.Add(acct.WeeklyAllowance)
	acct.LastAllowancePaidAt = now.UTC()

	entry := &core.LedgerEntry{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Amount:       acct.WeeklyAllowance,
		Direction:    core.Credit,
		Category:     core.CategoryAllowance,
		Description:  "Weekly allowance",
		BalanceAfter: acct.SpendingBalance,
		Actor:        schedulerActor.AccountID,
		CreatedAt:    now.UTC(),
	}
	if err := s.store.CommitEntry(ctx, acct, entry); err != nil {
		return nil, nil, fmt.Errorf("pay allowance: %w", err)
	}
	return entry, acct, nil
}

// BatchResult aggregates one ProcessAllPendingAllowances run.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
}

// ProcessAllPendingAllowances pays every unpaused account with a non-zero
// allowance that is due. Accounts are processed sequentially; one account's
// failure is logged and does not stop the batch.
func (s *AllowanceScheduler) ProcessAllPendingAllowances(ctx context.Context) (BatchResult, error) {
	accounts, err := s.store.ListPayableAccounts(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list payable accounts: %w", err)
	}

	slog.InfoContext(ctx, "processing pending allowances", "total_candidates", len(accounts))

	var result BatchResult
	for _, acct := range accounts {
		_, err := s.PayWeeklyAllowance(ctx, acct.ID)
		switch {
		// A version conflict means another worker handled the account.
		case errors.Is(err, core.ErrInvalidState), errors.Is(err, core.ErrVersionConflict):
			result.Skipped++
		case err != nil:
			result.Failed++
			slog.ErrorContext(ctx, "failed to pay allowance",
				"account_id", acct.ID,
				"error", err)
		default:
			result.Processed++
		}
	}

	slog.InfoContext(ctx, "allowance processing complete",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

// PauseAllowance stops future allowance payments and records the change.
// Parent-only.
func (s *AllowanceScheduler) PauseAllowance(ctx context.Context, actor core.Actor, accountID, reason string) (*core.AllowanceAdjustment, error) {
	acct, err := s.authorizedAccount(ctx, actor, accountID)
	if err != nil {
		return nil, err
	}
	if acct.AllowancePaused {
		return nil, fmt.Errorf("allowance already paused for account %s: %w", accountID, core.ErrInvalidState)
	}

	acct.AllowancePaused = true
	if err := s.store.UpdateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return s.recordAdjustment(ctx, acct, core.AdjustmentPaused, acct.WeeklyAllowance, acct.WeeklyAllowance, reason, actor)
}

// ResumeAllowance re-enables allowance payments and records the change.
// Parent-only.
func (s *AllowanceScheduler) ResumeAllowance(ctx context.Context, actor core.Actor, accountID, reason string) (*core.AllowanceAdjustment, error) {
	acct, err := s.authorizedAccount(ctx, actor, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.AllowancePaused {
		return nil, fmt.Errorf("allowance not paused for account %s: %w", accountID, core.ErrInvalidState)
	}

	acct.AllowancePaused = false
	if err := s.store.UpdateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return s.recordAdjustment(ctx, acct, core.AdjustmentResumed, acct.WeeklyAllowance, acct.WeeklyAllowance, reason, actor)
}

// AdjustAllowanceAmount changes the weekly amount (zero disables payments)
// and records old and new values. Parent-only.
func (s *AllowanceScheduler) AdjustAllowanceAmount(ctx context.Context, actor core.Actor, accountID string, newAmount core.Money, reason string) (*core.AllowanceAdjustment, error) {
	if newAmount.Cents < 0 {
		return nil, core.ErrInvalidAmount
	}
	acct, err := s.authorizedAccount(ctx, actor, accountID)
	if err != nil {
		return nil, err
	}

	oldAmount := acct.WeeklyAllowance
	acct.WeeklyAllowance = newAmount
	if err := s.store.UpdateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return s.recordAdjustment(ctx, acct, core.AdjustmentAmountChanged, oldAmount, newAmount, reason, actor)
}

// GetAdjustmentHistory returns the full audit trail, newest first. Readable
// by a parent of the family or by the account owner.
func (s *AllowanceScheduler) GetAdjustmentHistory(ctx context.Context, actor core.Actor, accountID string) ([]core.AllowanceAdjustment, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if actor.AccountID != accountID && !(actor.IsParent() && actor.SameFamily(acct)) {
		return nil, fmt.Errorf("actor %s cannot read adjustments for account %s: %w",
			actor.AccountID, accountID, core.ErrUnauthorized)
	}
	return s.store.ListAdjustments(ctx, accountID)
}

func (s *AllowanceScheduler) authorizedAccount(ctx context.Context, actor core.Actor, accountID string) (*core.Account, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !actor.IsParent() || !actor.SameFamily(acct) {
		return nil, fmt.Errorf("actor %s cannot manage allowance for account %s: %w",
			actor.AccountID, accountID, core.ErrUnauthorized)
	}
	return acct, nil
}

func (s *AllowanceScheduler) recordAdjustment(ctx context.Context, acct *core.Account, typ core.AdjustmentType, oldAmount, newAmount core.Money, reason string, actor core.Actor) (*core.AllowanceAdjustment, error) {
	adj := &core.AllowanceAdjustment{
		ID:        uuid.NewString(),
		AccountID: acct.ID,
		Type:      typ,
		OldAmount: oldAmount,
		NewAmount: newAmount,
		Reason:    reason,
		Actor:     actor.AccountID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendAdjustment(ctx, adj); err != nil {
		return nil, fmt.Errorf("append adjustment: %w", err)
	}

	slog.InfoContext(ctx, "allowance adjusted",
		"account_id", acct.ID,
		"type", typ,
		"old_cents", oldAmount.Cents,
		"new_cents", newAmount.Cents,
		"actor", actor.AccountID)
	return adj, nil
}
