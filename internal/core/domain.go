package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

const (
	SavingsNone       SavingsTransferType = "none"
	SavingsPercentage SavingsTransferType = "percentage"
	SavingsFixed      SavingsTransferType = "fixed"
)

const (
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
)

const (
	AdjustmentPaused        AdjustmentType = "paused"
	AdjustmentResumed       AdjustmentType = "resumed"
	AdjustmentAmountChanged AdjustmentType = "amount_changed"
)

const (
	TaskActive   TaskStatus = "active"
	TaskArchived TaskStatus = "archived"
)

const (
	CompletionPending  CompletionStatus = "pending_approval"
	CompletionApproved CompletionStatus = "approved"
	CompletionRejected CompletionStatus = "rejected"
)

type (
	Direction           string
	Role                string
	SavingsTransferType string
	BudgetPeriod        string
	AdjustmentType      string
	TaskStatus          string
	CompletionStatus    string

	Money struct {
		Cents int64
	}

	// Actor is the already-resolved identity performing an operation.
	// It is always passed in explicitly; nothing in the core reads
	// ambient state.
	Actor struct {
		AccountID string
		Role      Role
		FamilyID  string
	}

	// SavingsPolicy describes the automatic transfer applied after an
	// allowance credit. Value is a percentage for SavingsPercentage and
	// cents for SavingsFixed.
	SavingsPolicy struct {
		Type  SavingsTransferType
		Value int64
	}

	Account struct {
		ID              string
		FamilyID        string
		Name            string
		SpendingBalance Money
		SavingsBalance  Money
		WeeklyAllowance Money
		// AllowanceWeekday selects the fixed-day schedule; nil means the
		// rolling 7-day window.
		AllowanceWeekday    *time.Weekday
		LastAllowancePaidAt time.Time
		AllowancePaused     bool
		AllowDebt           bool
		Savings             SavingsPolicy
		Version             int64
		CreatedAt           time.Time
	}

	// LedgerEntry is an immutable transaction record. BalanceAfter is the
	// spending balance at the instant the entry was committed, not a value
	// to be recomputed later.
	LedgerEntry struct {
		ID           string
		AccountID    string
		Amount       Money
		Direction    Direction
		Category     Category
		Description  string
		BalanceAfter Money
		Actor        string
		CreatedAt    time.Time
	}

	CategoryBudget struct {
		AccountID         string
		Category          Category
		Limit             Money
		Period            BudgetPeriod
		AlertThresholdPct int64
		EnforceLimit      bool
		UpdatedAt         time.Time
	}

	// AllowanceAdjustment is an append-only audit record of a schedule
	// mutation. Records are never rewritten or deleted.
	AllowanceAdjustment struct {
		ID        string
		AccountID string
		Type      AdjustmentType
		OldAmount Money
		NewAmount Money
		Reason    string
		Actor     string
		CreatedAt time.Time
	}

	ChoreTask struct {
		ID             string
		AccountID      string
		FamilyID       string
		Title          string
		Reward         Money
		Status         TaskStatus
		RecurrenceRule string
		CreatedAt      time.Time
		ArchivedAt     time.Time
	}

	TaskCompletion struct {
		ID              string
		TaskID          string
		AccountID       string
		CompletedAt     time.Time
		Status          CompletionStatus
		Reviewer        string
		ReviewedAt      time.Time
		RejectionReason string
		LedgerEntryID   string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyTitle       = errors.New("empty title")
)

// IsParent reports whether the actor may perform parent-only operations.
func (a Actor) IsParent() bool {
	return a.Role == RoleParent
}

// SameFamily reports whether the actor belongs to the account's family.
func (a Actor) SameFamily(acct *Account) bool {
	return acct != nil && a.FamilyID == acct.FamilyID
}

func (d Direction) Validate() error {
	switch d {
	case Credit, Debit:
		return nil
	default:
		return ErrInvalidDirection
	}
}

func (p BudgetPeriod) Validate() error {
	switch p {
	case PeriodWeekly, PeriodMonthly:
		return nil
	default:
		return errors.New("invalid budget period")
	}
}

// WindowStart returns the start of the rolling lookback window ending at now.
func (p BudgetPeriod) WindowStart(now time.Time) time.Time {
	switch p {
	case PeriodMonthly:
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -7)
	}
}

func (b CategoryBudget) Validate() error {
	if err := b.Limit.Validate(); err != nil {
		return err
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if b.AlertThresholdPct < 1 || b.AlertThresholdPct > 100 {
		return errors.New("alert threshold must be between 1 and 100 percent")
	}
	return b.Category.Validate()
}

func (p SavingsPolicy) Validate() error {
	switch p.Type {
	case SavingsNone:
		return nil
	case SavingsPercentage:
		if p.Value < 1 || p.Value > 100 {
			return errors.New("savings percentage must be between 1 and 100")
		}
		return nil
	case SavingsFixed:
		if p.Value <= 0 {
			return ErrInvalidAmount
		}
		return nil
	default:
		return errors.New("invalid savings transfer type")
	}
}

// TransferAmount computes how much of a just-paid allowance moves to
// savings under the policy. The result is capped at the paid amount.
func (p SavingsPolicy) TransferAmount(paid Money) Money {
	var cents int64
	switch p.Type {
	case SavingsPercentage:
		cents = paid.Cents * p.Value / 100
	case SavingsFixed:
		cents = p.Value
	default:
		return Money{}
	}
	if cents > paid.Cents {
		cents = paid.Cents
	}
	return Money{Cents: cents}
}

func (t ChoreTask) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	return t.Reward.Validate()
}

// Signed returns the entry amount in cents, negative for debits. The
// running sum of signed amounts for an account equals its spending balance.
func (e LedgerEntry) Signed() int64 {
	if e.Direction == Debit {
		return -e.Amount.Cents
	}
	return e.Amount.Cents
}
