package core

import (
	"errors"
	"testing"
	"time"
)

func TestSavingsPolicyTransferAmount(t *testing.T) {
	tests := []struct {
		name   string
		policy SavingsPolicy
		paid   Money
		want   int64
	}{
		{"none", SavingsPolicy{Type: SavingsNone}, Money{Cents: 1500}, 0},
		{"twenty percent", SavingsPolicy{Type: SavingsPercentage, Value: 20}, Money{Cents: 1500}, 300},
		{"percentage rounds down", SavingsPolicy{Type: SavingsPercentage, Value: 33}, Money{Cents: 1000}, 330},
		{"fixed amount", SavingsPolicy{Type: SavingsFixed, Value: 500}, Money{Cents: 1500}, 500},
		{"fixed capped at paid", SavingsPolicy{Type: SavingsFixed, Value: 2000}, Money{Cents: 1500}, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.TransferAmount(tt.paid); got.Cents != tt.want {
				t.Errorf("TransferAmount() = %d, want %d", got.Cents, tt.want)
			}
		})
	}
}

func TestSavingsPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  SavingsPolicy
		wantErr bool
	}{
		{"none", SavingsPolicy{Type: SavingsNone}, false},
		{"valid percentage", SavingsPolicy{Type: SavingsPercentage, Value: 50}, false},
		{"zero percentage", SavingsPolicy{Type: SavingsPercentage, Value: 0}, true},
		{"over hundred percentage", SavingsPolicy{Type: SavingsPercentage, Value: 101}, true},
		{"valid fixed", SavingsPolicy{Type: SavingsFixed, Value: 200}, false},
		{"zero fixed", SavingsPolicy{Type: SavingsFixed, Value: 0}, true},
		{"unknown type", SavingsPolicy{Type: "half"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCategoryBudgetValidate(t *testing.T) {
	valid := CategoryBudget{
		Category:          CategoryToys,
		Limit:             Money{Cents: 2000},
		Period:            PeriodWeekly,
		AlertThresholdPct: 80,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid budget rejected: %v", err)
	}

	zeroLimit := valid
	zeroLimit.Limit = Money{}
	if err := zeroLimit.Validate(); err == nil {
		t.Error("zero limit accepted")
	}

	badPeriod := valid
	badPeriod.Period = "daily"
	if err := badPeriod.Validate(); err == nil {
		t.Error("invalid period accepted")
	}

	badThreshold := valid
	badThreshold.AlertThresholdPct = 0
	if err := badThreshold.Validate(); err == nil {
		t.Error("zero threshold accepted")
	}
}

func TestLedgerEntrySigned(t *testing.T) {
	credit := LedgerEntry{Amount: Money{Cents: 500}, Direction: Credit}
	if credit.Signed() != 500 {
		t.Errorf("credit Signed() = %d, want 500", credit.Signed())
	}
	debit := LedgerEntry{Amount: Money{Cents: 500}, Direction: Debit}
	if debit.Signed() != -500 {
		t.Errorf("debit Signed() = %d, want -500", debit.Signed())
	}
}

func TestErrorTaxonomy(t *testing.T) {
	ife := &InsufficientFundsError{AccountID: "a1", Available: Money{Cents: 1000}, Requested: Money{Cents: 2500}}
	if !errors.Is(ife, ErrInsufficientFunds) {
		t.Error("InsufficientFundsError does not match ErrInsufficientFunds")
	}

	bee := &BudgetExceededError{Category: CategoryToys, Spent: Money{Cents: 1800}, Limit: Money{Cents: 2000}, Requested: Money{Cents: 500}, Over: Money{Cents: 300}}
	if !errors.Is(bee, ErrBudgetExceeded) {
		t.Error("BudgetExceededError does not match ErrBudgetExceeded")
	}
	if bee.Error() == "" || ife.Error() == "" {
		t.Error("error messages should not be empty")
	}
}

func TestActorChecks(t *testing.T) {
	acct := &Account{ID: "c1", FamilyID: "fam1"}

	parent := Actor{AccountID: "p1", Role: RoleParent, FamilyID: "fam1"}
	if !parent.IsParent() || !parent.SameFamily(acct) {
		t.Error("parent in family should pass both checks")
	}

	stranger := Actor{AccountID: "p2", Role: RoleParent, FamilyID: "fam2"}
	if stranger.SameFamily(acct) {
		t.Error("parent from another family should not match")
	}

	child := Actor{AccountID: "c1", Role: RoleChild, FamilyID: "fam1"}
	if child.IsParent() {
		t.Error("child should not be a parent")
	}
}

func TestBudgetPeriodWindowStart(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	weekly := PeriodWeekly.WindowStart(now)
	if weekly != now.AddDate(0, 0, -7) {
		t.Errorf("weekly window start = %v", weekly)
	}
	monthly := PeriodMonthly.WindowStart(now)
	if monthly != now.AddDate(0, 0, -30) {
		t.Errorf("monthly window start = %v", monthly)
	}
}
