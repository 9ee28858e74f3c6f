package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"paghetta/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_AccountRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saturday := time.Saturday
	account := &core.Account{
		ID:               "c1",
		FamilyID:         "fam1",
		Name:             "Anna",
		SpendingBalance:  core.Money{Cents: 5000},
		SavingsBalance:   core.Money{Cents: 1200},
		WeeklyAllowance:  core.Money{Cents: 1500},
		AllowanceWeekday: &saturday,
		AllowDebt:        true,
		Savings:          core.SavingsPolicy{Type: core.SavingsPercentage, Value: 20},
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetAccount(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Anna" || got.SpendingBalance.Cents != 5000 || got.SavingsBalance.Cents != 1200 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.AllowanceWeekday == nil || *got.AllowanceWeekday != time.Saturday {
		t.Errorf("weekday = %v, want Saturday", got.AllowanceWeekday)
	}
	if got.Savings.Type != core.SavingsPercentage || got.Savings.Value != 20 {
		t.Errorf("savings policy = %+v", got.Savings)
	}
	if !got.AllowDebt {
		t.Error("allow_debt lost")
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}

	if _, err := repo.GetAccount(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing account err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_UpdateAccountVersioning(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, &core.Account{ID: "c1", FamilyID: "fam1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := repo.GetAccount(ctx, "c1")
	second, _ := repo.GetAccount(ctx, "c1")

	first.WeeklyAllowance = core.Money{Cents: 1000}
	if err := repo.UpdateAccount(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("version after update = %d, want 2", first.Version)
	}

	second.WeeklyAllowance = core.Money{Cents: 9999}
	if err := repo.UpdateAccount(ctx, second); !errors.Is(err, core.ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}

	missing := &core.Account{ID: "ghost", Version: 1}
	if err := repo.UpdateAccount(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing account err = %v, want ErrNotFound", err)
	}

	stored, _ := repo.GetAccount(ctx, "c1")
	if stored.WeeklyAllowance.Cents != 1000 {
		t.Errorf("allowance = %d, want 1000", stored.WeeklyAllowance.Cents)
	}
}

func TestSQLiteRepository_CommitEntryAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, &core.Account{ID: "c1", FamilyID: "fam1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	acct, _ := repo.GetAccount(ctx, "c1")
	stale, _ := repo.GetAccount(ctx, "c1")

	acct.SpendingBalance = core.Money{Cents: 1500}
	entry := &core.LedgerEntry{
		ID:           "e1",
		AccountID:    "c1",
		Amount:       core.Money{Cents: 1500},
		Direction:    core.Credit,
		Category:     core.CategoryAllowance,
		Description:  "Weekly allowance",
		BalanceAfter: core.Money{Cents: 1500},
		Actor:        "allowance-scheduler",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CommitEntry(ctx, acct, entry); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// A stale commit rolls back the balance and every entry it carried.
	stale.SpendingBalance = core.Money{Cents: 9999}
	err := repo.CommitEntry(ctx, stale,
		&core.LedgerEntry{
			ID: "e2", AccountID: "c1", Amount: core.Money{Cents: 9999},
			Direction: core.Credit, Category: core.CategoryOther,
			CreatedAt: time.Now().UTC(),
		},
		&core.LedgerEntry{
			ID: "e3", AccountID: "c1", Amount: core.Money{Cents: 100},
			Direction: core.Debit, Category: core.CategoryOther,
			CreatedAt: time.Now().UTC(),
		})
	if !errors.Is(err, core.ErrVersionConflict) {
		t.Fatalf("stale commit err = %v, want ErrVersionConflict", err)
	}

	stored, _ := repo.GetAccount(ctx, "c1")
	if stored.SpendingBalance.Cents != 1500 {
		t.Errorf("balance = %d, want 1500", stored.SpendingBalance.Cents)
	}
	entries, err := repo.ListEntries(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entry count = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.ID != "e1" || got.Direction != core.Credit || got.Category != core.CategoryAllowance {
		t.Errorf("entry = %+v", got)
	}
	if got.BalanceAfter.Cents != 1500 || got.Actor != "allowance-scheduler" {
		t.Errorf("entry detail = %+v", got)
	}
}

func TestSQLiteRepository_SumCategoryDebits(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.CreateAccount(ctx, &core.Account{ID: "c1", FamilyID: "fam1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	commit := func(id string, cents int64, dir core.Direction, cat core.Category, at time.Time) {
		acct, _ := repo.GetAccount(ctx, "c1")
		if err := repo.CommitEntry(ctx, acct, &core.LedgerEntry{
			ID: id, AccountID: "c1", Amount: core.Money{Cents: cents},
			Direction: dir, Category: cat, CreatedAt: at,
		}); err != nil {
			t.Fatalf("commit %s: %v", id, err)
		}
	}

	commit("in-window", 500, core.Debit, core.CategoryToys, now.AddDate(0, 0, -2))
	commit("too-old", 900, core.Debit, core.CategoryToys, now.AddDate(0, 0, -10))
	commit("credit", 300, core.Credit, core.CategoryToys, now.AddDate(0, 0, -1))

	sum, err := repo.SumCategoryDebits(ctx, "c1", core.CategoryToys, now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum.Cents != 500 {
		t.Errorf("sum = %d, want 500", sum.Cents)
	}
}

func TestSQLiteRepository_BudgetUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, &core.Account{ID: "c1", FamilyID: "fam1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	budget := &core.CategoryBudget{
		AccountID: "c1", Category: core.CategoryToys,
		Limit: core.Money{Cents: 2000}, Period: core.PeriodWeekly,
		AlertThresholdPct: 80, EnforceLimit: true,
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.UpsertBudget(ctx, budget); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Second upsert replaces in place.
	budget.Limit = core.Money{Cents: 3000}
	budget.EnforceLimit = false
	if err := repo.UpsertBudget(ctx, budget); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	stored, err := repo.GetBudget(ctx, "c1", core.CategoryToys)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Limit.Cents != 3000 || stored.EnforceLimit {
		t.Errorf("stored = %+v", stored)
	}

	if err := repo.DeleteBudget(ctx, "c1", core.CategoryToys); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetBudget(ctx, "c1", core.CategoryToys); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted budget err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_TaskAndCompletionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, &core.Account{ID: "c1", FamilyID: "fam1"}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	task := &core.ChoreTask{
		ID: "t1", AccountID: "c1", FamilyID: "fam1",
		Title: "Dishes", Reward: core.Money{Cents: 200},
		Status: core.TaskActive, CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	completion := &core.TaskCompletion{
		ID: "comp1", TaskID: "t1", AccountID: "c1",
		CompletedAt: time.Now().UTC(), Status: core.CompletionPending,
	}
	if err := repo.CreateCompletion(ctx, completion); err != nil {
		t.Fatalf("create completion: %v", err)
	}

	pending, err := repo.ListPendingCompletions(ctx, "fam1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "comp1" {
		t.Fatalf("pending = %+v", pending)
	}

	completion.Status = core.CompletionApproved
	completion.Reviewer = "p1"
	completion.ReviewedAt = time.Now().UTC()
	completion.LedgerEntryID = "e1"
	if err := repo.UpdateCompletion(ctx, completion); err != nil {
		t.Fatalf("update completion: %v", err)
	}

	got, err := repo.GetCompletion(ctx, "comp1")
	if err != nil {
		t.Fatalf("get completion: %v", err)
	}
	if got.Status != core.CompletionApproved || got.LedgerEntryID != "e1" || got.Reviewer != "p1" {
		t.Errorf("completion = %+v", got)
	}

	// Approved completion leaves the pending queue.
	pending, _ = repo.ListPendingCompletions(ctx, "fam1")
	if len(pending) != 0 {
		t.Errorf("pending after approval = %+v", pending)
	}

	task.Status = core.TaskArchived
	task.ArchivedAt = time.Now().UTC()
	if err := repo.UpdateTask(ctx, task); err != nil {
		t.Fatalf("update task: %v", err)
	}
	storedTask, _ := repo.GetTask(ctx, "t1")
	if storedTask.Status != core.TaskArchived || storedTask.ArchivedAt.IsZero() {
		t.Errorf("task = %+v", storedTask)
	}
}

func TestSQLiteRepository_Adjustments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, &core.Account{ID: "c1", FamilyID: "fam1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	base := time.Now().UTC()
	for i, typ := range []core.AdjustmentType{core.AdjustmentPaused, core.AdjustmentResumed} {
		if err := repo.AppendAdjustment(ctx, &core.AllowanceAdjustment{
			ID: string(typ), AccountID: "c1", Type: typ,
			OldAmount: core.Money{Cents: 1000}, NewAmount: core.Money{Cents: 1000},
			Actor: "p1", CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	adjustments, err := repo.ListAdjustments(ctx, "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(adjustments) != 2 {
		t.Fatalf("count = %d, want 2", len(adjustments))
	}
	// Newest first
	if adjustments[0].Type != core.AdjustmentResumed || adjustments[1].Type != core.AdjustmentPaused {
		t.Errorf("order = %s, %s", adjustments[0].Type, adjustments[1].Type)
	}
}
