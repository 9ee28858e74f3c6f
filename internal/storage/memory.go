package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"paghetta/internal/core"
)

// MemoryStore is an in-memory Store used by tests and by the worker when no
// database file is configured. A single mutex serializes all writers, which
// gives CommitEntry the same all-or-nothing visibility as the SQLite
// transaction.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*core.Account
	entries     []core.LedgerEntry
	budgets     map[string]*core.CategoryBudget // key: accountID + "/" + category
	adjustments []core.AllowanceAdjustment
	tasks       map[string]*core.ChoreTask
	completions map[string]*core.TaskCompletion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*core.Account),
		budgets:     make(map[string]*core.CategoryBudget),
		tasks:       make(map[string]*core.ChoreTask),
		completions: make(map[string]*core.TaskCompletion),
	}
}

func (s *MemoryStore) Close() error { return nil }

func budgetKey(accountID string, category core.Category) string {
	return accountID + "/" + string(category)
}

func cloneAccount(a *core.Account) *core.Account {
	c := *a
	if a.AllowanceWeekday != nil {
		wd := *a.AllowanceWeekday
		c.AllowanceWeekday = &wd
	}
	return &c
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	if a.Version == 0 {
		a.Version = 1
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return cloneAccount(a), nil
}

func (s *MemoryStore) UpdateAccount(_ context.Context, a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAccountLocked(a)
}

func (s *MemoryStore) updateAccountLocked(a *core.Account) error {
	stored, ok := s.accounts[a.ID]
	if !ok {
		return fmt.Errorf("account %s: %w", a.ID, core.ErrNotFound)
	}
	if stored.Version != a.Version {
		return fmt.Errorf("account %s: %w", a.ID, core.ErrVersionConflict)
	}
	a.Version++
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *MemoryStore) ListPayableAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var accounts []core.Account
	for _, a := range s.accounts {
		if !a.AllowancePaused && a.WeeklyAllowance.Cents > 0 {
			accounts = append(accounts, *cloneAccount(a))
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (s *MemoryStore) CommitEntry(_ context.Context, a *core.Account, entries ...*core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateAccountLocked(a); err != nil {
		return err
	}
	for _, e := range entries {
		s.entries = append(s.entries, *e)
	}
	return nil
}

func (s *MemoryStore) ListEntries(_ context.Context, accountID string, limit int) ([]core.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var entries []core.LedgerEntry
	// Newest first
	for i := len(s.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.entries[i].AccountID == accountID {
			entries = append(entries, s.entries[i])
		}
	}
	return entries, nil
}

func (s *MemoryStore) SumCategoryDebits(_ context.Context, accountID string, category core.Category, since time.Time) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cents int64
	for _, e := range s.entries {
		if e.AccountID == accountID && e.Category == category &&
			e.Direction == core.Debit && !e.CreatedAt.Before(since) {
			cents += e.Amount.Cents
		}
	}
	return core.Money{Cents: cents}, nil
}

func (s *MemoryStore) UpsertBudget(_ context.Context, b *core.CategoryBudget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *b
	s.budgets[budgetKey(b.AccountID, b.Category)] = &clone
	return nil
}

func (s *MemoryStore) GetBudget(_ context.Context, accountID string, category core.Category) (*core.CategoryBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[budgetKey(accountID, category)]
	if !ok {
		return nil, fmt.Errorf("budget %s/%s: %w", accountID, category, core.ErrNotFound)
	}
	clone := *b
	return &clone, nil
}

func (s *MemoryStore) DeleteBudget(_ context.Context, accountID string, category core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := budgetKey(accountID, category)
	if _, ok := s.budgets[key]; !ok {
		return fmt.Errorf("budget %s/%s: %w", accountID, category, core.ErrNotFound)
	}
	delete(s.budgets, key)
	return nil
}

func (s *MemoryStore) AppendAdjustment(_ context.Context, adj *core.AllowanceAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustments = append(s.adjustments, *adj)
	return nil
}

func (s *MemoryStore) ListAdjustments(_ context.Context, accountID string) ([]core.AllowanceAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var adjustments []core.AllowanceAdjustment
	for i := len(s.adjustments) - 1; i >= 0; i-- {
		if s.adjustments[i].AccountID == accountID {
			adjustments = append(adjustments, s.adjustments[i])
		}
	}
	return adjustments, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t *core.ChoreTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *t
	s.tasks[t.ID] = &clone
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*core.ChoreTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	clone := *t
	return &clone, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, t *core.ChoreTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, core.ErrNotFound)
	}
	clone := *t
	s.tasks[t.ID] = &clone
	return nil
}

func (s *MemoryStore) ListTasksByFamily(_ context.Context, familyID string) ([]core.ChoreTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tasks []core.ChoreTask
	for _, t := range s.tasks {
		if t.FamilyID == familyID {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *MemoryStore) CreateCompletion(_ context.Context, c *core.TaskCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	s.completions[c.ID] = &clone
	return nil
}

func (s *MemoryStore) GetCompletion(_ context.Context, id string) (*core.TaskCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.completions[id]
	if !ok {
		return nil, fmt.Errorf("completion %s: %w", id, core.ErrNotFound)
	}
	clone := *c
	return &clone, nil
}

func (s *MemoryStore) UpdateCompletion(_ context.Context, c *core.TaskCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.completions[c.ID]; !ok {
		return fmt.Errorf("completion %s: %w", c.ID, core.ErrNotFound)
	}
	clone := *c
	s.completions[c.ID] = &clone
	return nil
}

func (s *MemoryStore) ListPendingCompletions(_ context.Context, familyID string) ([]core.TaskCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var completions []core.TaskCompletion
	for _, c := range s.completions {
		if c.Status != core.CompletionPending {
			continue
		}
		t, ok := s.tasks[c.TaskID]
		if !ok || t.FamilyID != familyID {
			continue
		}
		completions = append(completions, *c)
	}
	sort.Slice(completions, func(i, j int) bool {
		return completions[i].CompletedAt.Before(completions[j].CompletedAt)
	})
	return completions, nil
}

func (s *MemoryStore) ListCompletionsByAccount(_ context.Context, accountID string) ([]core.TaskCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var completions []core.TaskCompletion
	for _, c := range s.completions {
		if c.AccountID == accountID {
			completions = append(completions, *c)
		}
	}
	sort.Slice(completions, func(i, j int) bool {
		return completions[i].CompletedAt.After(completions[j].CompletedAt)
	})
	return completions, nil
}

var _ Store = (*MemoryStore)(nil)
