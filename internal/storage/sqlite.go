package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"paghetta/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.Account) error {
	if a.Version == 0 {
		a.Version = 1
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var weekday sql.NullInt64
	if a.AllowanceWeekday != nil {
		weekday = sql.NullInt64{Int64: int64(*a.AllowanceWeekday), Valid: true}
	}
	var lastPaid sql.NullTime
	if !a.LastAllowancePaidAt.IsZero() {
		lastPaid = sql.NullTime{Time: a.LastAllowancePaidAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, family_id, name, spending_cents, savings_cents,
			weekly_allowance_cents, allowance_weekday, last_allowance_paid_at,
			allowance_paused, allow_debt, savings_transfer_type,
			savings_transfer_value, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FamilyID, a.Name, a.SpendingBalance.Cents, a.SavingsBalance.Cents,
		a.WeeklyAllowance.Cents, weekday, lastPaid,
		a.AllowancePaused, a.AllowDebt, string(a.Savings.Type),
		a.Savings.Value, a.Version, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const accountColumns = `id, family_id, name, spending_cents, savings_cents,
	weekly_allowance_cents, allowance_weekday, last_allowance_paid_at,
	allowance_paused, allow_debt, savings_transfer_type,
	savings_transfer_value, version, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*core.Account, error) {
	var (
		a        core.Account
		weekday  sql.NullInt64
		lastPaid sql.NullTime
		policy   string
	)
	err := row.Scan(
		&a.ID, &a.FamilyID, &a.Name, &a.SpendingBalance.Cents, &a.SavingsBalance.Cents,
		&a.WeeklyAllowance.Cents, &weekday, &lastPaid,
		&a.AllowancePaused, &a.AllowDebt, &policy,
		&a.Savings.Value, &a.Version, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Savings.Type = core.SavingsTransferType(policy)
	if weekday.Valid {
		wd := time.Weekday(weekday.Int64)
		a.AllowanceWeekday = &wd
	}
	if lastPaid.Valid {
		a.LastAllowancePaidAt = lastPaid.Time
	}
	return &a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a *core.Account) error {
	res, err := r.updateAccountTx(ctx, r.db, a)
	if err != nil {
		return err
	}
	return r.checkAccountWrite(ctx, res, a)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) updateAccountTx(ctx context.Context, ex execer, a *core.Account) (sql.Result, error) {
	var weekday sql.NullInt64
	if a.AllowanceWeekday != nil {
		weekday = sql.NullInt64{Int64: int64(*a.AllowanceWeekday), Valid: true}
	}
	var lastPaid sql.NullTime
	if !a.LastAllowancePaidAt.IsZero() {
		lastPaid = sql.NullTime{Time: a.LastAllowancePaidAt, Valid: true}
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE accounts SET
			spending_cents = ?, savings_cents = ?, weekly_allowance_cents = ?,
			allowance_weekday = ?, last_allowance_paid_at = ?,
			allowance_paused = ?, allow_debt = ?,
			savings_transfer_type = ?, savings_transfer_value = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		a.SpendingBalance.Cents, a.SavingsBalance.Cents, a.WeeklyAllowance.Cents,
		weekday, lastPaid,
		a.AllowancePaused, a.AllowDebt,
		string(a.Savings.Type), a.Savings.Value,
		a.ID, a.Version)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return res, nil
}

// checkAccountWrite distinguishes a lost optimistic race from a missing row
// and advances the in-memory version on success.
func (r *SQLiteRepository) checkAccountWrite(ctx context.Context, res sql.Result, a *core.Account) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, a.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", a.ID, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		return fmt.Errorf("account %s: %w", a.ID, core.ErrVersionConflict)
	}
	a.Version++
	return nil
}

func (r *SQLiteRepository) ListPayableAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE allowance_paused = 0 AND weekly_allowance_cents > 0
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list payable accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// CommitEntry writes the account's balances and the entries in one SQLite
// transaction. The version check makes lost updates impossible: if another
// writer got in first the whole commit rolls back untouched.
func (r *SQLiteRepository) CommitEntry(ctx context.Context, a *core.Account, entries ...*core.LedgerEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := r.updateAccountTx(ctx, tx, a)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, a.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", a.ID, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		return fmt.Errorf("account %s: %w", a.ID, core.ErrVersionConflict)
	}

	for _, e := range entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (
				id, account_id, amount_cents, direction, category,
				description, balance_after_cents, actor, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.AccountID, e.Amount.Cents, string(e.Direction), string(e.Category),
			e.Description, e.BalanceAfter.Cents, e.Actor, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	a.Version++

	for _, e := range entries {
		slog.DebugContext(ctx, "ledger entry committed",
			"entry_id", e.ID,
			"account_id", e.AccountID,
			"direction", e.Direction,
			"amount_cents", e.Amount.Cents,
			"balance_after_cents", e.BalanceAfter.Cents)
	}
	return nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, accountID string, limit int) ([]core.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, amount_cents, direction, category,
			description, balance_after_cents, actor, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		var e core.LedgerEntry
		var direction, category string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount.Cents, &direction, &category,
			&e.Description, &e.BalanceAfter.Cents, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Direction = core.Direction(direction)
		e.Category = core.Category(category)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) SumCategoryDebits(ctx context.Context, accountID string, category core.Category, since time.Time) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries
		WHERE account_id = ? AND category = ? AND direction = 'debit' AND created_at >= ?`,
		accountID, string(category), since).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum category debits: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b *core.CategoryBudget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_budgets (
			account_id, category, limit_cents, period,
			alert_threshold_pct, enforce_limit, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, category) DO UPDATE SET
			limit_cents = excluded.limit_cents,
			period = excluded.period,
			alert_threshold_pct = excluded.alert_threshold_pct,
			enforce_limit = excluded.enforce_limit,
			updated_at = excluded.updated_at`,
		b.AccountID, string(b.Category), b.Limit.Cents, string(b.Period),
		b.AlertThresholdPct, b.EnforceLimit, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, accountID string, category core.Category) (*core.CategoryBudget, error) {
	var b core.CategoryBudget
	var cat, period string
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, category, limit_cents, period,
			alert_threshold_pct, enforce_limit, updated_at
		FROM category_budgets
		WHERE account_id = ? AND category = ?`,
		accountID, string(category)).Scan(
		&b.AccountID, &cat, &b.Limit.Cents, &period,
		&b.AlertThresholdPct, &b.EnforceLimit, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %s/%s: %w", accountID, category, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	b.Category = core.Category(cat)
	b.Period = core.BudgetPeriod(period)
	return &b, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, accountID string, category core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM category_budgets WHERE account_id = ? AND category = ?`,
		accountID, string(category))
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("budget %s/%s: %w", accountID, category, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) AppendAdjustment(ctx context.Context, adj *core.AllowanceAdjustment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO allowance_adjustments (
			id, account_id, type, old_amount_cents, new_amount_cents,
			reason, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		adj.ID, adj.AccountID, string(adj.Type), adj.OldAmount.Cents, adj.NewAmount.Cents,
		adj.Reason, adj.Actor, adj.CreatedAt)
	if err != nil {
		return fmt.Errorf("append adjustment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAdjustments(ctx context.Context, accountID string) ([]core.AllowanceAdjustment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, type, old_amount_cents, new_amount_cents,
			reason, actor, created_at
		FROM allowance_adjustments
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []core.AllowanceAdjustment
	for rows.Next() {
		var adj core.AllowanceAdjustment
		var typ string
		if err := rows.Scan(&adj.ID, &adj.AccountID, &typ, &adj.OldAmount.Cents,
			&adj.NewAmount.Cents, &adj.Reason, &adj.Actor, &adj.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		adj.Type = core.AdjustmentType(typ)
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, t *core.ChoreTask) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chore_tasks (
			id, account_id, family_id, title, reward_cents,
			status, recurrence_rule, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.FamilyID, t.Title, t.Reward.Cents,
		string(t.Status), t.RecurrenceRule, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func scanTask(row interface{ Scan(...any) error }) (*core.ChoreTask, error) {
	var (
		t          core.ChoreTask
		status     string
		archivedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.FamilyID, &t.Title, &t.Reward.Cents,
		&status, &t.RecurrenceRule, &t.CreatedAt, &archivedAt)
	if err != nil {
		return nil, err
	}
	t.Status = core.TaskStatus(status)
	if archivedAt.Valid {
		t.ArchivedAt = archivedAt.Time
	}
	return &t, nil
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (*core.ChoreTask, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, family_id, title, reward_cents,
			status, recurrence_rule, created_at, archived_at
		FROM chore_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, t *core.ChoreTask) error {
	var archivedAt sql.NullTime
	if !t.ArchivedAt.IsZero() {
		archivedAt = sql.NullTime{Time: t.ArchivedAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE chore_tasks SET title = ?, reward_cents = ?, status = ?,
			recurrence_rule = ?, archived_at = ?
		WHERE id = ?`,
		t.Title, t.Reward.Cents, string(t.Status), t.RecurrenceRule, archivedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListTasksByFamily(ctx context.Context, familyID string) ([]core.ChoreTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, family_id, title, reward_cents,
			status, recurrence_rule, created_at, archived_at
		FROM chore_tasks
		WHERE family_id = ?
		ORDER BY created_at DESC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.ChoreTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *SQLiteRepository) CreateCompletion(ctx context.Context, c *core.TaskCompletion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_completions (
			id, task_id, account_id, completed_at, status,
			reviewer, reviewed_at, rejection_reason, ledger_entry_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AccountID, c.CompletedAt, string(c.Status),
		c.Reviewer, nullTime(c.ReviewedAt), c.RejectionReason, nullString(c.LedgerEntryID))
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func scanCompletion(row interface{ Scan(...any) error }) (*core.TaskCompletion, error) {
	var (
		c          core.TaskCompletion
		status     string
		reviewedAt sql.NullTime
		entryID    sql.NullString
	)
	err := row.Scan(&c.ID, &c.TaskID, &c.AccountID, &c.CompletedAt, &status,
		&c.Reviewer, &reviewedAt, &c.RejectionReason, &entryID)
	if err != nil {
		return nil, err
	}
	c.Status = core.CompletionStatus(status)
	if reviewedAt.Valid {
		c.ReviewedAt = reviewedAt.Time
	}
	if entryID.Valid {
		c.LedgerEntryID = entryID.String
	}
	return &c, nil
}

func (r *SQLiteRepository) GetCompletion(ctx context.Context, id string) (*core.TaskCompletion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, account_id, completed_at, status,
			reviewer, reviewed_at, rejection_reason, ledger_entry_id
		FROM task_completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("completion %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCompletion(ctx context.Context, c *core.TaskCompletion) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_completions SET status = ?, reviewer = ?, reviewed_at = ?,
			rejection_reason = ?, ledger_entry_id = ?
		WHERE id = ?`,
		string(c.Status), c.Reviewer, nullTime(c.ReviewedAt),
		c.RejectionReason, nullString(c.LedgerEntryID), c.ID)
	if err != nil {
		return fmt.Errorf("update completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("completion %s: %w", c.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListPendingCompletions(ctx context.Context, familyID string) ([]core.TaskCompletion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.account_id, c.completed_at, c.status,
			c.reviewer, c.reviewed_at, c.rejection_reason, c.ledger_entry_id
		FROM task_completions c
		JOIN chore_tasks t ON t.id = c.task_id
		WHERE t.family_id = ? AND c.status = 'pending_approval'
		ORDER BY c.completed_at`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list pending completions: %w", err)
	}
	defer rows.Close()
	return collectCompletions(rows)
}

func (r *SQLiteRepository) ListCompletionsByAccount(ctx context.Context, accountID string) ([]core.TaskCompletion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, account_id, completed_at, status,
			reviewer, reviewed_at, rejection_reason, ledger_entry_id
		FROM task_completions
		WHERE account_id = ?
		ORDER BY completed_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()
	return collectCompletions(rows)
}

func collectCompletions(rows *sql.Rows) ([]core.TaskCompletion, error) {
	var completions []core.TaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Store = (*SQLiteRepository)(nil)
