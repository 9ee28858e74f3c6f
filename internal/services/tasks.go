package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paghetta/internal/core"
	"paghetta/internal/storage"
)

// TaskService runs the chore workflow: task lifecycle, the completion
// approval state machine and the payout it triggers.
//
// Task: Active -> Archived (one-way).
// Completion: PendingApproval -> Approved | Rejected (both terminal).
type TaskService struct {
	store    storage.Store
	ledger   *Ledger
	notifier Notifier
	now      func() time.Time
}

func NewTaskService(store storage.Store, ledger *Ledger, notifier Notifier) *TaskService {
	return &TaskService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateTask registers a chore for an account. Parent-only, same family.
func (s *TaskService) CreateTask(ctx context.Context, actor core.Actor, accountID, title string, reward core.Money, recurrenceRule string) (*core.ChoreTask, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !actor.IsParent() || !actor.SameFamily(acct) {
		return nil, fmt.Errorf("actor %s cannot create tasks for account %s: %w",
			actor.AccountID, accountID, core.ErrUnauthorized)
	}

	task := &core.ChoreTask{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		FamilyID:       acct.FamilyID,
		Title:          title,
		Reward:         reward,
		Status:         core.TaskActive,
		RecurrenceRule: recurrenceRule,
		CreatedAt:      s.now().UTC(),
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "task created",
		"task_id", task.ID,
		"account_id", accountID,
		"title", title,
		"reward_cents", reward.Cents,
		"actor", actor.AccountID)
	return task, nil
}

// CompleteTask records that the owning child finished the chore. The
// completion starts in PendingApproval and pays nothing until reviewed.
func (s *TaskService) CompleteTask(ctx context.Context, actor core.Actor, taskID string) (*core.TaskCompletion, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == core.TaskArchived {
		return nil, fmt.Errorf("task %s is archived: %w", taskID, core.ErrInvalidState)
	}
	if actor.AccountID != task.AccountID {
		return nil, fmt.Errorf("actor %s does not own task %s: %w",
			actor.AccountID, taskID, core.ErrUnauthorized)
	}

	completion := &core.TaskCompletion{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		AccountID:   task.AccountID,
		CompletedAt: s.now().UTC(),
		Status:      core.CompletionPending,
	}
	if err := s.store.CreateCompletion(ctx, completion); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "task completed, awaiting review",
		"completion_id", completion.ID,
		"task_id", taskID,
		"account_id", task.AccountID)
	return completion, nil
}

// ReviewCompletion resolves a pending completion exactly once. Approval
// issues the reward credit and links the entry onto the completion;
// rejection records the reason and moves no money.
func (s *TaskService) ReviewCompletion(ctx context.Context, actor core.Actor, completionID string, approve bool, reason string) (*core.TaskCompletion, error) {
	completion, err := s.store.GetCompletion(ctx, completionID)
	if err != nil {
		return nil, err
	}
	if completion.Status != core.CompletionPending {
		return nil, fmt.Errorf("completion %s already reviewed (%s): %w",
			completionID, completion.Status, core.ErrInvalidState)
	}

	task, err := s.store.GetTask(ctx, completion.TaskID)
	if err != nil {
		return nil, err
	}
	if !actor.IsParent() || actor.FamilyID != task.FamilyID {
		return nil, fmt.Errorf("actor %s cannot review completions for family %s: %w",
			actor.AccountID, task.FamilyID, core.ErrUnauthorized)
	}

	completion.Reviewer = actor.AccountID
	completion.ReviewedAt = s.now().UTC()

	if approve {
		entry, err := s.ledger.CreateTransaction(ctx, TransactionRequest{
			AccountID:   completion.AccountID,
			Amount:      task.Reward,
			Direction:   core.Credit,
			Category:    core.CategoryTask,
			Description: "Reward: " + task.Title,
			Actor:       actor,
		})
		if err != nil {
			return nil, fmt.Errorf("pay task reward: %w", err)
		}
		completion.Status = core.CompletionApproved
		completion.LedgerEntryID = entry.ID
	} else {
		completion.Status = core.CompletionRejected
		completion.RejectionReason = reason
	}

	if err := s.store.UpdateCompletion(ctx, completion); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "completion reviewed",
		"completion_id", completionID,
		"task_id", completion.TaskID,
		"status", completion.Status,
		"reviewer", actor.AccountID)

	if approve && s.notifier != nil {
		if err := s.notifier.RewardApproved(ctx, completion.AccountID, task.Title, task.Reward); err != nil {
			slog.ErrorContext(ctx, "failed to publish reward notification",
				"completion_id", completionID, "error", err)
		}
	}
	return completion, nil
}

// ArchiveTask retires a task. Existing completions are unaffected; archived
// is terminal.
func (s *TaskService) ArchiveTask(ctx context.Context, actor core.Actor, taskID string) (*core.ChoreTask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !actor.IsParent() || actor.FamilyID != task.FamilyID {
		return nil, fmt.Errorf("actor %s cannot archive tasks for family %s: %w",
			actor.AccountID, task.FamilyID, core.ErrUnauthorized)
	}
	if task.Status == core.TaskArchived {
		return nil, fmt.Errorf("task %s already archived: %w", taskID, core.ErrInvalidState)
	}

	task.Status = core.TaskArchived
	task.ArchivedAt = s.now().UTC()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "task archived", "task_id", taskID, "actor", actor.AccountID)
	return task, nil
}

// PendingApproval pairs a waiting completion with its task for review UIs.
type PendingApproval struct {
	Completion core.TaskCompletion
	Task       core.ChoreTask
}

// GetPendingApprovals lists the family's completions waiting for review,
// oldest first. Parent-only.
func (s *TaskService) GetPendingApprovals(ctx context.Context, actor core.Actor, familyID string) ([]PendingApproval, error) {
	if !actor.IsParent() || actor.FamilyID != familyID {
		return nil, fmt.Errorf("actor %s cannot review completions for family %s: %w",
			actor.AccountID, familyID, core.ErrUnauthorized)
	}

	completions, err := s.store.ListPendingCompletions(ctx, familyID)
	if err != nil {
		return nil, err
	}

	approvals := make([]PendingApproval, 0, len(completions))
	for _, c := range completions {
		task, err := s.store.GetTask(ctx, c.TaskID)
		if err != nil {
			return nil, fmt.Errorf("load task for completion %s: %w", c.ID, err)
		}
		approvals = append(approvals, PendingApproval{Completion: c, Task: *task})
	}
	return approvals, nil
}

// TaskStatistics aggregates an account's chore history.
type TaskStatistics struct {
	TotalTasks         int
	ActiveTasks        int
	ArchivedTasks      int
	PendingCompletions int
	Approved           int
	Rejected           int
	TotalRewardEarned  core.Money
}

// GetTaskStatistics computes read-only aggregates for one account. Readable
// by a parent of the family or by the account owner.
func (s *TaskService) GetTaskStatistics(ctx context.Context, actor core.Actor, accountID string) (*TaskStatistics, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if actor.AccountID != accountID && !(actor.IsParent() && actor.SameFamily(acct)) {
		return nil, fmt.Errorf("actor %s cannot read statistics for account %s: %w",
			actor.AccountID, accountID, core.ErrUnauthorized)
	}

	tasks, err := s.store.ListTasksByFamily(ctx, acct.FamilyID)
	if err != nil {
		return nil, err
	}

	stats := &TaskStatistics{}
	rewards := make(map[string]core.Money, len(tasks))
	for _, t := range tasks {
		if t.AccountID != accountID {
			continue
		}
		stats.TotalTasks++
		if t.Status == core.TaskArchived {
			stats.ArchivedTasks++
		} else {
			stats.ActiveTasks++
		}
		rewards[t.ID] = t.Reward
	}

	completions, err := s.store.ListCompletionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, c := range completions {
		switch c.Status {
		case core.CompletionPending:
			stats.PendingCompletions++
		case core.CompletionApproved:
			stats.Approved++
			stats.TotalRewardEarned = stats.TotalRewardEarned.Add(rewards[c.TaskID])
		case core.CompletionRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}
