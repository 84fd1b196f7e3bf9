package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"moneta/internal/core"
	"moneta/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), log.New(log.DefaultConfig()))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := core.Transaction{
		ID:          "t1",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 1234},
		OccurredAt:  time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC),
		Description: "lunch",
	}

	if err := repo.CreateTransaction(ctx, tx, ""); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Amount.Cents != 1234 || got.Type != core.Expense || got.Description != "lunch" {
		t.Errorf("GetTransaction = %+v, want original fields back", got)
	}
	if !got.OccurredAt.Equal(tx.OccurredAt) {
		t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, tx.OccurredAt)
	}
}

func TestListTransactions_RangeAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	days := []time.Time{
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, day := range days {
		tx := core.Transaction{
			ID:          string(rune('a' + i)),
			Type:        core.Income,
			Amount:      core.Money{Cents: 100},
			OccurredAt:  day,
			Description: "pay",
		}
		if err := repo.CreateTransaction(ctx, tx, ""); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	march, err := repo.ListTransactions(ctx,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(march) != 2 {
		t.Fatalf("got %d transactions in march, want 2", len(march))
	}
	if march[0].OccurredAt.After(march[1].OccurredAt) {
		t.Error("transactions not ordered by occurrence time ascending")
	}

	all, err := repo.ListTransactions(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListTransactions (unbounded): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d transactions unbounded, want 3", len(all))
	}
}

func TestDeleteTransaction_SoftDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := core.Transaction{
		ID:          "t1",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 500},
		OccurredAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "coffee",
	}
	if err := repo.CreateTransaction(ctx, tx, ""); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := repo.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTransaction after delete: err = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteTransaction(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteTransaction: err = %v, want ErrNotFound", err)
	}
}

func TestRuleLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := core.RecurrenceRule{
		ID:          "r1",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 90000},
		Frequency:   core.Monthly,
		DueDay:      1,
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "rent",
	}
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	got, err := repo.GetRule(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.Frequency != core.Monthly || got.DueDay != 1 || got.ExecutedCount != 0 {
		t.Errorf("GetRule = %+v, want monthly day-1 rule with no executions", got)
	}
	if !got.EndDate.IsZero() || !got.LastExecutedAt.IsZero() {
		t.Errorf("expected zero EndDate and LastExecutedAt, got %v, %v", got.EndDate, got.LastExecutedAt)
	}

	executedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.MarkRuleExecuted(ctx, "r1", executedAt); err != nil {
		t.Fatalf("MarkRuleExecuted: %v", err)
	}

	got, err = repo.GetRule(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRule after execution: %v", err)
	}
	if got.ExecutedCount != 1 {
		t.Errorf("ExecutedCount = %d, want 1", got.ExecutedCount)
	}
	if !got.LastExecutedAt.Equal(executedAt) {
		t.Errorf("LastExecutedAt = %v, want %v", got.LastExecutedAt, executedAt)
	}

	if err := repo.DeleteRule(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	rules, err := repo.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d rules after delete, want 0", len(rules))
	}
}

func TestGoalLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	goal := core.Goal{
		ID:           "g1",
		Name:         "vacation",
		TargetAmount: core.Money{Cents: 100000},
	}
	if err := repo.CreateGoal(ctx, goal); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	if err := repo.AddToGoal(ctx, "g1", 25000); err != nil {
		t.Fatalf("AddToGoal: %v", err)
	}
	if err := repo.AddToGoal(ctx, "g1", 25000); err != nil {
		t.Fatalf("AddToGoal: %v", err)
	}

	got, err := repo.GetGoal(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if got.SavedAmount.Cents != 50000 {
		t.Errorf("SavedAmount = %d, want 50000", got.SavedAmount.Cents)
	}
	if got.Progress() != 0.5 {
		t.Errorf("Progress() = %v, want 0.5", got.Progress())
	}

	if err := repo.DeleteGoal(ctx, "g1"); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}
	if _, err := repo.GetGoal(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGoal after delete: err = %v, want ErrNotFound", err)
	}
}

func TestSyncQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2"} {
		tx := core.Transaction{
			ID:          id,
			Type:        core.Expense,
			Amount:      core.Money{Cents: 100},
			OccurredAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Description: "coffee",
		}
		if err := repo.CreateTransaction(ctx, tx, ""); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	pending, err := repo.ListPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	if err := repo.MarkSynced(ctx, "t1"); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, "t2"); err != nil {
		t.Fatalf("MarkSyncError: %v", err)
	}

	pending, err = repo.ListPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after marking, want 0", len(pending))
	}
}

func TestCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, c := range []core.Category{
		{ID: "c2", Name: "groceries", Color: "#4caf50"},
		{ID: "c1", Name: "dining", Color: "#ff5722"},
	} {
		if err := repo.CreateCategory(ctx, c); err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
	}

	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2", len(cats))
	}
	if cats[0].Name != "dining" {
		t.Errorf("categories not ordered by name: first is %q", cats[0].Name)
	}
}
