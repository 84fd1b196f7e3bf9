package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"moneta/internal/core"
	"moneta/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or was soft deleted.
var ErrNotFound = errors.New("not found")

// Sync states for the Google Sheets export queue.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// PendingTransaction is the minimal row the export worker needs to
// queue a transaction for syncing.
type PendingTransaction struct {
	ID        string
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
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

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction inserts a transaction. ruleID is empty for manual
// entries and carries the originating rule for generated ones.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction, ruleID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, amount_cents, occurred_at, category_id, description, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.Type), tx.Amount.Cents, tx.OccurredAt.UTC(),
		nullString(tx.CategoryID), tx.Description, nullString(ruleID))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "transaction saved",
		log.FieldTransactionID, tx.ID,
		log.FieldAmountCents, tx.Amount.Cents,
		"type", string(tx.Type))
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, amount_cents, occurred_at, category_id, description
		FROM transactions
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanTransaction(row)
}

// ListTransactions returns non-deleted transactions ordered by
// occurrence time ascending. Zero from/to bounds are open.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	query := `
		SELECT id, type, amount_cents, occurred_at, category_id, description
		FROM transactions
		WHERE deleted_at IS NULL`
	var args []any
	if !from.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += " AND occurred_at < ?"
		args = append(args, to.UTC())
	}
	query += " ORDER BY occurred_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// DeleteTransaction soft deletes a transaction.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, color) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.Color)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, color FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurrenceRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules
			(id, type, amount_cents, frequency, due_day, due_weekday,
			 start_date, end_date, max_occurrences, executed_count,
			 last_executed_at, category_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, string(rule.Type), rule.Amount.Cents, string(rule.Frequency),
		rule.DueDay, int(rule.DueWeekday), rule.StartDate.UTC(),
		nullTime(rule.EndDate), rule.MaxOccurrences, rule.ExecutedCount,
		nullTime(rule.LastExecutedAt), nullString(rule.CategoryID), rule.Description)
	if err != nil {
		return fmt.Errorf("insert recurring rule: %w", err)
	}

	r.logger.InfoContext(ctx, "recurring rule saved",
		log.FieldRuleID, rule.ID,
		log.FieldFrequency, string(rule.Frequency))
	return nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (core.RecurrenceRule, error) {
	row := r.db.QueryRowContext(ctx, ruleSelect+` WHERE id = ? AND deleted_at IS NULL`, id)
	return scanRule(row)
}

// ListRules returns all non-deleted rules ordered by creation.
func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.RecurrenceRule, error) {
	rows, err := r.db.QueryContext(ctx, ruleSelect+` WHERE deleted_at IS NULL ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// MarkRuleExecuted advances a rule's execution counter after its
// transaction has been recorded.
func (r *SQLiteRepository) MarkRuleExecuted(ctx context.Context, id string, executedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET executed_count = executed_count + 1, last_executed_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		executedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark rule executed: %w", err)
	}
	return requireAffected(res)
}

// DeleteRule soft deletes a rule. Transactions it generated remain.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, name, target_cents, saved_cents, deadline)
		VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.TargetAmount.Cents, g.SavedAmount.Cents, nullTime(g.Deadline))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, target_cents, saved_cents, deadline
		FROM goals
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, target_cents, saved_cents, deadline
		FROM goals
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanGoal(row)
}

// AddToGoal increases a goal's saved amount by cents.
func (r *SQLiteRepository) AddToGoal(ctx context.Context, id string, cents int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE goals SET saved_cents = saved_cents + ?
		WHERE id = ? AND deleted_at IS NULL`,
		cents, id)
	if err != nil {
		return fmt.Errorf("add to goal: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE goals SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireAffected(res)
}

// ListPendingSync returns transactions waiting for export, oldest first.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]PendingTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at FROM transactions
		WHERE sync_status = ? AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var pending []PendingTransaction
	for rows.Next() {
		var p PendingTransaction
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced records a successful export of a transaction.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = ?, synced_at = CURRENT_TIMESTAMP
		WHERE id = ?`, SyncDone, id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return requireAffected(res)
}

// MarkSyncError flags a transaction whose export failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = ?
		WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	return requireAffected(res)
}

const ruleSelect = `
	SELECT id, type, amount_cents, frequency, due_day, due_weekday,
	       start_date, end_date, max_occurrences, executed_count,
	       last_executed_at, category_id, description
	FROM recurring_rules`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx       core.Transaction
		txType   string
		category sql.NullString
	)
	err := s.Scan(&tx.ID, &txType, &tx.Amount.Cents, &tx.OccurredAt, &category, &tx.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Type = core.TransactionType(txType)
	tx.CategoryID = category.String
	tx.OccurredAt = tx.OccurredAt.UTC()
	return tx, nil
}

func scanRule(s scanner) (core.RecurrenceRule, error) {
	var (
		rule       core.RecurrenceRule
		ruleType   string
		frequency  string
		dueWeekday int
		endDate    sql.NullTime
		lastExec   sql.NullTime
		category   sql.NullString
	)
	err := s.Scan(&rule.ID, &ruleType, &rule.Amount.Cents, &frequency,
		&rule.DueDay, &dueWeekday, &rule.StartDate, &endDate,
		&rule.MaxOccurrences, &rule.ExecutedCount, &lastExec,
		&category, &rule.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurrenceRule{}, ErrNotFound
	}
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("scan recurring rule: %w", err)
	}
	rule.Type = core.TransactionType(ruleType)
	rule.Frequency = core.Frequency(frequency)
	rule.DueWeekday = time.Weekday(dueWeekday)
	rule.StartDate = rule.StartDate.UTC()
	if endDate.Valid {
		rule.EndDate = endDate.Time.UTC()
	}
	if lastExec.Valid {
		rule.LastExecutedAt = lastExec.Time.UTC()
	}
	rule.CategoryID = category.String
	return rule, nil
}

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g        core.Goal
		deadline sql.NullTime
	)
	err := s.Scan(&g.ID, &g.Name, &g.TargetAmount.Cents, &g.SavedAmount.Cents, &deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("scan goal: %w", err)
	}
	if deadline.Valid {
		g.Deadline = deadline.Time.UTC()
	}
	return g, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
