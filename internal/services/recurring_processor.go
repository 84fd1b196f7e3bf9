package services

import (
	"context"
	"fmt"
	"time"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/schedule"
)

// RuleStore is the slice of the repository the processor needs.
type RuleStore interface {
	ListRules(ctx context.Context) ([]core.RecurrenceRule, error)
	MarkRuleExecuted(ctx context.Context, id string, executedAt time.Time) error
}

// Recorder records a generated transaction. TransactionService
// satisfies this.
type Recorder interface {
	RecordTransaction(ctx context.Context, tx core.Transaction, ruleID string) (string, error)
}

// RecurringProcessor materializes transactions from recurrence rules
// that have come due. One failing rule never blocks the others.
type RecurringProcessor struct {
	rules    RuleStore
	recorder Recorder
	logger   *log.Logger
}

func NewRecurringProcessor(rules RuleStore, recorder Recorder, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		rules:    rules,
		recorder: recorder,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// ProcessDueRules walks every active rule and records a transaction for
// each one due at now. Returns how many transactions were created.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, now time.Time) (int, error) {
	if p.rules == nil || p.recorder == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	rules, err := p.rules.ListRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurrence rules: %w", err)
	}

	p.logger.InfoContext(ctx, "processing recurrence rules",
		"total", len(rules),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, rule := range rules {
		if !schedule.IsActive(rule, now) {
			continue
		}

		due, err := schedule.IsDue(rule, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to evaluate rule dueness",
				log.FieldRuleID, rule.ID, log.FieldError, err)
			continue
		}
		if !due {
			continue
		}

		tx := core.Transaction{
			Type:        rule.Type,
			Amount:      rule.Amount,
			OccurredAt:  core.DayOf(now),
			CategoryID:  rule.CategoryID,
			Description: rule.Description,
		}

		txID, err := p.recorder.RecordTransaction(ctx, tx, rule.ID)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to record transaction from rule",
				log.FieldRuleID, rule.ID, log.FieldError, err)
			continue
		}

		if err := p.rules.MarkRuleExecuted(ctx, rule.ID, core.DayOf(now)); err != nil {
			// The transaction exists; only the counter lagged. The next
			// run may double-record, which is preferable to silently
			// losing the execution.
			p.logger.ErrorContext(ctx, "failed to mark rule executed",
				log.FieldRuleID, rule.ID, log.FieldError, err)
		}

		processed++
		p.logger.InfoContext(ctx, "created transaction from rule",
			log.FieldRuleID, rule.ID,
			log.FieldTransactionID, txID,
			log.FieldAmountCents, rule.Amount.Cents,
			log.FieldFrequency, string(rule.Frequency))
	}

	p.logger.InfoContext(ctx, "recurrence processing complete",
		"processed", processed,
		"total_checked", len(rules))

	return processed, nil
}
