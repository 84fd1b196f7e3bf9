package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/storage"
)

// SyncPublisher enqueues a transaction for export. The AMQP client
// satisfies this; a nil publisher disables export.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, transactionID string) error
	Close() error
}

// TransactionService orchestrates transaction writes across SQLite and
// the export queue. The local write is authoritative; a failed publish
// only delays the export.
type TransactionService struct {
	storage   *storage.SQLiteRepository
	publisher SyncPublisher
	logger    *log.Logger
}

func NewTransactionService(repo *storage.SQLiteRepository, publisher SyncPublisher, logger *log.Logger) *TransactionService {
	return &TransactionService{
		storage:   repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentApp),
	}
}

// RecordTransaction validates and saves a transaction, then publishes a
// sync message. ruleID is empty for manual entries. Returns the
// transaction ID, generated when the caller left it empty.
func (s *TransactionService) RecordTransaction(ctx context.Context, tx core.Transaction, ruleID string) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}

	if err := s.storage.CreateTransaction(ctx, tx, ruleID); err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishSync(ctx, tx.ID); err != nil {
		// The transaction is saved; the pending scan will pick it up.
		s.logger.ErrorContext(ctx, "failed to publish sync message",
			log.FieldTransactionID, tx.ID, log.FieldError, err)
	}

	return tx.ID, nil
}

// DeleteTransaction soft deletes a transaction.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *TransactionService) publishSync(ctx context.Context, id string) error {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "sync publisher not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishTransactionSync(ctx, id)
}

// Close closes both storage and the publisher.
func (s *TransactionService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}
	return nil
}
