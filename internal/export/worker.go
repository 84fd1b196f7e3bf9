package export

import (
	"context"
	"fmt"

	"moneta/internal/amqp"
	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/storage"
)

// Store is the slice of the repository the export worker needs.
type Store interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListPendingSync(ctx context.Context, limit int) ([]storage.PendingTransaction, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker pushes recorded transactions to Google Sheets. It is
// driven by AMQP messages, with a periodic pending scan as backup for
// lost deliveries.
type SyncWorker struct {
	store     Store
	appender  Appender
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store Store, appender Appender, batchSize int, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentExport),
	}
}

// HandleSyncMessage exports the transaction named by one AMQP message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	tx, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	return w.syncTransaction(ctx, tx)
}

// ProcessPending exports transactions still waiting in the queue.
// Failures are marked and skipped so one bad row cannot stall the rest.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListPendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "processing pending transactions", "count", len(pending))

	for _, p := range pending {
		tx, err := w.store.GetTransaction(ctx, p.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "failed to load pending transaction",
				log.FieldTransactionID, p.ID, log.FieldError, err)
			if markErr := w.store.MarkSyncError(ctx, p.ID); markErr != nil {
				w.logger.ErrorContext(ctx, "failed to mark sync error",
					log.FieldTransactionID, p.ID, log.FieldError, markErr)
			}
			continue
		}

		if err := w.syncTransaction(ctx, tx); err != nil {
			w.logger.ErrorContext(ctx, "failed to sync transaction",
				log.FieldTransactionID, tx.ID, log.FieldError, err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains a larger pending backlog once at worker
// startup to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.ListPendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "no pending transactions found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "found pending transactions on startup", "count", len(pending))

	synced, failed := 0, 0
	for _, p := range pending {
		tx, err := w.store.GetTransaction(ctx, p.ID)
		if err != nil {
			if markErr := w.store.MarkSyncError(ctx, p.ID); markErr != nil {
				w.logger.ErrorContext(ctx, "failed to mark sync error",
					log.FieldTransactionID, p.ID, log.FieldError, markErr)
			}
			failed++
			continue
		}
		if err := w.syncTransaction(ctx, tx); err != nil {
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "startup sync completed",
		"total", len(pending), "synced", synced, "errors", failed)
	return nil
}

func (w *SyncWorker) syncTransaction(ctx context.Context, tx core.Transaction) error {
	categoryName, err := w.categoryName(ctx, tx.CategoryID)
	if err != nil {
		w.logger.WarnContext(ctx, "could not resolve category name",
			log.FieldCategoryID, tx.CategoryID, log.FieldError, err)
	}

	ref, err := w.appender.Append(ctx, tx, categoryName)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, tx.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark sync error",
				log.FieldTransactionID, tx.ID, log.FieldError, markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.store.MarkSynced(ctx, tx.ID); err != nil {
		// The row made it to the sheet; only the bookkeeping failed.
		w.logger.ErrorContext(ctx, "failed to mark as synced",
			log.FieldTransactionID, tx.ID, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "synced transaction",
		log.FieldTransactionID, tx.ID,
		"sheets_ref", ref,
		log.FieldAmountCents, tx.Amount.Cents)
	return nil
}

func (w *SyncWorker) categoryName(ctx context.Context, categoryID string) (string, error) {
	if categoryID == "" {
		return "", nil
	}
	cats, err := w.store.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if c.ID == categoryID {
			return c.Name, nil
		}
	}
	return categoryID, nil
}
