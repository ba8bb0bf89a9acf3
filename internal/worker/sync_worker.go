package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

// TransactionReader is the slice of the transaction store the mirror needs.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
}

// SyncWorker mirrors ledger events into a spreadsheet.
type SyncWorker struct {
	transactions TransactionReader
	ledger       sheets.LedgerWriter
}

func NewSyncWorker(transactions TransactionReader, ledger sheets.LedgerWriter) *SyncWorker {
	return &SyncWorker{
		transactions: transactions,
		ledger:       ledger,
	}
}

// HandleTransactionEvent applies one event. Returning an error asks the
// consumer to requeue; events that can never succeed return nil.
func (w *SyncWorker) HandleTransactionEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		log.FieldComponent, log.ComponentWorker,
		log.FieldTransactionID, evt.TransactionID,
		"kind", evt.Kind,
		log.FieldPeriod, evt.PeriodKey)

	switch evt.Kind {
	case amqp.EventCreated:
		return w.mirrorCreated(ctx, evt)
	case amqp.EventDeleted:
		return w.mirrorDeleted(ctx, evt)
	default:
		slog.WarnContext(ctx, "Ignoring event of unknown kind",
			log.FieldTransactionID, evt.TransactionID, "kind", evt.Kind)
		return nil
	}
}

func (w *SyncWorker) mirrorCreated(ctx context.Context, evt *amqp.TransactionEvent) error {
	t, err := w.transactions.GetTransaction(ctx, evt.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the mirror caught up; its delete event follows.
		slog.WarnContext(ctx, "Transaction no longer exists, skipping mirror",
			log.FieldTransactionID, evt.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	ref, err := w.ledger.AppendTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully mirrored transaction",
		log.FieldComponent, log.ComponentSheets,
		log.FieldTransactionID, t.ID,
		"sheets_ref", ref,
		log.FieldDescription, t.Description,
		log.FieldAmountCents, t.Amount.Cents)
	return nil
}

func (w *SyncWorker) mirrorDeleted(ctx context.Context, evt *amqp.TransactionEvent) error {
	err := w.ledger.DeleteTransaction(ctx, evt.TransactionID)
	if errors.Is(err, sheets.ErrRowNotFound) {
		slog.WarnContext(ctx, "Mirrored row already gone",
			log.FieldTransactionID, evt.TransactionID)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete mirrored transaction",
			log.FieldTransactionID, evt.TransactionID,
			log.FieldError, err,
			"timestamp", evt.Timestamp)
		return fmt.Errorf("delete from sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully deleted mirrored transaction",
		log.FieldComponent, log.ComponentSheets,
		log.FieldTransactionID, evt.TransactionID)
	return nil
}
