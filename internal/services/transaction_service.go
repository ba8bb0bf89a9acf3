package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, evt *amqp.TransactionEvent) error
}

// TransactionService is the single write path for ledger rows. It saves
// to the store first and then announces the change; a failed publish
// never fails the write.
type TransactionService struct {
	store     ports.TransactionStore
	publisher EventPublisher
	clock     core.Clock
}

func NewTransactionService(store ports.TransactionStore, publisher EventPublisher, clock core.Clock) *TransactionService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &TransactionService{
		store:     store,
		publisher: publisher,
		clock:     clock,
	}
}

// DeleteResult reports a bulk delete.
type DeleteResult struct {
	TotalFound   int
	DeletedCount int
}

// CreateTransaction validates, fills defaults and stores t.
func (s *TransactionService) CreateTransaction(ctx context.Context, t core.Transaction, actor core.Actor) (core.Transaction, error) {
	if t.Status == "" {
		t.Status = core.StatusPending
		if t.Type == core.Income {
			t.Status = core.StatusPaid
		}
	}
	if t.Balance.Cents == 0 && t.TotalPaid.Cents == 0 {
		if t.Status == core.StatusPaid {
			t.TotalPaid = t.Amount
		} else {
			t.Balance = t.Amount
		}
	}
	t.CreatedBy = actor.String()
	t.UpdatedBy = actor.String()

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		log.NewFields().WithTransaction(saved).WithActor(actor).WithOperation(log.OpCreate).ToSlice()...)

	if err := s.publish(ctx, amqp.EventCreated, saved, actor); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, saved.ID, log.FieldError, err)
	}

	return saved, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// DeleteTransaction removes one transaction. Unknown ids yield
// core.ErrNotFound.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string, actor core.Actor) error {
	removed, err := s.DeleteMatching(ctx, ports.TransactionFilter{ID: id}, actor)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// DeleteMatching removes every transaction matching filter and publishes a
// delete event for each.
func (s *TransactionService) DeleteMatching(ctx context.Context, filter ports.TransactionFilter, actor core.Actor) ([]core.Transaction, error) {
	removed, err := s.store.DeleteTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("delete transactions: %w", err)
	}
	s.publishDeletes(ctx, removed, actor)
	return removed, nil
}

// DeleteTransactionsByMonth wipes a whole period. Administrative tool.
func (s *TransactionService) DeleteTransactionsByMonth(ctx context.Context, p core.Period, actor core.Actor) (DeleteResult, error) {
	if err := p.Validate(); err != nil {
		return DeleteResult{}, err
	}
	found, err := s.store.ListTransactions(ctx, ports.TransactionFilter{Period: &p})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("list transactions for %s: %w", p, err)
	}
	removed, err := s.DeleteMatching(ctx, ports.TransactionFilter{Period: &p}, actor)
	if err != nil {
		return DeleteResult{TotalFound: len(found)}, err
	}
	slog.WarnContext(ctx, "Deleted all transactions of period",
		log.FieldPeriod, p.Key(),
		log.FieldActor, actor.String(),
		log.FieldCount, len(removed))
	return DeleteResult{TotalFound: len(found), DeletedCount: len(removed)}, nil
}

func (s *TransactionService) publishDeletes(ctx context.Context, removed []core.Transaction, actor core.Actor) {
	for _, t := range removed {
		if err := s.publish(ctx, amqp.EventDeleted, t, actor); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete event",
				log.FieldTransactionID, t.ID, log.FieldError, err)
		}
	}
}

func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, t core.Transaction, actor core.Actor) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping transaction event", "kind", kind)
		return nil
	}
	return s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(kind, t, actor, s.clock.Now()))
}

// isDuplicate reports whether err is the storage idempotency signal.
func isDuplicate(err error) bool {
	return errors.Is(err, core.ErrDuplicate)
}
