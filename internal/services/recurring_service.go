package services

import (
	"context"
	"fmt"
	"log/slog"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// RecurringExpenseService manages the catalog of recurring definitions.
// Deleting a definition leaves its generated transactions in place.
type RecurringExpenseService struct {
	store ports.DefinitionStore
}

func NewRecurringExpenseService(store ports.DefinitionStore) *RecurringExpenseService {
	return &RecurringExpenseService{store: store}
}

// Create stores a new active definition with an empty ledger.
func (s *RecurringExpenseService) Create(ctx context.Context, d core.RecurringExpense, actor core.Actor) (core.RecurringExpense, error) {
	d.ID = ""
	d.IsActive = true
	d.GeneratedPeriods = nil
	d.LastGenerated = nil
	d.CreatedBy = actor.String()
	d.UpdatedBy = actor.String()

	if err := d.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}

	saved, err := s.store.CreateDefinition(ctx, d)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("create recurring expense: %w", err)
	}

	slog.InfoContext(ctx, "Recurring expense created",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldOperation, log.OpCreate,
		log.FieldDefinitionID, saved.ID,
		log.FieldDescription, saved.Description,
		log.FieldAmountCents, saved.Amount.Cents,
		log.FieldActor, actor.String())

	return saved, nil
}

func (s *RecurringExpenseService) Get(ctx context.Context, id string) (core.RecurringExpense, error) {
	return s.store.GetDefinition(ctx, id)
}

func (s *RecurringExpenseService) List(ctx context.Context, filter ports.DefinitionFilter) ([]core.RecurringExpense, error) {
	defs, err := s.store.ListDefinitions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return defs, nil
}

// Update replaces the editable fields. Activity and the ledger are changed
// only through the generator.
func (s *RecurringExpenseService) Update(ctx context.Context, d core.RecurringExpense, actor core.Actor) (core.RecurringExpense, error) {
	if err := d.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	d.UpdatedBy = actor.String()
	if err := s.store.UpdateDefinition(ctx, d); err != nil {
		return core.RecurringExpense{}, err
	}
	slog.InfoContext(ctx, "Recurring expense updated",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldOperation, log.OpUpdate,
		log.FieldDefinitionID, d.ID,
		log.FieldActor, actor.String())
	return s.store.GetDefinition(ctx, d.ID)
}

func (s *RecurringExpenseService) Delete(ctx context.Context, id string, actor core.Actor) error {
	if err := s.store.DeleteDefinition(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring expense deleted",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldOperation, log.OpDelete,
		log.FieldDefinitionID, id,
		log.FieldActor, actor.String())
	return nil
}
