// Package ports declares the repository interfaces the services depend on.
// The SQLite and in-memory stores both implement them.
package ports

import (
	"context"
	"io"
	"time"

	"finanzas/internal/core"
)

// Ports for outbound adapters.
type (
	DefinitionStore interface {
		CreateDefinition(ctx context.Context, d core.RecurringExpense) (core.RecurringExpense, error)
		// GetDefinition returns core.ErrNotFound for unknown ids.
		GetDefinition(ctx context.Context, id string) (core.RecurringExpense, error)
		ListDefinitions(ctx context.Context, filter DefinitionFilter) ([]core.RecurringExpense, error)
		// LoadActive returns every active definition with its ledger.
		LoadActive(ctx context.Context) ([]core.RecurringExpense, error)
		UpdateDefinition(ctx context.Context, d core.RecurringExpense) error
		SetDefinitionActive(ctx context.Context, id string, active bool, actor core.Actor) error
		DeleteDefinition(ctx context.Context, id string) error
		// AppendGeneratedPeriod adds p to the ledger and stamps LastGenerated
		// with at. Appending a period already present is a no-op.
		AppendGeneratedPeriod(ctx context.Context, id string, p core.Period, at time.Time) error
		RemoveGeneratedPeriods(ctx context.Context, id string, periods []core.Period) error
	}

	TransactionStore interface {
		// InsertTransaction assigns ID and timestamps when empty. A second
		// generated row for the same (definition, period) or a second carryover
		// income for the same source period yields core.ErrDuplicate.
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error)
		// SumByTypeAndPeriod totals amounts of type typ dated in p. When
		// statuses is non-empty only those statuses are counted.
		SumByTypeAndPeriod(ctx context.Context, typ core.TransactionType, p core.Period, statuses ...core.TransactionStatus) (core.Money, error)
		// DeleteTransactions removes every match and returns what was removed.
		DeleteTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error)
	}

	CarryoverStore interface {
		// GetCarryover returns core.ErrNotFound when the period has no record.
		GetCarryover(ctx context.Context, p core.Period) (core.CarryoverRecord, error)
		// SaveCarryover returns core.ErrDuplicate if a record for the same
		// period already exists.
		SaveCarryover(ctx context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error)
	}

	// Stores bundles the three repositories of one backend.
	Stores interface {
		DefinitionStore
		TransactionStore
		CarryoverStore
		io.Closer
	}
)

// DefinitionFilter narrows ListDefinitions. A nil Active lists everything.
type DefinitionFilter struct {
	Active *bool
}

// TransactionFilter narrows ListTransactions and DeleteTransactions. Zero
// fields do not filter.
type TransactionFilter struct {
	ID                 string
	Type               core.TransactionType
	Period             *core.Period
	From               time.Time // inclusive, compared by calendar day
	To                 time.Time // inclusive, compared by calendar day
	RecurringOnly      bool
	RecurringExpenseID string
	CarryoverSource    *core.Period
}

// Matches applies the filter to a single transaction. Stores that cannot
// push a condition down to their query use it.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if f.ID != "" && t.ID != f.ID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Period != nil && t.Period() != *f.Period {
		return false
	}
	if !f.From.IsZero() && t.Date.Time.Before(dayOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && t.Date.Time.After(dayOf(f.To)) {
		return false
	}
	if f.RecurringOnly && !t.IsRecurring {
		return false
	}
	if f.RecurringExpenseID != "" && t.RecurringExpenseID != f.RecurringExpenseID {
		return false
	}
	if f.CarryoverSource != nil && (!t.IsCarryover || t.CarryoverSource == nil || *t.CarryoverSource != *f.CarryoverSource) {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	return core.NewDate(t.Year(), int(t.Month()), t.Day()).Time
}

// Bool returns a pointer to b, for filters.
func Bool(b bool) *bool { return &b }
