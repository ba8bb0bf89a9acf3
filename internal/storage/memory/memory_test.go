package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/ports"
)

var testNow = time.Date(2025, 10, 31, 23, 0, 0, 0, time.UTC)

func TestDefinitionLedger(t *testing.T) {
	ctx := context.Background()
	s := New(core.NewFixedClock(testNow))

	d, err := s.CreateDefinition(ctx, core.RecurringExpense{Description: "Renta", Amount: core.Money{Cents: 350000}, IsActive: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ID == "" || !d.CreatedAt.Equal(testNow) {
		t.Fatalf("expected id and clock timestamps, got %+v", d)
	}

	p := core.NewPeriod(2025, 11)
	for i := 0; i < 2; i++ {
		if err := s.AppendGeneratedPeriod(ctx, d.ID, p, testNow); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, _ := s.GetDefinition(ctx, d.ID)
	if len(got.GeneratedPeriods) != 1 || got.LastGenerated == nil {
		t.Fatalf("expected one ledger entry, got %+v", got)
	}

	if err := s.RemoveGeneratedPeriods(ctx, d.ID, []core.Period{p}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ = s.GetDefinition(ctx, d.ID)
	if got.HasGenerated(p) {
		t.Fatalf("period should have been removed")
	}

	if _, err := s.GetDefinition(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadActiveFilters(t *testing.T) {
	ctx := context.Background()
	s := New(core.NewFixedClock(testNow))
	active, _ := s.CreateDefinition(ctx, core.RecurringExpense{Description: "A", Amount: core.Money{Cents: 1}, IsActive: true})
	_, _ = s.CreateDefinition(ctx, core.RecurringExpense{Description: "B", Amount: core.Money{Cents: 1}})

	defs, err := s.LoadActive(ctx)
	if err != nil || len(defs) != 1 || defs[0].ID != active.ID {
		t.Fatalf("LoadActive = %v, %v", defs, err)
	}
	all, _ := s.ListDefinitions(ctx, ports.DefinitionFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(all))
	}
}

func TestInsertTransactionUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New(core.NewFixedClock(testNow))

	gen := core.Transaction{
		Type: core.Expense, Description: "Renta (Recurrente)", Amount: core.Money{Cents: 350000},
		Date: core.NewDate(2025, 11, 1), Status: core.StatusPending,
		IsRecurring: true, RecurringExpenseID: "def-1",
	}
	if _, err := s.InsertTransaction(ctx, gen); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.InsertTransaction(ctx, gen); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("second insert for same period: want ErrDuplicate, got %v", err)
	}
	gen.Date = core.NewDate(2025, 12, 1)
	if _, err := s.InsertTransaction(ctx, gen); err != nil {
		t.Fatalf("next period insert: %v", err)
	}

	src := core.NewPeriod(2025, 10)
	carry := core.Transaction{
		Type: core.Income, Description: "Saldo arrastrado de 10/2025", Amount: core.Money{Cents: 400000},
		Date: core.NewDate(2025, 11, 1), Status: core.StatusPaid, IsCarryover: true, CarryoverSource: &src,
	}
	if _, err := s.InsertTransaction(ctx, carry); err != nil {
		t.Fatalf("carryover insert: %v", err)
	}
	if _, err := s.InsertTransaction(ctx, carry); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("second carryover: want ErrDuplicate, got %v", err)
	}
}

func TestSumAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New(core.NewFixedClock(testNow))
	oct := core.NewPeriod(2025, 10)
	rows := []core.Transaction{
		{Type: core.Income, Amount: core.Money{Cents: 1000000}, Date: core.NewDate(2025, 10, 2), Status: core.StatusPaid},
		{Type: core.Expense, Amount: core.Money{Cents: 600000}, Date: core.NewDate(2025, 10, 3), Status: core.StatusPaid},
		{Type: core.Expense, Amount: core.Money{Cents: 200000}, Date: core.NewDate(2025, 10, 4), Status: core.StatusPending},
		{Type: core.Expense, Amount: core.Money{Cents: 50000}, Date: core.NewDate(2025, 11, 1), Status: core.StatusPaid},
	}
	for _, r := range rows {
		r.Description = "x"
		if _, err := s.InsertTransaction(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	paid, _ := s.SumByTypeAndPeriod(ctx, core.Expense, oct, core.StatusPaid)
	if paid.Cents != 600000 {
		t.Fatalf("paid expenses = %d, want 600000", paid.Cents)
	}
	all, _ := s.SumByTypeAndPeriod(ctx, core.Expense, oct)
	if all.Cents != 800000 {
		t.Fatalf("all expenses = %d, want 800000", all.Cents)
	}

	removed, err := s.DeleteTransactions(ctx, ports.TransactionFilter{Period: &oct})
	if err != nil || len(removed) != 3 {
		t.Fatalf("DeleteTransactions = %d, %v", len(removed), err)
	}
	left, _ := s.ListTransactions(ctx, ports.TransactionFilter{})
	if len(left) != 1 || left[0].Period() != core.NewPeriod(2025, 11) {
		t.Fatalf("unexpected remaining rows %+v", left)
	}
}

func TestCarryoverOncePerPeriod(t *testing.T) {
	ctx := context.Background()
	s := New(core.NewFixedClock(testNow))
	rec := core.CarryoverRecord{Year: 2025, Month: time.November, SaldoArrastre: core.Money{Cents: 400000}, PreviousYear: 2025, PreviousMonth: time.October}

	if _, err := s.GetCarryover(ctx, rec.Period()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}
	saved, err := s.SaveCarryover(ctx, rec)
	if err != nil || !saved.CreatedAt.Equal(testNow) {
		t.Fatalf("save: %+v %v", saved, err)
	}
	if _, err := s.SaveCarryover(ctx, rec); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("second save: want ErrDuplicate, got %v", err)
	}
}
