package services

import (
	"context"
	"errors"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/ports"
)

func TestRecurringExpenseService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	actor := core.UserActor("u1", "admin@example.com")

	created, err := env.catalog.Create(ctx, core.RecurringExpense{
		Description:      "Renta local",
		Amount:           core.Money{Cents: 350000},
		IsActive:         false,
		GeneratedPeriods: []core.Period{core.NewPeriod(2020, 1)},
	}, actor)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created.IsActive {
		t.Error("new definitions start active")
	}
	if len(created.GeneratedPeriods) != 0 {
		t.Errorf("caller-supplied ledger kept: %v", created.GeneratedPeriods)
	}
	if created.CreatedBy != "user:u1" {
		t.Errorf("CreatedBy = %q", created.CreatedBy)
	}

	created.Description = "Renta bodega"
	created.Amount = core.Money{Cents: 400000}
	updated, err := env.catalog.Update(ctx, created, actor)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Description != "Renta bodega" || updated.Amount.Cents != 400000 {
		t.Errorf("updated = %q %d", updated.Description, updated.Amount.Cents)
	}

	list, err := env.catalog.List(ctx, ports.DefinitionFilter{Active: ports.Bool(true)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("active definitions = %d, want 1", len(list))
	}

	if err := env.catalog.Delete(ctx, created.ID, actor); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.catalog.Get(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestRecurringExpenseService_DeleteKeepsTransactions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	d := env.define(t, "Internet", 89900)

	if _, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor()); err != nil {
		t.Fatalf("GeneratePendingTransactions() error = %v", err)
	}
	if err := env.catalog.Delete(ctx, d.ID, core.SystemActor()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	txs, err := env.store.ListTransactions(ctx, ports.TransactionFilter{RecurringExpenseID: d.ID})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("generated rows after delete = %d, want 1", len(txs))
	}
}

func TestRecurringExpenseService_CreateValidation(t *testing.T) {
	env := newTestEnv(t, endOfOctober)
	tests := []struct {
		name string
		def  core.RecurringExpense
	}{
		{"empty description", core.RecurringExpense{Amount: core.Money{Cents: 1}}},
		{"zero amount", core.RecurringExpense{Description: "x"}},
		{"unknown division", core.RecurringExpense{Description: "x", Amount: core.Money{Cents: 1}, Division: "4ta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.Create(context.Background(), tt.def, core.SystemActor())
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}
