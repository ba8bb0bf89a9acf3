package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/ports"
)

func TestGeneratePendingTransactions_CreatesNextMonth(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	rent := env.define(t, "Renta local", 350000)
	internet := env.define(t, "Internet", 89900)

	created, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil {
		t.Fatalf("GeneratePendingTransactions() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %d, want 2", len(created))
	}

	november := core.NewPeriod(2025, 11)
	for _, tx := range created {
		if tx.Type != core.Expense || tx.Status != core.StatusPending {
			t.Errorf("%s: type/status = %s/%s", tx.Description, tx.Type, tx.Status)
		}
		if got := tx.Date.String(); got != "2025-11-01" {
			t.Errorf("%s: date = %s", tx.Description, got)
		}
		if !tx.IsRecurring || !strings.HasSuffix(tx.Description, core.RecurringSuffix) {
			t.Errorf("%s: not marked recurring", tx.Description)
		}
		if tx.Balance != tx.Amount {
			t.Errorf("%s: balance = %d, want %d", tx.Description, tx.Balance.Cents, tx.Amount.Cents)
		}
		if tx.CreatedBy != "system" {
			t.Errorf("%s: created by %q", tx.Description, tx.CreatedBy)
		}
	}

	for _, id := range []string{rent.ID, internet.ID} {
		d, err := env.store.GetDefinition(ctx, id)
		if err != nil {
			t.Fatalf("GetDefinition(%s) error = %v", id, err)
		}
		if !d.HasGenerated(november) {
			t.Errorf("%s: ledger lacks %s", d.Description, november)
		}
		if d.LastGenerated == nil || !d.LastGenerated.Equal(endOfOctober) {
			t.Errorf("%s: LastGenerated = %v", d.Description, d.LastGenerated)
		}
	}

	want := []amqp.EventKind{amqp.EventCreated, amqp.EventCreated}
	if got := env.events.kinds(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestGeneratePendingTransactions_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	env.define(t, "Renta local", 350000)

	first, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil || len(first) != 1 {
		t.Fatalf("first run = %d created, error %v", len(first), err)
	}

	second, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober.Add(time.Hour), core.SystemActor())
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run created %d", len(second))
	}

	all, err := env.store.ListTransactions(ctx, ports.TransactionFilter{RecurringOnly: true})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("recurring rows = %d, want 1", len(all))
	}
}

func TestGeneratePendingTransactions_SkipsInactive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	d := env.define(t, "Seguro", 120000)
	if err := env.store.SetDefinitionActive(ctx, d.ID, false, core.SystemActor()); err != nil {
		t.Fatalf("SetDefinitionActive() error = %v", err)
	}

	created, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil {
		t.Fatalf("GeneratePendingTransactions() error = %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created %d for an inactive definition", len(created))
	}
}

func TestGeneratePendingTransactions_DecemberRollsIntoJanuary(t *testing.T) {
	ctx := context.Background()
	asOf := time.Date(2025, time.December, 31, 22, 0, 0, 0, time.UTC)
	env := newTestEnv(t, asOf)
	d := env.define(t, "Contador", 250000)

	created, err := env.generator.GeneratePendingTransactions(ctx, asOf, core.SystemActor())
	if err != nil || len(created) != 1 {
		t.Fatalf("created = %d, error %v", len(created), err)
	}
	if got := created[0].Date.String(); got != "2026-01-01" {
		t.Errorf("date = %s, want 2026-01-01", got)
	}

	got, err := env.store.GetDefinition(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDefinition() error = %v", err)
	}
	if want := []core.Period{core.NewPeriod(2026, 1)}; !slices.Equal(got.GeneratedPeriods, want) {
		t.Errorf("ledger = %v, want %v", got.GeneratedPeriods, want)
	}
}

func TestGeneratePendingTransactions_CurrentMonthPolicy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	env.define(t, "Luz", 45000)
	gen := NewRecurringGenerator(env.store, env.txs, CurrentMonthPolicy{}, env.clock)

	created, err := gen.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil || len(created) != 1 {
		t.Fatalf("created = %d, error %v", len(created), err)
	}
	if got := created[0].Date.String(); got != "2025-10-01" {
		t.Errorf("date = %s, want 2025-10-01", got)
	}
}

func TestGeneratePendingTransactions_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	env.define(t, "Agua", 30000)
	broken := env.define(t, "Falla", 10000)

	flaky := &flakyStore{Store: env.store, failOn: "Falla"}
	txs := NewTransactionService(flaky, nil, env.clock)
	gen := NewRecurringGenerator(flaky, txs, nil, env.clock)

	created, err := gen.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil {
		t.Fatalf("GeneratePendingTransactions() error = %v", err)
	}
	if len(created) != 1 || created[0].Description != "Agua"+core.RecurringSuffix {
		t.Fatalf("created = %+v", created)
	}

	got, err := env.store.GetDefinition(ctx, broken.ID)
	if err != nil {
		t.Fatalf("GetDefinition() error = %v", err)
	}
	if len(got.GeneratedPeriods) != 0 {
		t.Errorf("failed definition marked generated: %v", got.GeneratedPeriods)
	}
}

func TestGeneratePendingTransactions_CatalogFailureAborts(t *testing.T) {
	env := newTestEnv(t, endOfOctober)
	flaky := &flakyStore{Store: env.store, failOn: "*"}
	gen := NewRecurringGenerator(flaky, env.txs, nil, env.clock)

	_, err := gen.GeneratePendingTransactions(context.Background(), endOfOctober, core.SystemActor())
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want %v", err, errBoom)
	}
}

func TestGeneratePendingTransactions_RepairsLedgerOnDuplicate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	d := env.define(t, "Renta local", 350000)

	// A row written by a concurrent run that never reached the ledger.
	_, err := env.store.InsertTransaction(ctx, core.Transaction{
		Type:               core.Expense,
		Description:        d.Description + core.RecurringSuffix,
		Amount:             d.Amount,
		Date:               core.NewDate(2025, 11, 1),
		Status:             core.StatusPending,
		IsRecurring:        true,
		RecurringExpenseID: d.ID,
	})
	if err != nil {
		t.Fatalf("InsertTransaction() error = %v", err)
	}

	created, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil {
		t.Fatalf("GeneratePendingTransactions() error = %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created %d over an existing row", len(created))
	}

	got, err := env.store.GetDefinition(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDefinition() error = %v", err)
	}
	if !got.HasGenerated(core.NewPeriod(2025, 11)) {
		t.Error("ledger not repaired")
	}
}

func TestToggleActive_DeactivateCleansAndReactivateRegenerates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	d := env.define(t, "Renta local", 350000)
	november := core.NewPeriod(2025, 11)
	user := core.UserActor("u1", "")

	if _, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor()); err != nil {
		t.Fatalf("GeneratePendingTransactions() error = %v", err)
	}

	active, err := env.generator.ToggleActive(ctx, d.ID, user)
	if err != nil || active {
		t.Fatalf("deactivate = %v, error %v", active, err)
	}

	left, err := env.store.ListTransactions(ctx, ports.TransactionFilter{RecurringExpenseID: d.ID})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(left) != 0 {
		t.Errorf("future rows left after deactivation: %d", len(left))
	}

	got, err := env.store.GetDefinition(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDefinition() error = %v", err)
	}
	if got.IsActive || got.HasGenerated(november) {
		t.Errorf("active = %v, ledger = %v", got.IsActive, got.GeneratedPeriods)
	}

	active, err = env.generator.ToggleActive(ctx, d.ID, user)
	if err != nil || !active {
		t.Fatalf("reactivate = %v, error %v", active, err)
	}

	created, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil || len(created) != 1 {
		t.Fatalf("regenerated = %d, error %v", len(created), err)
	}
	if created[0].Period() != november {
		t.Errorf("regenerated period = %s, want %s", created[0].Period(), november)
	}
}

func TestCleanFutureTransactions_KeepsCurrentMonth(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	d := env.define(t, "Renta local", 350000)

	current := NewRecurringGenerator(env.store, env.txs, CurrentMonthPolicy{}, env.clock)
	if _, err := current.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor()); err != nil {
		t.Fatalf("current month run error = %v", err)
	}
	if _, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor()); err != nil {
		t.Fatalf("next month run error = %v", err)
	}

	removed, err := env.generator.CleanFutureTransactions(ctx, d.ID, core.SystemActor())
	if err != nil {
		t.Fatalf("CleanFutureTransactions() error = %v", err)
	}
	if len(removed) != 1 || removed[0].Period() != core.NewPeriod(2025, 11) {
		t.Fatalf("removed = %+v", removed)
	}

	got, err := env.store.GetDefinition(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDefinition() error = %v", err)
	}
	if want := []core.Period{core.NewPeriod(2025, 10)}; !slices.Equal(got.GeneratedPeriods, want) {
		t.Errorf("ledger = %v, want %v", got.GeneratedPeriods, want)
	}
}

func TestToggleActive_UnknownID(t *testing.T) {
	env := newTestEnv(t, endOfOctober)
	_, err := env.generator.ToggleActive(context.Background(), "missing", core.SystemActor())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPendingDefinitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	done := env.define(t, "Renta local", 350000)
	open := env.define(t, "Internet", 89900)
	november := core.NewPeriod(2025, 11)
	if err := env.store.AppendGeneratedPeriod(ctx, done.ID, november, endOfOctober); err != nil {
		t.Fatalf("AppendGeneratedPeriod() error = %v", err)
	}

	pending, err := env.generator.PendingDefinitions(ctx, november)
	if err != nil {
		t.Fatalf("PendingDefinitions() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != open.ID {
		t.Errorf("pending = %+v, want only %s", pending, open.ID)
	}
}

func TestBackfillGeneratedPeriods(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, endOfOctober)
	ranAt := time.Date(2025, time.October, 31, 23, 0, 0, 0, time.UTC)

	// The legacy run on Oct 31 produced November's row, and an earlier one
	// produced October's.
	legacy, err := env.store.CreateDefinition(ctx, core.RecurringExpense{
		Description:   "Legacy",
		Amount:        core.Money{Cents: 1000},
		IsActive:      true,
		LastGenerated: &ranAt,
	})
	if err != nil {
		t.Fatalf("CreateDefinition() error = %v", err)
	}
	for _, day := range []core.Date{core.NewDate(2025, 11, 1), core.NewDate(2025, 10, 1)} {
		_, err := env.store.InsertTransaction(ctx, core.Transaction{
			Type:               core.Expense,
			Description:        "Legacy" + core.RecurringSuffix,
			Amount:             core.Money{Cents: 1000},
			Date:               day,
			Status:             core.StatusPending,
			IsRecurring:        true,
			RecurringExpenseID: legacy.ID,
		})
		if err != nil {
			t.Fatalf("InsertTransaction(%s) error = %v", day, err)
		}
	}

	// A stamp without any stored row has nothing to backfill.
	orphanStamp := ranAt
	orphan, err := env.store.CreateDefinition(ctx, core.RecurringExpense{
		Description:   "Sin filas",
		Amount:        core.Money{Cents: 500},
		IsActive:      true,
		LastGenerated: &orphanStamp,
	})
	if err != nil {
		t.Fatalf("CreateDefinition() error = %v", err)
	}
	env.define(t, "Nueva", 2000)

	n, err := env.generator.BackfillGeneratedPeriods(ctx)
	if err != nil {
		t.Fatalf("BackfillGeneratedPeriods() error = %v", err)
	}
	if n != 1 {
		t.Errorf("backfilled = %d, want 1", n)
	}

	got, err := env.store.GetDefinition(ctx, legacy.ID)
	if err != nil {
		t.Fatalf("GetDefinition() error = %v", err)
	}
	want := []core.Period{core.NewPeriod(2025, 10), core.NewPeriod(2025, 11)}
	if !slices.Equal(got.GeneratedPeriods, want) {
		t.Errorf("ledger = %v, want %v", got.GeneratedPeriods, want)
	}
	if got.LastGenerated == nil || !got.LastGenerated.Equal(ranAt) {
		t.Errorf("LastGenerated = %v, want %v", got.LastGenerated, ranAt)
	}

	// Every ledger period has a stored row and every stored row is in the ledger.
	rows, err := env.store.ListTransactions(ctx, ports.TransactionFilter{RecurringExpenseID: legacy.ID})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	for _, row := range rows {
		if !got.HasGenerated(row.Period()) {
			t.Errorf("row in %s missing from ledger", row.Period())
		}
	}
	if len(rows) != len(got.GeneratedPeriods) {
		t.Errorf("rows = %d, ledger periods = %d", len(rows), len(got.GeneratedPeriods))
	}

	o, err := env.store.GetDefinition(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("GetDefinition() error = %v", err)
	}
	if len(o.GeneratedPeriods) != 0 {
		t.Errorf("definition without rows got ledger %v", o.GeneratedPeriods)
	}

	// November is already covered, so generation leaves the legacy definition alone.
	created, err := env.generator.GeneratePendingTransactions(ctx, endOfOctober, core.SystemActor())
	if err != nil {
		t.Fatalf("GeneratePendingTransactions() error = %v", err)
	}
	for _, tx := range created {
		if tx.RecurringExpenseID == legacy.ID {
			t.Errorf("duplicate November row generated for legacy definition")
		}
	}

	n, err = env.generator.BackfillGeneratedPeriods(ctx)
	if err != nil {
		t.Fatalf("second BackfillGeneratedPeriods() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second backfill = %d, want 0", n)
	}
}
