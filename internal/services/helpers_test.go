package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/storage/memory"
)

// Oct 31 2025 23:00, the moment the monthly cron usually fires.
var endOfOctober = time.Date(2025, time.October, 31, 23, 0, 0, 0, time.UTC)

type testEnv struct {
	clock     *core.FixedClock
	store     *memory.Store
	events    *recordingPublisher
	txs       *TransactionService
	generator *RecurringGenerator
	catalog   *RecurringExpenseService
	carryover *CarryoverCalculator
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	clock := core.NewFixedClock(now)
	store := memory.New(clock)
	events := &recordingPublisher{}
	txs := NewTransactionService(store, events, clock)
	return &testEnv{
		clock:     clock,
		store:     store,
		events:    events,
		txs:       txs,
		generator: NewRecurringGenerator(store, txs, nil, clock),
		catalog:   NewRecurringExpenseService(store),
		carryover: NewCarryoverCalculator(store, store, txs),
	}
}

func (e *testEnv) define(t *testing.T, description string, cents int64) core.RecurringExpense {
	t.Helper()
	d, err := e.catalog.Create(context.Background(), core.RecurringExpense{
		Description: description,
		Amount:      core.Money{Cents: cents},
		Division:    core.DivisionGeneral,
	}, core.UserActor("u1", "admin@example.com"))
	if err != nil {
		t.Fatalf("create definition %q: %v", description, err)
	}
	return d
}

func (e *testEnv) record(t *testing.T, typ core.TransactionType, status core.TransactionStatus, day core.Date, cents int64) core.Transaction {
	t.Helper()
	tx, err := e.txs.CreateTransaction(context.Background(), core.Transaction{
		Type:        typ,
		Description: "manual " + string(typ),
		Amount:      core.Money{Cents: cents},
		Date:        day,
		Status:      status,
	}, core.UserActor("u1", ""))
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, evt *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// flakyStore fails inserts whose description contains failOn.
type flakyStore struct {
	*memory.Store
	failOn string
}

var errBoom = errors.New("boom")

func (s *flakyStore) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if s.failOn != "" && strings.Contains(t.Description, s.failOn) {
		return core.Transaction{}, errBoom
	}
	return s.Store.InsertTransaction(ctx, t)
}

func (s *flakyStore) LoadActive(ctx context.Context) ([]core.RecurringExpense, error) {
	if s.failOn == "*" {
		return nil, errBoom
	}
	return s.Store.LoadActive(ctx)
}
