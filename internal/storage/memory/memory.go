// Package memory is an in-process implementation of the repository ports,
// used by tests and by DATA_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"finanzas/internal/core"
	"finanzas/internal/ports"
)

type Store struct {
	mu        sync.Mutex
	clock     core.Clock
	defs      map[string]core.RecurringExpense
	txs       map[string]core.Transaction
	carryover map[core.Period]core.CarryoverRecord
}

var _ ports.Stores = (*Store)(nil)

func New(clock core.Clock) *Store {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Store{
		clock:     clock,
		defs:      map[string]core.RecurringExpense{},
		txs:       map[string]core.Transaction{},
		carryover: map[core.Period]core.CarryoverRecord{},
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateDefinition(_ context.Context, d core.RecurringExpense) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if _, ok := s.defs[d.ID]; ok {
		return core.RecurringExpense{}, fmt.Errorf("definition %s: %w", d.ID, core.ErrDuplicate)
	}
	now := s.clock.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	s.defs[d.ID] = cloneDefinition(d)
	return cloneDefinition(d), nil
}

func (s *Store) GetDefinition(_ context.Context, id string) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[id]
	if !ok {
		return core.RecurringExpense{}, fmt.Errorf("definition %s: %w", id, core.ErrNotFound)
	}
	return cloneDefinition(d), nil
}

// ListDefinitions orders by creation time, newest first.
func (s *Store) ListDefinitions(_ context.Context, filter ports.DefinitionFilter) ([]core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringExpense, 0, len(s.defs))
	for _, d := range s.defs {
		if filter.Active != nil && d.IsActive != *filter.Active {
			continue
		}
		out = append(out, cloneDefinition(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) LoadActive(ctx context.Context) ([]core.RecurringExpense, error) {
	return s.ListDefinitions(ctx, ports.DefinitionFilter{Active: ports.Bool(true)})
}

func (s *Store) UpdateDefinition(_ context.Context, d core.RecurringExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.defs[d.ID]
	if !ok {
		return fmt.Errorf("definition %s: %w", d.ID, core.ErrNotFound)
	}
	cur.Description = d.Description
	cur.Amount = d.Amount
	cur.GeneralID = d.GeneralID
	cur.ConceptID = d.ConceptID
	cur.SubconceptID = d.SubconceptID
	cur.ProviderID = d.ProviderID
	cur.Division = d.Division
	cur.UpdatedBy = d.UpdatedBy
	cur.UpdatedAt = s.clock.Now()
	s.defs[d.ID] = cur
	return nil
}

func (s *Store) SetDefinitionActive(_ context.Context, id string, active bool, actor core.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("definition %s: %w", id, core.ErrNotFound)
	}
	cur.IsActive = active
	cur.UpdatedBy = actor.String()
	cur.UpdatedAt = s.clock.Now()
	s.defs[id] = cur
	return nil
}

func (s *Store) DeleteDefinition(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[id]; !ok {
		return fmt.Errorf("definition %s: %w", id, core.ErrNotFound)
	}
	delete(s.defs, id)
	return nil
}

func (s *Store) AppendGeneratedPeriod(_ context.Context, id string, p core.Period, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("definition %s: %w", id, core.ErrNotFound)
	}
	if !cur.HasGenerated(p) {
		cur.GeneratedPeriods = append(cur.GeneratedPeriods, p)
	}
	cur.LastGenerated = &at
	cur.UpdatedAt = s.clock.Now()
	s.defs[id] = cur
	return nil
}

func (s *Store) RemoveGeneratedPeriods(_ context.Context, id string, periods []core.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("definition %s: %w", id, core.ErrNotFound)
	}
	drop := make(map[core.Period]struct{}, len(periods))
	for _, p := range periods {
		drop[p] = struct{}{}
	}
	kept := cur.GeneratedPeriods[:0:0]
	for _, p := range cur.GeneratedPeriods {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	cur.GeneratedPeriods = kept
	cur.UpdatedAt = s.clock.Now()
	s.defs[id] = cur
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, ok := s.txs[t.ID]; ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrDuplicate)
	}
	// Same uniqueness rules as the SQLite partial indexes.
	for _, existing := range s.txs {
		if t.RecurringExpenseID != "" && existing.RecurringExpenseID == t.RecurringExpenseID && existing.Period() == t.Period() {
			return core.Transaction{}, fmt.Errorf("recurring %s period %s: %w", t.RecurringExpenseID, t.Period(), core.ErrDuplicate)
		}
		if t.CarryoverSource != nil && existing.CarryoverSource != nil && *existing.CarryoverSource == *t.CarryoverSource {
			return core.Transaction{}, fmt.Errorf("carryover from %s: %w", t.CarryoverSource, core.ErrDuplicate)
		}
	}
	now := s.clock.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.txs[t.ID] = cloneTransaction(t)
	return cloneTransaction(t), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return cloneTransaction(t), nil
}

// ListTransactions orders by date, then creation time.
func (s *Store) ListTransactions(_ context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matching(filter), nil
}

func (s *Store) SumByTypeAndPeriod(_ context.Context, typ core.TransactionType, p core.Period, statuses ...core.TransactionStatus) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, t := range s.matching(ports.TransactionFilter{Type: typ, Period: &p}) {
		if len(statuses) > 0 && !containsStatus(statuses, t.Status) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total, nil
}

func (s *Store) DeleteTransactions(_ context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.matching(filter)
	for _, t := range removed {
		delete(s.txs, t.ID)
	}
	return removed, nil
}

func (s *Store) GetCarryover(_ context.Context, p core.Period) (core.CarryoverRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.carryover[p]
	if !ok {
		return core.CarryoverRecord{}, fmt.Errorf("carryover %s: %w", p, core.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) SaveCarryover(_ context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carryover[rec.Period()]; ok {
		return core.CarryoverRecord{}, fmt.Errorf("carryover %s: %w", rec.Period(), core.ErrDuplicate)
	}
	rec.CreatedAt = s.clock.Now()
	s.carryover[rec.Period()] = rec
	return rec, nil
}

// matching must be called with s.mu held.
func (s *Store) matching(filter ports.TransactionFilter) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.txs {
		if filter.Matches(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func containsStatus(in []core.TransactionStatus, s core.TransactionStatus) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}

func cloneDefinition(d core.RecurringExpense) core.RecurringExpense {
	d.GeneratedPeriods = append([]core.Period(nil), d.GeneratedPeriods...)
	if d.LastGenerated != nil {
		lg := *d.LastGenerated
		d.LastGenerated = &lg
	}
	return d
}

func cloneTransaction(t core.Transaction) core.Transaction {
	if t.CarryoverSource != nil {
		src := *t.CarryoverSource
		t.CarryoverSource = &src
	}
	return t
}
