package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-11-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != NewDate(2025, 11, 1) {
		t.Fatalf("got %v", d)
	}
	if _, err := ParseDate("01/11/2025"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	good := RecurringExpense{Description: "Renta oficina", Amount: Money{Cents: 350000}, Division: DivisionGeneral}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []RecurringExpense{
		{Description: "", Amount: Money{Cents: 1}},
		{Description: "   ", Amount: Money{Cents: 1}},
		{Description: strings.Repeat("a", 201), Amount: Money{Cents: 1}},
		{Description: "a", Amount: Money{Cents: 0}},
		{Description: "a", Amount: Money{Cents: -5}},
		{Description: "a", Amount: Money{Cents: 1}, Division: "4ta_division"},
	}
	for i, re := range bads {
		err := re.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected ErrValidation, got %v", i, err)
		}
	}
}

func TestHasGenerated(t *testing.T) {
	re := RecurringExpense{GeneratedPeriods: []Period{NewPeriod(2025, 10), NewPeriod(2025, 11)}}
	if !re.HasGenerated(NewPeriod(2025, 11)) {
		t.Fatalf("expected 2025-11 in ledger")
	}
	if re.HasGenerated(NewPeriod(2025, 12)) {
		t.Fatalf("did not expect 2025-12 in ledger")
	}
}

func TestTransactionValidate(t *testing.T) {
	src := NewPeriod(2025, 10)
	good := Transaction{
		Type:        Expense,
		Description: "Renta (Recurrente)",
		Amount:      Money{Cents: 350000},
		Date:        NewDate(2025, 11, 1),
		Status:      StatusPending,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
	}{
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }},
		{"empty description", func(tx *Transaction) { tx.Description = "" }},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }},
		{"bad status", func(tx *Transaction) { tx.Status = "cancelado" }},
		{"recurring without id", func(tx *Transaction) { tx.IsRecurring = true }},
		{"carryover without source", func(tx *Transaction) { tx.IsCarryover = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := good
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() = %v, want ErrValidation", err)
			}
		})
	}

	carry := good
	carry.Type = Income
	carry.Status = StatusPaid
	carry.IsCarryover = true
	carry.CarryoverSource = &src
	if err := carry.Validate(); err != nil {
		t.Fatalf("carryover income expected ok, got %v", err)
	}
}

func TestActorString(t *testing.T) {
	if got := SystemActor().String(); got != "system" {
		t.Fatalf("SystemActor().String() = %q", got)
	}
	if got := UserActor("u1", "ana@example.com").String(); got != "user:u1" {
		t.Fatalf("UserActor().String() = %q", got)
	}
	if !(Actor{}).IsSystem() {
		t.Fatalf("zero Actor should be system")
	}
}

func TestSummarize(t *testing.T) {
	p := NewPeriod(2025, 10)
	txs := []Transaction{
		{Type: Income, Amount: Money{Cents: 1000000}, Date: NewDate(2025, 10, 3), Status: StatusPaid},
		{Type: Expense, Amount: Money{Cents: 600000}, Date: NewDate(2025, 10, 5), Status: StatusPaid},
		{Type: Expense, Amount: Money{Cents: 200000}, Balance: Money{Cents: 200000}, Date: NewDate(2025, 10, 9), Status: StatusPending},
		{Type: Income, Amount: Money{Cents: 999}, Date: NewDate(2025, 11, 1), Status: StatusPaid},
	}
	s := Summarize(p, txs)
	if s.Count != 3 {
		t.Fatalf("Count = %d, want 3", s.Count)
	}
	if s.Income.Cents != 1000000 || s.Expenses.Cents != 800000 || s.PaidExpenses.Cents != 600000 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Pending.Cents != 200000 {
		t.Fatalf("Pending = %d", s.Pending.Cents)
	}
	if s.Balance().Cents != 400000 {
		t.Fatalf("Balance = %d, want 400000", s.Balance().Cents)
	}
}
