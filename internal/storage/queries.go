package storage

import (
	"context"
	"database/sql"
	"strings"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type RecurringExpense struct {
	ID            string
	Description   string
	AmountCents   int64
	GeneralID     string
	ConceptID     string
	SubconceptID  string
	ProviderID    string
	Division      string
	IsActive      bool
	LastGenerated sql.NullString
	CreatedBy     string
	UpdatedBy     string
	CreatedAt     string
	UpdatedAt     string
}

type Transaction struct {
	ID                   string
	Type                 string
	Description          string
	AmountCents          int64
	Date                 string
	PeriodKey            string
	Status               string
	GeneralID            string
	ConceptID            string
	SubconceptID         string
	ProviderID           string
	Division             string
	IsRecurring          bool
	RecurringExpenseID   sql.NullString
	BalanceCents         int64
	TotalPaidCents       int64
	IsCarryover          bool
	CarryoverSourceYear  sql.NullInt64
	CarryoverSourceMonth sql.NullInt64
	CreatedBy            string
	UpdatedBy            string
	CreatedAt            string
	UpdatedAt            string
}

type Carryover struct {
	Year                    int64
	Month                   int64
	SaldoArrastreCents      int64
	PreviousYear            int64
	PreviousMonth           int64
	TotalIngresosCents      int64
	TotalGastosPagadosCents int64
	CreatedAt               string
}

const recurringExpenseColumns = `id, description, amount_cents, general_id, concept_id, subconcept_id, provider_id,
division, is_active, last_generated, created_by, updated_by, created_at, updated_at`

const transactionColumns = `id, type, description, amount_cents, date, period_key, status, general_id, concept_id,
subconcept_id, provider_id, division, is_recurring, recurring_expense_id, balance_cents, total_paid_cents,
is_carryover, carryover_source_year, carryover_source_month, created_by, updated_by, created_at, updated_at`

const createRecurringExpense = `INSERT INTO recurring_expenses (` + recurringExpenseColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecurringExpense(ctx context.Context, r RecurringExpense) error {
	_, err := q.db.ExecContext(ctx, createRecurringExpense,
		r.ID, r.Description, r.AmountCents, r.GeneralID, r.ConceptID, r.SubconceptID, r.ProviderID,
		r.Division, r.IsActive, r.LastGenerated, r.CreatedBy, r.UpdatedBy, r.CreatedAt, r.UpdatedAt)
	return err
}

const getRecurringExpense = `SELECT ` + recurringExpenseColumns + ` FROM recurring_expenses WHERE id = ?`

func (q *Queries) GetRecurringExpense(ctx context.Context, id string) (RecurringExpense, error) {
	return scanRecurringExpense(q.db.QueryRowContext(ctx, getRecurringExpense, id))
}

const listRecurringExpenses = `SELECT ` + recurringExpenseColumns + ` FROM recurring_expenses
WHERE (? IS NULL OR is_active = ?)
ORDER BY created_at DESC, id`

func (q *Queries) ListRecurringExpenses(ctx context.Context, active sql.NullBool) ([]RecurringExpense, error) {
	rows, err := q.db.QueryContext(ctx, listRecurringExpenses, active, active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringExpense
	for rows.Next() {
		r, err := scanRecurringExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateRecurringExpense = `UPDATE recurring_expenses
SET description = ?, amount_cents = ?, general_id = ?, concept_id = ?, subconcept_id = ?, provider_id = ?,
    division = ?, updated_by = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateRecurringExpense(ctx context.Context, r RecurringExpense) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecurringExpense,
		r.Description, r.AmountCents, r.GeneralID, r.ConceptID, r.SubconceptID, r.ProviderID,
		r.Division, r.UpdatedBy, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setRecurringExpenseActive = `UPDATE recurring_expenses SET is_active = ?, updated_by = ?, updated_at = ? WHERE id = ?`

func (q *Queries) SetRecurringExpenseActive(ctx context.Context, id string, active bool, updatedBy, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setRecurringExpenseActive, active, updatedBy, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const touchLastGenerated = `UPDATE recurring_expenses SET last_generated = ?, updated_at = ? WHERE id = ?`

func (q *Queries) TouchLastGenerated(ctx context.Context, id, lastGenerated, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, touchLastGenerated, lastGenerated, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteRecurringExpense = `DELETE FROM recurring_expenses WHERE id = ?`

func (q *Queries) DeleteRecurringExpense(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRecurringExpense, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertGeneratedPeriod = `INSERT INTO recurring_expense_periods (recurring_expense_id, period_key, generated_at)
VALUES (?, ?, ?)
ON CONFLICT (recurring_expense_id, period_key) DO NOTHING`

func (q *Queries) InsertGeneratedPeriod(ctx context.Context, id, periodKey, generatedAt string) error {
	_, err := q.db.ExecContext(ctx, insertGeneratedPeriod, id, periodKey, generatedAt)
	return err
}

const deleteGeneratedPeriod = `DELETE FROM recurring_expense_periods WHERE recurring_expense_id = ? AND period_key = ?`

func (q *Queries) DeleteGeneratedPeriod(ctx context.Context, id, periodKey string) error {
	_, err := q.db.ExecContext(ctx, deleteGeneratedPeriod, id, periodKey)
	return err
}

const listGeneratedPeriods = `SELECT recurring_expense_id, period_key FROM recurring_expense_periods
ORDER BY recurring_expense_id, period_key`

// ListGeneratedPeriods returns the whole ledger keyed by definition id.
func (q *Queries) ListGeneratedPeriods(ctx context.Context) (map[string][]string, error) {
	rows, err := q.db.QueryContext(ctx, listGeneratedPeriods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]string{}
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		out[id] = append(out[id], key)
	}
	return out, rows.Err()
}

const listGeneratedPeriodsFor = `SELECT period_key FROM recurring_expense_periods
WHERE recurring_expense_id = ? ORDER BY period_key`

func (q *Queries) ListGeneratedPeriodsFor(ctx context.Context, id string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listGeneratedPeriodsFor, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

const createTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		t.ID, t.Type, t.Description, t.AmountCents, t.Date, t.PeriodKey, t.Status, t.GeneralID, t.ConceptID,
		t.SubconceptID, t.ProviderID, t.Division, t.IsRecurring, t.RecurringExpenseID, t.BalanceCents, t.TotalPaidCents,
		t.IsCarryover, t.CarryoverSourceYear, t.CarryoverSourceMonth, t.CreatedBy, t.UpdatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

// ListTransactionsWhere runs a filtered select. where must only contain
// placeholders for values; it is built by the repository.
func (q *Queries) ListTransactionsWhere(ctx context.Context, where string, args ...interface{}) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if strings.TrimSpace(where) != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY date, created_at, id`
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const sumTransactions = `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE type = ? AND period_key = ?`

func (q *Queries) SumTransactions(ctx context.Context, typ, periodKey string, statuses []string) (int64, error) {
	query := sumTransactions
	args := []interface{}{typ, periodKey}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(`, ?`, len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	var total int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&total)
	return total, err
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteTransaction, id)
	return err
}

const getCarryover = `SELECT year, month, saldo_arrastre_cents, previous_year, previous_month,
total_ingresos_cents, total_gastos_pagados_cents, created_at
FROM carryover WHERE year = ? AND month = ?`

func (q *Queries) GetCarryover(ctx context.Context, year, month int64) (Carryover, error) {
	var c Carryover
	err := q.db.QueryRowContext(ctx, getCarryover, year, month).Scan(
		&c.Year, &c.Month, &c.SaldoArrastreCents, &c.PreviousYear, &c.PreviousMonth,
		&c.TotalIngresosCents, &c.TotalGastosPagadosCents, &c.CreatedAt)
	return c, err
}

const createCarryover = `INSERT INTO carryover (year, month, saldo_arrastre_cents, previous_year, previous_month,
total_ingresos_cents, total_gastos_pagados_cents, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCarryover(ctx context.Context, c Carryover) error {
	_, err := q.db.ExecContext(ctx, createCarryover,
		c.Year, c.Month, c.SaldoArrastreCents, c.PreviousYear, c.PreviousMonth,
		c.TotalIngresosCents, c.TotalGastosPagadosCents, c.CreatedAt)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecurringExpense(s scanner) (RecurringExpense, error) {
	var r RecurringExpense
	err := s.Scan(&r.ID, &r.Description, &r.AmountCents, &r.GeneralID, &r.ConceptID, &r.SubconceptID,
		&r.ProviderID, &r.Division, &r.IsActive, &r.LastGenerated, &r.CreatedBy, &r.UpdatedBy,
		&r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanTransaction(s scanner) (Transaction, error) {
	var t Transaction
	err := s.Scan(&t.ID, &t.Type, &t.Description, &t.AmountCents, &t.Date, &t.PeriodKey, &t.Status,
		&t.GeneralID, &t.ConceptID, &t.SubconceptID, &t.ProviderID, &t.Division, &t.IsRecurring,
		&t.RecurringExpenseID, &t.BalanceCents, &t.TotalPaidCents, &t.IsCarryover,
		&t.CarryoverSourceYear, &t.CarryoverSourceMonth, &t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
