package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"finanzas/internal/core"
	"finanzas/internal/ports"
)

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	clock   core.Clock
}

var _ ports.Stores = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, clock core.Clock) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if clock == nil {
		clock = core.SystemClock{}
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		clock:   clock,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateDefinition(ctx context.Context, d core.RecurringExpense) (core.RecurringExpense, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := r.clock.Now()
	d.CreatedAt, d.UpdatedAt = now, now

	if err := r.queries.CreateRecurringExpense(ctx, recurringExpenseToRow(d)); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("create recurring expense: %w", classify(err))
	}

	slog.InfoContext(ctx, "Recurring expense saved to SQLite",
		"id", d.ID,
		"description", d.Description,
		"amount_cents", d.Amount.Cents)

	return d, nil
}

func (r *SQLiteRepository) GetDefinition(ctx context.Context, id string) (core.RecurringExpense, error) {
	row, err := r.queries.GetRecurringExpense(ctx, id)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("get recurring expense %s: %w", id, classify(err))
	}
	keys, err := r.queries.ListGeneratedPeriodsFor(ctx, id)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("get ledger for %s: %w", id, err)
	}
	return rowToRecurringExpense(row, keys)
}

func (r *SQLiteRepository) ListDefinitions(ctx context.Context, filter ports.DefinitionFilter) ([]core.RecurringExpense, error) {
	var active sql.NullBool
	if filter.Active != nil {
		active = sql.NullBool{Bool: *filter.Active, Valid: true}
	}
	rows, err := r.queries.ListRecurringExpenses(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	ledger, err := r.queries.ListGeneratedPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	out := make([]core.RecurringExpense, 0, len(rows))
	for _, row := range rows {
		d, err := rowToRecurringExpense(row, ledger[row.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *SQLiteRepository) LoadActive(ctx context.Context) ([]core.RecurringExpense, error) {
	return r.ListDefinitions(ctx, ports.DefinitionFilter{Active: ports.Bool(true)})
}

func (r *SQLiteRepository) UpdateDefinition(ctx context.Context, d core.RecurringExpense) error {
	d.UpdatedAt = r.clock.Now()
	n, err := r.queries.UpdateRecurringExpense(ctx, recurringExpenseToRow(d))
	if err != nil {
		return fmt.Errorf("update recurring expense %s: %w", d.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update recurring expense %s: %w", d.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) SetDefinitionActive(ctx context.Context, id string, active bool, actor core.Actor) error {
	n, err := r.queries.SetRecurringExpenseActive(ctx, id, active, actor.String(), formatTime(r.clock.Now()))
	if err != nil {
		return fmt.Errorf("set recurring expense %s active: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("set recurring expense %s active: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDefinition(ctx context.Context, id string) error {
	n, err := r.queries.DeleteRecurringExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete recurring expense %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete recurring expense %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) AppendGeneratedPeriod(ctx context.Context, id string, p core.Period, at time.Time) error {
	return r.inTx(ctx, func(q *Queries) error {
		now := formatTime(r.clock.Now())
		n, err := q.TouchLastGenerated(ctx, id, formatTime(at), now)
		if err != nil {
			return fmt.Errorf("touch last generated %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("append period to %s: %w", id, core.ErrNotFound)
		}
		if err := q.InsertGeneratedPeriod(ctx, id, p.Key(), formatTime(at)); err != nil {
			return fmt.Errorf("append period %s to %s: %w", p, id, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) RemoveGeneratedPeriods(ctx context.Context, id string, periods []core.Period) error {
	return r.inTx(ctx, func(q *Queries) error {
		for _, p := range periods {
			if err := q.DeleteGeneratedPeriod(ctx, id, p.Key()); err != nil {
				return fmt.Errorf("remove period %s from %s: %w", p, id, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.clock.Now()
	t.CreatedAt, t.UpdatedAt = now, now

	if err := r.queries.CreateTransaction(ctx, transactionToRow(t)); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", classify(err))
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"period", t.Period().Key())

	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, classify(err))
	}
	return rowToTransaction(row)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionWhere(filter)
	rows, err := r.queries.ListTransactionsWhere(ctx, where, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := rowToTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *SQLiteRepository) SumByTypeAndPeriod(ctx context.Context, typ core.TransactionType, p core.Period, statuses ...core.TransactionStatus) (core.Money, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	total, err := r.queries.SumTransactions(ctx, string(typ), p.Key(), ss)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum %s for %s: %w", typ, p, err)
	}
	return core.Money{Cents: total}, nil
}

func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	var removed []core.Transaction
	err := r.inTx(ctx, func(q *Queries) error {
		where, args := transactionWhere(filter)
		rows, err := q.ListTransactionsWhere(ctx, where, args...)
		if err != nil {
			return fmt.Errorf("select transactions to delete: %w", err)
		}
		for _, row := range rows {
			t, err := rowToTransaction(row)
			if err != nil {
				return err
			}
			if err := q.DeleteTransaction(ctx, row.ID); err != nil {
				return fmt.Errorf("delete transaction %s: %w", row.ID, err)
			}
			removed = append(removed, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		slog.InfoContext(ctx, "Transactions deleted from SQLite", "count", len(removed))
	}
	return removed, nil
}

func (r *SQLiteRepository) GetCarryover(ctx context.Context, p core.Period) (core.CarryoverRecord, error) {
	row, err := r.queries.GetCarryover(ctx, int64(p.Year), int64(p.Month))
	if err != nil {
		return core.CarryoverRecord{}, fmt.Errorf("get carryover %s: %w", p, classify(err))
	}
	return rowToCarryover(row)
}

func (r *SQLiteRepository) SaveCarryover(ctx context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error) {
	rec.CreatedAt = r.clock.Now()
	err := r.queries.CreateCarryover(ctx, Carryover{
		Year:                    int64(rec.Year),
		Month:                   int64(rec.Month),
		SaldoArrastreCents:      rec.SaldoArrastre.Cents,
		PreviousYear:            int64(rec.PreviousYear),
		PreviousMonth:           int64(rec.PreviousMonth),
		TotalIngresosCents:      rec.TotalIngresos.Cents,
		TotalGastosPagadosCents: rec.TotalGastosPagados.Cents,
		CreatedAt:               formatTime(rec.CreatedAt),
	})
	if err != nil {
		return core.CarryoverRecord{}, fmt.Errorf("save carryover %s: %w", rec.Period(), classify(err))
	}
	slog.InfoContext(ctx, "Carryover saved to SQLite",
		"period", rec.Period().Key(),
		"saldo_arrastre_cents", rec.SaldoArrastre.Cents)
	return rec, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// transactionWhere translates a filter into a WHERE clause over the
// transactions table.
func transactionWhere(f ports.TransactionFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.ID != "" {
		conds = append(conds, "id = ?")
		args = append(args, f.ID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Period != nil {
		conds = append(conds, "period_key = ?")
		args = append(args, f.Period.Key())
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.Format(time.DateOnly))
	}
	if f.RecurringOnly {
		conds = append(conds, "is_recurring = 1")
	}
	if f.RecurringExpenseID != "" {
		conds = append(conds, "recurring_expense_id = ?")
		args = append(args, f.RecurringExpenseID)
	}
	if f.CarryoverSource != nil {
		conds = append(conds, "is_carryover = 1 AND carryover_source_year = ? AND carryover_source_month = ?")
		args = append(args, f.CarryoverSource.Year, int(f.CarryoverSource.Month))
	}
	return strings.Join(conds, " AND "), args
}

// classify maps driver errors onto the core sentinels.
func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", core.ErrDuplicate, err)
		}
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func recurringExpenseToRow(d core.RecurringExpense) RecurringExpense {
	row := RecurringExpense{
		ID:           d.ID,
		Description:  d.Description,
		AmountCents:  d.Amount.Cents,
		GeneralID:    d.GeneralID,
		ConceptID:    d.ConceptID,
		SubconceptID: d.SubconceptID,
		ProviderID:   d.ProviderID,
		Division:     string(d.Division),
		IsActive:     d.IsActive,
		CreatedBy:    d.CreatedBy,
		UpdatedBy:    d.UpdatedBy,
		CreatedAt:    formatTime(d.CreatedAt),
		UpdatedAt:    formatTime(d.UpdatedAt),
	}
	if d.LastGenerated != nil {
		row.LastGenerated = sql.NullString{String: formatTime(*d.LastGenerated), Valid: true}
	}
	return row
}

func rowToRecurringExpense(row RecurringExpense, ledger []string) (core.RecurringExpense, error) {
	d := core.RecurringExpense{
		ID:           row.ID,
		Description:  row.Description,
		Amount:       core.Money{Cents: row.AmountCents},
		GeneralID:    row.GeneralID,
		ConceptID:    row.ConceptID,
		SubconceptID: row.SubconceptID,
		ProviderID:   row.ProviderID,
		Division:     core.Division(row.Division),
		IsActive:     row.IsActive,
		CreatedBy:    row.CreatedBy,
		UpdatedBy:    row.UpdatedBy,
	}
	var err error
	if d.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return d, err
	}
	if d.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return d, err
	}
	if row.LastGenerated.Valid {
		lg, err := parseTime(row.LastGenerated.String)
		if err != nil {
			return d, err
		}
		d.LastGenerated = &lg
	}
	for _, key := range ledger {
		p, err := core.ParsePeriod(key)
		if err != nil {
			return d, fmt.Errorf("ledger of %s: %w", row.ID, err)
		}
		d.GeneratedPeriods = append(d.GeneratedPeriods, p)
	}
	return d, nil
}

func transactionToRow(t core.Transaction) Transaction {
	row := Transaction{
		ID:             t.ID,
		Type:           string(t.Type),
		Description:    t.Description,
		AmountCents:    t.Amount.Cents,
		Date:           t.Date.String(),
		PeriodKey:      t.Period().Key(),
		Status:         string(t.Status),
		GeneralID:      t.GeneralID,
		ConceptID:      t.ConceptID,
		SubconceptID:   t.SubconceptID,
		ProviderID:     t.ProviderID,
		Division:       string(t.Division),
		IsRecurring:    t.IsRecurring,
		BalanceCents:   t.Balance.Cents,
		TotalPaidCents: t.TotalPaid.Cents,
		IsCarryover:    t.IsCarryover,
		CreatedBy:      t.CreatedBy,
		UpdatedBy:      t.UpdatedBy,
		CreatedAt:      formatTime(t.CreatedAt),
		UpdatedAt:      formatTime(t.UpdatedAt),
	}
	if t.RecurringExpenseID != "" {
		row.RecurringExpenseID = sql.NullString{String: t.RecurringExpenseID, Valid: true}
	}
	if t.CarryoverSource != nil {
		row.CarryoverSourceYear = sql.NullInt64{Int64: int64(t.CarryoverSource.Year), Valid: true}
		row.CarryoverSourceMonth = sql.NullInt64{Int64: int64(t.CarryoverSource.Month), Valid: true}
	}
	return row
}

func rowToTransaction(row Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}
	t := core.Transaction{
		ID:                 row.ID,
		Type:               core.TransactionType(row.Type),
		Description:        row.Description,
		Amount:             core.Money{Cents: row.AmountCents},
		Date:               date,
		Status:             core.TransactionStatus(row.Status),
		GeneralID:          row.GeneralID,
		ConceptID:          row.ConceptID,
		SubconceptID:       row.SubconceptID,
		ProviderID:         row.ProviderID,
		Division:           core.Division(row.Division),
		IsRecurring:        row.IsRecurring,
		RecurringExpenseID: row.RecurringExpenseID.String,
		Balance:            core.Money{Cents: row.BalanceCents},
		TotalPaid:          core.Money{Cents: row.TotalPaidCents},
		IsCarryover:        row.IsCarryover,
		CreatedBy:          row.CreatedBy,
		UpdatedBy:          row.UpdatedBy,
	}
	if row.CarryoverSourceYear.Valid && row.CarryoverSourceMonth.Valid {
		src := core.NewPeriod(int(row.CarryoverSourceYear.Int64), int(row.CarryoverSourceMonth.Int64))
		t.CarryoverSource = &src
	}
	if t.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return t, err
	}
	return t, nil
}

func rowToCarryover(row Carryover) (core.CarryoverRecord, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.CarryoverRecord{}, err
	}
	return core.CarryoverRecord{
		Year:               int(row.Year),
		Month:              time.Month(row.Month),
		SaldoArrastre:      core.Money{Cents: row.SaldoArrastreCents},
		PreviousYear:       int(row.PreviousYear),
		PreviousMonth:      time.Month(row.PreviousMonth),
		TotalIngresos:      core.Money{Cents: row.TotalIngresosCents},
		TotalGastosPagados: core.Money{Cents: row.TotalGastosPagadosCents},
		CreatedAt:          created,
	}, nil
}
