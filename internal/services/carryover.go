package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// ErrCarryoverIncomeExists means the income transaction for a source
// period was already created. Callers treat it as success.
var ErrCarryoverIncomeExists = errors.New("carryover income already exists")

// CarryoverCalculator closes a month: the previous period's income minus
// its paid expenses is stored once per target period and, when positive,
// enters the target period as income.
type CarryoverCalculator struct {
	transactions ports.TransactionStore
	carryovers   ports.CarryoverStore
	writer       *TransactionService
}

func NewCarryoverCalculator(transactions ports.TransactionStore, carryovers ports.CarryoverStore, writer *TransactionService) *CarryoverCalculator {
	return &CarryoverCalculator{
		transactions: transactions,
		carryovers:   carryovers,
		writer:       writer,
	}
}

// CarryoverResult is returned by CalculateAndSaveCarryover.
type CarryoverResult struct {
	Record            core.CarryoverRecord
	AlreadyExists     bool
	IncomeTransaction *core.Transaction
}

// CarryoverInfo is the read-only status used by dashboards. Data holds the
// stored record when Executed, otherwise a preview.
type CarryoverInfo struct {
	Executed   bool
	CanExecute bool
	Data       core.CarryoverRecord
}

// CalculateAndSaveCarryover computes and persists the carryover for p from
// p.Previous(). When a record already exists it is returned unchanged with
// AlreadyExists set and nothing is written.
func (c *CarryoverCalculator) CalculateAndSaveCarryover(ctx context.Context, p core.Period, actor core.Actor) (CarryoverResult, error) {
	if err := p.Validate(); err != nil {
		return CarryoverResult{}, err
	}

	existing, err := c.carryovers.GetCarryover(ctx, p)
	if err == nil {
		slog.InfoContext(ctx, "Carryover already calculated",
			log.FieldComponent, log.ComponentCarryover,
			log.FieldPeriod, p.Key())
		return CarryoverResult{Record: existing, AlreadyExists: true}, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return CarryoverResult{}, fmt.Errorf("get carryover %s: %w", p, err)
	}

	rec, err := c.compute(ctx, p)
	if err != nil {
		return CarryoverResult{}, err
	}

	saved, err := c.carryovers.SaveCarryover(ctx, rec)
	if err != nil {
		if isDuplicate(err) {
			// Lost the race to a concurrent run; report the winner.
			winner, gerr := c.carryovers.GetCarryover(ctx, p)
			if gerr != nil {
				return CarryoverResult{}, fmt.Errorf("reload carryover %s: %w", p, gerr)
			}
			return CarryoverResult{Record: winner, AlreadyExists: true}, nil
		}
		return CarryoverResult{}, fmt.Errorf("save carryover %s: %w", p, err)
	}

	slog.InfoContext(ctx, "Carryover calculated",
		log.FieldComponent, log.ComponentCarryover,
		log.FieldOperation, log.OpCarryover,
		log.FieldPeriod, p.Key(),
		log.FieldSourcePeriod, saved.SourcePeriod().Key(),
		"saldo_arrastre_cents", saved.SaldoArrastre.Cents,
		"total_ingresos_cents", saved.TotalIngresos.Cents,
		"total_gastos_pagados_cents", saved.TotalGastosPagados.Cents)

	result := CarryoverResult{Record: saved}
	if !saved.SaldoArrastre.IsPositive() {
		return result, nil
	}

	tx, err := c.CreateCarryoverIncomeTransaction(ctx, saved.SaldoArrastre, saved.SourcePeriod(), actor)
	switch {
	case err == nil:
		result.IncomeTransaction = &tx
	case errors.Is(err, ErrCarryoverIncomeExists):
		slog.InfoContext(ctx, "Carryover income already present",
			log.FieldComponent, log.ComponentCarryover,
			log.FieldSourcePeriod, saved.SourcePeriod().Key())
	default:
		// The record is stored; the income row can be recreated by a retry
		// of CreateCarryoverIncomeTransaction.
		return result, fmt.Errorf("create carryover income: %w", err)
	}

	return result, nil
}

// CreateCarryoverIncomeTransaction records amount as paid income on the
// first day of the period after source. It returns
// ErrCarryoverIncomeExists if source already has one.
func (c *CarryoverCalculator) CreateCarryoverIncomeTransaction(ctx context.Context, amount core.Money, source core.Period, actor core.Actor) (core.Transaction, error) {
	if err := source.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}

	found, err := c.transactions.ListTransactions(ctx, ports.TransactionFilter{CarryoverSource: &source})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("check carryover income for %s: %w", source, err)
	}
	if len(found) > 0 {
		return core.Transaction{}, ErrCarryoverIncomeExists
	}

	src := source
	tx := core.Transaction{
		Type:            core.Income,
		Description:     "Saldo arrastrado de " + source.Label(),
		Amount:          amount,
		Date:            source.Next().FirstDay(),
		Status:          core.StatusPaid,
		TotalPaid:       amount,
		IsCarryover:     true,
		CarryoverSource: &src,
	}

	saved, err := c.writer.CreateTransaction(ctx, tx, actor)
	if err != nil {
		if isDuplicate(err) {
			return core.Transaction{}, ErrCarryoverIncomeExists
		}
		return core.Transaction{}, err
	}
	return saved, nil
}

// GetCarryoverInfo reports whether p has been closed. CanExecute is only set
// when no record exists and the preview balance is positive. It never writes.
func (c *CarryoverCalculator) GetCarryoverInfo(ctx context.Context, p core.Period) (CarryoverInfo, error) {
	if err := p.Validate(); err != nil {
		return CarryoverInfo{}, err
	}

	existing, err := c.carryovers.GetCarryover(ctx, p)
	if err == nil {
		return CarryoverInfo{Executed: true, Data: existing}, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return CarryoverInfo{}, fmt.Errorf("get carryover %s: %w", p, err)
	}

	preview, err := c.compute(ctx, p)
	if err != nil {
		return CarryoverInfo{}, err
	}
	return CarryoverInfo{CanExecute: preview.SaldoArrastre.IsPositive(), Data: preview}, nil
}

// compute sums p.Previous() income and paid expenses concurrently.
func (c *CarryoverCalculator) compute(ctx context.Context, p core.Period) (core.CarryoverRecord, error) {
	prev := p.Previous()

	var income, paid core.Money
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = c.transactions.SumByTypeAndPeriod(gctx, core.Income, prev)
		if err != nil {
			return fmt.Errorf("sum income for %s: %w", prev, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		paid, err = c.transactions.SumByTypeAndPeriod(gctx, core.Expense, prev, core.StatusPaid)
		if err != nil {
			return fmt.Errorf("sum paid expenses for %s: %w", prev, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.CarryoverRecord{}, err
	}

	return core.CarryoverRecord{
		Year:               p.Year,
		Month:              p.Month,
		SaldoArrastre:      income.Sub(paid),
		PreviousYear:       prev.Year,
		PreviousMonth:      prev.Month,
		TotalIngresos:      income,
		TotalGastosPagados: paid,
	}, nil
}
