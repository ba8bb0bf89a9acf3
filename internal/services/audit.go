package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// DuplicateGroup is a set of generated transactions of one definition in
// one period that all carry the same amount.
type DuplicateGroup struct {
	RecurringExpenseID string
	Period             core.Period
	Amount             core.Money
	Transactions       []core.Transaction
}

// AuditReport summarizes a duplicate scan over a date range.
type AuditReport struct {
	From                       core.Date
	To                         core.Date
	TotalTransactionsAnalyzed  int
	DuplicateGroupsFound       int
	TotalDuplicateTransactions int
	TotalAmountDuplicated      core.Money
	Groups                     []DuplicateGroup
}

// Duplicates flattens the groups, oldest first.
func (r AuditReport) Duplicates() []core.Transaction {
	out := make([]core.Transaction, 0, r.TotalDuplicateTransactions)
	for _, g := range r.Groups {
		out = append(out, g.Transactions...)
	}
	return out
}

// DuplicateAuditor scans for generated transactions that slipped past the
// idempotency guards.
type DuplicateAuditor struct {
	transactions ports.TransactionStore
}

func NewDuplicateAuditor(transactions ports.TransactionStore) *DuplicateAuditor {
	return &DuplicateAuditor{transactions: transactions}
}

// Audit loads the recurring transactions dated in [from, to] and reports
// every (definition, period) that has more than one row with one amount.
func (a *DuplicateAuditor) Audit(ctx context.Context, from, to time.Time) (AuditReport, error) {
	if to.Before(from) {
		return AuditReport{}, fmt.Errorf("%w: range end before start", core.ErrValidation)
	}

	txs, err := a.transactions.ListTransactions(ctx, ports.TransactionFilter{
		RecurringOnly: true,
		From:          from,
		To:            to,
	})
	if err != nil {
		return AuditReport{}, fmt.Errorf("list recurring transactions: %w", err)
	}

	type groupKey struct {
		id     string
		period core.Period
	}
	grouped := make(map[groupKey][]core.Transaction)
	var order []groupKey
	for _, t := range txs {
		if t.RecurringExpenseID == "" {
			continue
		}
		k := groupKey{id: t.RecurringExpenseID, period: t.Period()}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], t)
	}

	report := AuditReport{
		From:                      core.NewDate(from.Year(), int(from.Month()), from.Day()),
		To:                        core.NewDate(to.Year(), int(to.Month()), to.Day()),
		TotalTransactionsAnalyzed: len(txs),
	}

	for _, k := range order {
		group := grouped[k]
		if len(group) < 2 || !sameAmount(group) {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		report.Groups = append(report.Groups, DuplicateGroup{
			RecurringExpenseID: k.id,
			Period:             k.period,
			Amount:             group[0].Amount,
			Transactions:       group,
		})
		report.TotalDuplicateTransactions += len(group)
		for _, t := range group {
			report.TotalAmountDuplicated = report.TotalAmountDuplicated.Add(t.Amount)
		}
	}
	report.DuplicateGroupsFound = len(report.Groups)

	slog.InfoContext(ctx, "Duplicate audit complete",
		log.FieldComponent, log.ComponentAudit,
		log.FieldOperation, log.OpAudit,
		"from", report.From.String(),
		"to", report.To.String(),
		"analyzed", report.TotalTransactionsAnalyzed,
		"groups", report.DuplicateGroupsFound,
		"duplicates", report.TotalDuplicateTransactions)

	return report, nil
}

func sameAmount(txs []core.Transaction) bool {
	for _, t := range txs[1:] {
		if t.Amount != txs[0].Amount {
			return false
		}
	}
	return true
}
