// Package report renders ledger data as xlsx workbooks.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	SheetTransactions = "Transacciones"
	SheetSummary      = "Resumen"
	SheetDuplicates   = "Duplicados"
)

var transactionHeaders = []any{
	"Fecha", "Tipo", "Descripción", "Monto", "Estado", "Saldo", "Pagado",
	"División", "Recurrente", "Arrastre", "ID",
}

// WriteMonthlyReport writes the transactions of p and a summary sheet. A nil
// carryover means the period has not been closed yet.
func WriteMonthlyReport(w io.Writer, p core.Period, txs []core.Transaction, carryover *core.CarryoverRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, SheetTransactions, 1, transactionHeaders); err != nil {
		return err
	}
	for i, t := range txs {
		row := []any{
			t.Date.String(), string(t.Type), t.Description, amount(t.Amount), string(t.Status),
			amount(t.Balance), amount(t.TotalPaid), string(t.Division),
			yesNo(t.IsRecurring), yesNo(t.IsCarryover), t.ID,
		}
		if err := setRow(f, SheetTransactions, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetTransactions, "A", "A", 12)
	_ = f.SetColWidth(SheetTransactions, "C", "C", 40)
	_ = f.SetColWidth(SheetTransactions, "K", "K", 38)

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	s := core.Summarize(p, txs)
	rows := [][]any{
		{"Periodo", p.Label()},
		{"Transacciones", s.Count},
		{"Ingresos", amount(s.Income)},
		{"Gastos", amount(s.Expenses)},
		{"Gastos pagados", amount(s.PaidExpenses)},
		{"Pendiente", amount(s.Pending)},
		{"Balance", amount(s.Balance())},
	}
	if carryover != nil {
		rows = append(rows,
			[]any{"Arrastre calculado desde", carryover.SourcePeriod().Label()},
			[]any{"Saldo arrastrado", amount(carryover.SaldoArrastre)},
			[]any{"Ingresos del mes anterior", amount(carryover.TotalIngresos)},
			[]any{"Gastos pagados del mes anterior", amount(carryover.TotalGastosPagados)},
		)
	} else {
		rows = append(rows, []any{"Arrastre", "sin calcular"})
	}
	for i, r := range rows {
		if err := setRow(f, SheetSummary, i+1, r); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 32)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteAuditReport writes one row per duplicated transaction plus the
// report totals.
func WriteAuditReport(w io.Writer, r services.AuditReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDuplicates); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"Gasto recurrente", "Periodo", "Monto", "ID", "Descripción", "Fecha", "Creado"}
	if err := setRow(f, SheetDuplicates, 1, header); err != nil {
		return err
	}
	row := 2
	for _, g := range r.Groups {
		for _, t := range g.Transactions {
			values := []any{
				g.RecurringExpenseID, g.Period.Key(), amount(g.Amount), t.ID,
				t.Description, t.Date.String(), t.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			if err := setRow(f, SheetDuplicates, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	totals := [][]any{
		{"Desde", r.From.String()},
		{"Hasta", r.To.String()},
		{"Transacciones analizadas", r.TotalTransactionsAnalyzed},
		{"Grupos duplicados", r.DuplicateGroupsFound},
		{"Transacciones duplicadas", r.TotalDuplicateTransactions},
		{"Monto duplicado", amount(r.TotalAmountDuplicated)},
	}
	for i, v := range totals {
		if err := setRow(f, SheetSummary, i+1, v); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// amount renders money as a numeric cell.
func amount(m core.Money) float64 {
	v, _ := m.Decimal().Float64()
	return v
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}
