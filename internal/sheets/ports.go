// Package sheets mirrors the ledger into a spreadsheet for the people who
// still read the numbers there.
package sheets

import (
	"context"
	"errors"

	"finanzas/internal/core"
)

// ErrRowNotFound is returned by DeleteTransaction when the id has no row.
var ErrRowNotFound = errors.New("sheet row not found")

// Ports for outbound adapters.
type (
	// LedgerWriter keeps one row per transaction, keyed by transaction id.
	LedgerWriter interface {
		// AppendTransaction adds a row and returns a reference to it.
		// Appending an id that already has a row returns the existing ref.
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
		DeleteTransaction(ctx context.Context, id string) error
	}
)

// Columns is the header row of the mirrored sheet.
var Columns = []string{
	"ID", "Fecha", "Periodo", "Tipo", "Descripción", "Monto",
	"Estado", "División", "Recurrente", "Arrastre", "Creado por",
}

// Row renders t in Columns order. Amounts are numbers so the sheet can sum
// them.
func Row(t core.Transaction) []any {
	amount, _ := t.Amount.Decimal().Float64()
	return []any{
		t.ID,
		t.Date.String(),
		t.Period().Key(),
		string(t.Type),
		t.Description,
		amount,
		string(t.Status),
		string(t.Division),
		yesNo(t.IsRecurring),
		yesNo(t.IsCarryover),
		t.CreatedBy,
	}
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}
