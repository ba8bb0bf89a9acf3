package http

import (
	"fmt"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

// JSON shapes exchanged with the dashboard. Amounts are decimal numbers,
// dates are YYYY-MM-DD, periods are YYYY-MM.
type (
	transactionJSON struct {
		ID                 string                 `json:"id"`
		Type               core.TransactionType   `json:"type"`
		Description        string                 `json:"description"`
		Amount             core.Money             `json:"amount"`
		Date               string                 `json:"date"`
		Status             core.TransactionStatus `json:"status"`
		GeneralID          string                 `json:"generalId,omitempty"`
		ConceptID          string                 `json:"conceptId,omitempty"`
		SubconceptID       string                 `json:"subconceptId,omitempty"`
		ProviderID         string                 `json:"providerId,omitempty"`
		Division           core.Division          `json:"division,omitempty"`
		IsRecurring        bool                   `json:"isRecurring"`
		RecurringExpenseID string                 `json:"recurringExpenseId,omitempty"`
		Balance            core.Money             `json:"balance"`
		TotalPaid          core.Money             `json:"totalPaid"`
		IsCarryover        bool                   `json:"isCarryover"`
		CarryoverSource    *core.Period           `json:"carryoverSource,omitempty"`
		CreatedBy          string                 `json:"createdBy,omitempty"`
		CreatedAt          time.Time              `json:"createdAt"`
	}

	definitionJSON struct {
		ID               string        `json:"id"`
		Description      string        `json:"description"`
		Amount           core.Money    `json:"amount"`
		GeneralID        string        `json:"generalId,omitempty"`
		ConceptID        string        `json:"conceptId,omitempty"`
		SubconceptID     string        `json:"subconceptId,omitempty"`
		ProviderID       string        `json:"providerId,omitempty"`
		Division         core.Division `json:"division,omitempty"`
		IsActive         bool          `json:"isActive"`
		GeneratedPeriods []core.Period `json:"generatedPeriods"`
		LastGenerated    *time.Time    `json:"lastGenerated,omitempty"`
		CreatedBy        string        `json:"createdBy,omitempty"`
		UpdatedBy        string        `json:"updatedBy,omitempty"`
		CreatedAt        time.Time     `json:"createdAt"`
		UpdatedAt        time.Time     `json:"updatedAt"`
	}

	carryoverJSON struct {
		Year               int        `json:"year"`
		Month              int        `json:"month"`
		SaldoArrastre      core.Money `json:"saldoArrastre"`
		PreviousYear       int        `json:"previousYear"`
		PreviousMonth      int        `json:"previousMonth"`
		TotalIngresos      core.Money `json:"totalIngresos"`
		TotalGastosPagados core.Money `json:"totalGastosPagados"`
		CreatedAt          *time.Time `json:"createdAt,omitempty"`
	}

	carryoverInfoJSON struct {
		Executed   bool          `json:"executed"`
		CanExecute bool          `json:"canExecute"`
		Data       carryoverJSON `json:"data"`
	}

	duplicateGroupJSON struct {
		RecurringExpenseID string            `json:"recurringExpenseId"`
		Period             core.Period       `json:"period"`
		Amount             core.Money        `json:"amount"`
		Count              int               `json:"count"`
		Transactions       []transactionJSON `json:"transactions"`
	}
)

// Request bodies.
type (
	transactionInput struct {
		Type         core.TransactionType   `json:"type"`
		Description  string                 `json:"description"`
		Amount       core.Money             `json:"amount"`
		Date         string                 `json:"date"`
		Status       core.TransactionStatus `json:"status"`
		GeneralID    string                 `json:"generalId"`
		ConceptID    string                 `json:"conceptId"`
		SubconceptID string                 `json:"subconceptId"`
		ProviderID   string                 `json:"providerId"`
		Division     core.Division          `json:"division"`
	}

	definitionInput struct {
		Description  string        `json:"description"`
		Amount       core.Money    `json:"amount"`
		GeneralID    string        `json:"generalId"`
		ConceptID    string        `json:"conceptId"`
		SubconceptID string        `json:"subconceptId"`
		ProviderID   string        `json:"providerId"`
		Division     core.Division `json:"division"`
	}

	monthInput struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}
)

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:                 t.ID,
		Type:               t.Type,
		Description:        t.Description,
		Amount:             t.Amount,
		Date:               t.Date.String(),
		Status:             t.Status,
		GeneralID:          t.GeneralID,
		ConceptID:          t.ConceptID,
		SubconceptID:       t.SubconceptID,
		ProviderID:         t.ProviderID,
		Division:           t.Division,
		IsRecurring:        t.IsRecurring,
		RecurringExpenseID: t.RecurringExpenseID,
		Balance:            t.Balance,
		TotalPaid:          t.TotalPaid,
		IsCarryover:        t.IsCarryover,
		CarryoverSource:    t.CarryoverSource,
		CreatedBy:          t.CreatedBy,
		CreatedAt:          t.CreatedAt,
	}
}

func toTransactionsJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

func toDefinitionJSON(d core.RecurringExpense) definitionJSON {
	periods := d.GeneratedPeriods
	if periods == nil {
		periods = []core.Period{}
	}
	return definitionJSON{
		ID:               d.ID,
		Description:      d.Description,
		Amount:           d.Amount,
		GeneralID:        d.GeneralID,
		ConceptID:        d.ConceptID,
		SubconceptID:     d.SubconceptID,
		ProviderID:       d.ProviderID,
		Division:         d.Division,
		IsActive:         d.IsActive,
		GeneratedPeriods: periods,
		LastGenerated:    d.LastGenerated,
		CreatedBy:        d.CreatedBy,
		UpdatedBy:        d.UpdatedBy,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func toDefinitionsJSON(defs []core.RecurringExpense) []definitionJSON {
	out := make([]definitionJSON, 0, len(defs))
	for _, d := range defs {
		out = append(out, toDefinitionJSON(d))
	}
	return out
}

func toCarryoverJSON(c core.CarryoverRecord) carryoverJSON {
	out := carryoverJSON{
		Year:               c.Year,
		Month:              int(c.Month),
		SaldoArrastre:      c.SaldoArrastre,
		PreviousYear:       c.PreviousYear,
		PreviousMonth:      int(c.PreviousMonth),
		TotalIngresos:      c.TotalIngresos,
		TotalGastosPagados: c.TotalGastosPagados,
	}
	if !c.CreatedAt.IsZero() {
		at := c.CreatedAt
		out.CreatedAt = &at
	}
	return out
}

func toDuplicateGroupsJSON(groups []services.DuplicateGroup) []duplicateGroupJSON {
	out := make([]duplicateGroupJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, duplicateGroupJSON{
			RecurringExpenseID: g.RecurringExpenseID,
			Period:             g.Period,
			Amount:             g.Amount,
			Count:              len(g.Transactions),
			Transactions:       toTransactionsJSON(g.Transactions),
		})
	}
	return out
}

func (in transactionInput) toTransaction(now time.Time) (core.Transaction, error) {
	date := core.NewDate(now.Year(), int(now.Month()), now.Day())
	if in.Date != "" {
		d, err := core.ParseDate(in.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		date = d
	}
	return core.Transaction{
		Type:         in.Type,
		Description:  sanitizeInput(in.Description),
		Amount:       in.Amount,
		Date:         date,
		Status:       in.Status,
		GeneralID:    sanitizeInput(in.GeneralID),
		ConceptID:    sanitizeInput(in.ConceptID),
		SubconceptID: sanitizeInput(in.SubconceptID),
		ProviderID:   sanitizeInput(in.ProviderID),
		Division:     in.Division,
	}, nil
}

// apply copies the editable fields onto d.
func (in definitionInput) apply(d core.RecurringExpense) core.RecurringExpense {
	d.Description = sanitizeInput(in.Description)
	d.Amount = in.Amount
	d.GeneralID = sanitizeInput(in.GeneralID)
	d.ConceptID = sanitizeInput(in.ConceptID)
	d.SubconceptID = sanitizeInput(in.SubconceptID)
	d.ProviderID = sanitizeInput(in.ProviderID)
	d.Division = in.Division
	return d
}

func (in definitionInput) toDefinition() core.RecurringExpense {
	return core.RecurringExpense{
		Description:  sanitizeInput(in.Description),
		Amount:       in.Amount,
		GeneralID:    sanitizeInput(in.GeneralID),
		ConceptID:    sanitizeInput(in.ConceptID),
		SubconceptID: sanitizeInput(in.SubconceptID),
		ProviderID:   sanitizeInput(in.ProviderID),
		Division:     in.Division,
	}
}

// formatPesos renders money the way the dashboard shows it, e.g. "$3,500.00".
func formatPesos(m core.Money) string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	for i := len(whole) - 3; i > 0; i -= 3 {
		whole = whole[:i] + "," + whole[i:]
	}
	s := fmt.Sprintf("$%s.%02d", whole, cents%100)
	if neg {
		return "-" + s
	}
	return s
}
