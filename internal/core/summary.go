package core

// MonthSummary aggregates one period's transactions for reports.
type MonthSummary struct {
	Period       Period
	Income       Money
	Expenses     Money
	PaidExpenses Money
	Pending      Money
	Count        int
}

// Balance is income minus paid expenses, the figure carried over.
func (s MonthSummary) Balance() Money {
	return s.Income.Sub(s.PaidExpenses)
}

// Summarize folds txs into a MonthSummary for p. Transactions outside p are
// ignored.
func Summarize(p Period, txs []Transaction) MonthSummary {
	s := MonthSummary{Period: p}
	for _, t := range txs {
		if t.Period() != p {
			continue
		}
		s.Count++
		switch t.Type {
		case Income:
			s.Income = s.Income.Add(t.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(t.Amount)
			if t.Status == StatusPaid {
				s.PaidExpenses = s.PaidExpenses.Add(t.Amount)
			} else {
				s.Pending = s.Pending.Add(t.Balance)
			}
		}
	}
	return s
}
