package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "entrada"
	Expense TransactionType = "salida"
)

const (
	StatusPending TransactionStatus = "pendiente"
	StatusPartial TransactionStatus = "parcial"
	StatusPaid    TransactionStatus = "pagado"
)

const (
	DivisionGeneral Division = "general"
	DivisionSecond  Division = "2da_division"
	DivisionThird   Division = "3ra_division"
)

// RecurringSuffix is appended to the description of generated transactions.
const RecurringSuffix = " (Recurrente)"

const maxDescriptionLength = 200

type (
	TransactionType   string
	TransactionStatus string
	Division          string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// RecurringExpense is a template that yields at most one generated
	// transaction per period. GeneratedPeriods is the idempotency ledger.
	RecurringExpense struct {
		ID               string
		Description      string
		Amount           Money
		GeneralID        string
		ConceptID        string
		SubconceptID     string
		ProviderID       string
		Division         Division
		IsActive         bool
		GeneratedPeriods []Period
		LastGenerated    *time.Time
		CreatedBy        string
		UpdatedBy        string
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}

	Transaction struct {
		ID                 string
		Type               TransactionType
		Description        string
		Amount             Money
		Date               Date
		Status             TransactionStatus
		GeneralID          string
		ConceptID          string
		SubconceptID       string
		ProviderID         string
		Division           Division
		IsRecurring        bool
		RecurringExpenseID string
		Balance            Money
		TotalPaid          Money
		IsCarryover        bool
		CarryoverSource    *Period
		CreatedBy          string
		UpdatedBy          string
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}

	// CarryoverRecord is keyed by the period it was computed FOR; the
	// amounts come from PreviousYear/PreviousMonth.
	CarryoverRecord struct {
		Year               int
		Month              time.Month
		SaldoArrastre      Money
		PreviousYear       int
		PreviousMonth      time.Month
		TotalIngresos      Money
		TotalGastosPagados Money
		CreatedAt          time.Time
	}
)

var (
	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	// ErrDuplicate signals a uniqueness violation in storage. Generation and
	// carryover treat it as "already done".
	ErrDuplicate = errors.New("duplicate")

	ErrInvalidDay         = fmt.Errorf("%w: invalid day", ErrValidation)
	ErrInvalidMonth       = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidYear        = fmt.Errorf("%w: invalid year", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: empty description", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, maxDescriptionLength)
	ErrInvalidType        = fmt.Errorf("%w: invalid transaction type", ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidDivision    = fmt.Errorf("%w: invalid division", ErrValidation)
)

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Period returns the period the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Time.Year(), Month: d.Time.Month()}
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

func (s TransactionStatus) Validate() error {
	switch s {
	case StatusPending, StatusPartial, StatusPaid:
		return nil
	}
	return ErrInvalidStatus
}

// Validate accepts the empty division; catalog references are optional.
func (d Division) Validate() error {
	switch d {
	case "", DivisionGeneral, DivisionSecond, DivisionThird:
		return nil
	}
	return ErrInvalidDivision
}

func validateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if err := validateDescription(re.Description); err != nil {
		return err
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	return re.Division.Validate()
}

// HasGenerated reports whether p is already in the idempotency ledger.
func (re RecurringExpense) HasGenerated(p Period) bool {
	for _, g := range re.GeneratedPeriods {
		if g == p {
			return true
		}
	}
	return false
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if t.IsRecurring && t.RecurringExpenseID == "" {
		return fmt.Errorf("%w: recurring transaction without definition id", ErrValidation)
	}
	if t.IsCarryover && t.CarryoverSource == nil {
		return fmt.Errorf("%w: carryover transaction without source period", ErrValidation)
	}
	return t.Division.Validate()
}

// Period returns the period of the transaction date.
func (t Transaction) Period() Period {
	return t.Date.Period()
}

// Period returns the period the record was computed for.
func (c CarryoverRecord) Period() Period {
	return Period{Year: c.Year, Month: c.Month}
}

// SourcePeriod returns the period whose totals produced the balance.
func (c CarryoverRecord) SourcePeriod() Period {
	return Period{Year: c.PreviousYear, Month: c.PreviousMonth}
}
