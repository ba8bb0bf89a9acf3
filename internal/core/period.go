package core

import (
	"fmt"
	"time"
)

const (
	minYear = 2000
	maxYear = 2100
)

// Period is a calendar month. Its key form "YYYY-MM" is what the
// idempotency ledger stores.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod builds a Period from plain integers.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: time.Month(month)}
}

// PeriodOf returns the period containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "YYYY-MM" key.
func ParsePeriod(key string) (Period, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return Period{}, fmt.Errorf("%w: invalid period %q", ErrValidation, key)
	}
	return PeriodOf(t), nil
}

func (p Period) Validate() error {
	if p.Year < minYear || p.Year > maxYear {
		return ErrInvalidYear
	}
	if p.Month < time.January || p.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}

// Key renders the period as YYYY-MM.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) String() string { return p.Key() }

// Label renders the period as MM/YYYY.
func (p Period) Label() string {
	return fmt.Sprintf("%02d/%04d", int(p.Month), p.Year)
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Previous returns the preceding month; January rolls back to December of
// the previous year.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// FirstDay returns the first calendar day of the period.
func (p Period) FirstDay() Date {
	return NewDate(p.Year, int(p.Month), 1)
}

// LastDay returns the last calendar day of the period.
func (p Period) LastDay() Date {
	return Date{Time: p.Next().FirstDay().AddDate(0, 0, -1)}
}

// Contains reports whether the calendar day of t falls in p.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.Key()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
