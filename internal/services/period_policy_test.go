package services

import (
	"testing"
	"time"

	"finanzas/internal/core"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNextMonthPolicy_TargetPeriod(t *testing.T) {
	policy := NextMonthPolicy{}

	tests := []struct {
		name string
		asOf time.Time
		want core.Period
	}{
		{
			name: "last day of october targets november",
			asOf: time.Date(2025, time.October, 31, 23, 0, 0, 0, time.UTC),
			want: core.NewPeriod(2025, 11),
		},
		{
			name: "first day of month targets following month",
			asOf: date(2025, time.March, 1),
			want: core.NewPeriod(2025, 4),
		},
		{
			name: "december rolls into next year",
			asOf: date(2025, time.December, 15),
			want: core.NewPeriod(2026, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.TargetPeriod(tt.asOf); got != tt.want {
				t.Errorf("NextMonthPolicy.TargetPeriod() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurrentMonthPolicy_TargetPeriod(t *testing.T) {
	policy := CurrentMonthPolicy{}

	tests := []struct {
		name string
		asOf time.Time
		want core.Period
	}{
		{
			name: "mid month",
			asOf: date(2025, time.October, 15),
			want: core.NewPeriod(2025, 10),
		},
		{
			name: "december stays in year",
			asOf: date(2025, time.December, 31),
			want: core.NewPeriod(2025, 12),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.TargetPeriod(tt.asOf); got != tt.want {
				t.Errorf("CurrentMonthPolicy.TargetPeriod() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetPeriodPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   string
		wantType PeriodPolicy
		wantErr  bool
	}{
		{"empty selects default", "", NextMonthPolicy{}, false},
		{"next", PolicyNextMonth, NextMonthPolicy{}, false},
		{"current", PolicyCurrentMonth, CurrentMonthPolicy{}, false},
		{"unknown", "fortnightly", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetPeriodPolicy(tt.policy)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetPeriodPolicy() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.wantType {
				t.Errorf("GetPeriodPolicy() = %T, want %T", got, tt.wantType)
			}
		})
	}
}

// customPolicy targets two months ahead.
type customPolicy struct{}

func (customPolicy) TargetPeriod(asOf time.Time) core.Period {
	return core.PeriodOf(asOf).Next().Next()
}

func (customPolicy) Name() string { return "two-ahead" }

func TestRegisterPeriodPolicy(t *testing.T) {
	RegisterPeriodPolicy(customPolicy{})
	defer delete(periodPolicies, "two-ahead")

	got, err := GetPeriodPolicy("two-ahead")
	if err != nil {
		t.Fatalf("GetPeriodPolicy() error = %v", err)
	}
	if p := got.TargetPeriod(date(2025, time.November, 30)); p != core.NewPeriod(2026, 1) {
		t.Errorf("custom TargetPeriod() = %v, want 2026-01", p)
	}
	if names := PeriodPolicyNames(); len(names) != 3 {
		t.Errorf("PeriodPolicyNames() = %v, want 3 entries", names)
	}
}
