// Package services provides business logic and orchestration services.
//
// This file holds the strategies that decide which period a generation run
// covers. The default targets the month after the run date, so a run on the
// last day of October produces November's obligations.

package services

import (
	"fmt"
	"sort"
	"time"

	"finanzas/internal/core"
)

const (
	PolicyNextMonth    = "next"
	PolicyCurrentMonth = "current"
)

// PeriodPolicy maps a run date onto the period whose transactions it
// generates.
type PeriodPolicy interface {
	TargetPeriod(asOf time.Time) core.Period
	Name() string
}

// NextMonthPolicy targets the month following asOf.
type NextMonthPolicy struct{}

func (NextMonthPolicy) TargetPeriod(asOf time.Time) core.Period {
	return core.PeriodOf(asOf).Next()
}

func (NextMonthPolicy) Name() string { return PolicyNextMonth }

// CurrentMonthPolicy targets the month containing asOf. Used by the
// dashboard check for definitions still missing this month's row.
type CurrentMonthPolicy struct{}

func (CurrentMonthPolicy) TargetPeriod(asOf time.Time) core.Period {
	return core.PeriodOf(asOf)
}

func (CurrentMonthPolicy) Name() string { return PolicyCurrentMonth }

// periodPolicies maps GENERATION_POLICY values to strategies.
var periodPolicies = map[string]PeriodPolicy{
	PolicyNextMonth:    NextMonthPolicy{},
	PolicyCurrentMonth: CurrentMonthPolicy{},
}

// GetPeriodPolicy returns the policy registered under name. The empty name
// selects the next-month default.
func GetPeriodPolicy(name string) (PeriodPolicy, error) {
	if name == "" {
		return NextMonthPolicy{}, nil
	}
	policy, ok := periodPolicies[name]
	if !ok {
		return nil, fmt.Errorf("unknown generation policy: %s", name)
	}
	return policy, nil
}

// RegisterPeriodPolicy adds or replaces a named policy.
func RegisterPeriodPolicy(policy PeriodPolicy) {
	periodPolicies[policy.Name()] = policy
}

// PeriodPolicyNames lists the registered policy names, sorted.
func PeriodPolicyNames() []string {
	names := make([]string, 0, len(periodPolicies))
	for name := range periodPolicies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
