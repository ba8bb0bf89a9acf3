package cli

import (
	"fmt"

	"finanzas/internal/backend"
	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/services"
)

// Services is the service graph shared by every process.
type Services struct {
	Transactions *services.TransactionService
	Definitions  *services.RecurringExpenseService
	Generator    *services.RecurringGenerator
	Carryover    *services.CarryoverCalculator
	Auditor      *services.DuplicateAuditor
}

// BuildServices wires the services over the backend stores. Events are
// published only when the backend connected to a broker.
func BuildServices(res *backend.BackendResult, cfg *config.Config, clock core.Clock) (*Services, error) {
	policy, err := services.GetPeriodPolicy(cfg.GenerationPolicy)
	if err != nil {
		return nil, fmt.Errorf("generation policy: %w", err)
	}

	var publisher services.EventPublisher
	if res.Events != nil {
		publisher = res.Events
	}

	stores := res.Stores
	txs := services.NewTransactionService(stores, publisher, clock)
	return &Services{
		Transactions: txs,
		Definitions:  services.NewRecurringExpenseService(stores),
		Generator:    services.NewRecurringGenerator(stores, txs, policy, clock),
		Carryover:    services.NewCarryoverCalculator(stores, stores, txs),
		Auditor:      services.NewDuplicateAuditor(stores),
	}, nil
}
