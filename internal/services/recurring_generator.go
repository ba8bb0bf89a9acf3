package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// RecurringGenerator materializes recurring definitions into pending
// expense transactions, at most one per definition and period.
type RecurringGenerator struct {
	definitions  ports.DefinitionStore
	transactions *TransactionService
	policy       PeriodPolicy
	clock        core.Clock
}

// NewRecurringGenerator wires the generator. A nil policy selects
// NextMonthPolicy.
func NewRecurringGenerator(definitions ports.DefinitionStore, transactions *TransactionService, policy PeriodPolicy, clock core.Clock) *RecurringGenerator {
	if policy == nil {
		policy = NextMonthPolicy{}
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &RecurringGenerator{
		definitions:  definitions,
		transactions: transactions,
		policy:       policy,
		clock:        clock,
	}
}

// Policy returns the period policy in use.
func (g *RecurringGenerator) Policy() PeriodPolicy {
	return g.policy
}

// GeneratePendingTransactions creates the target period's transaction for
// every active definition that lacks one and returns only what it created.
// A failure to load the catalog aborts the run; failures for a single
// definition are logged and skipped.
func (g *RecurringGenerator) GeneratePendingTransactions(ctx context.Context, asOf time.Time, actor core.Actor) ([]core.Transaction, error) {
	if g.definitions == nil || g.transactions == nil {
		return nil, fmt.Errorf("generator not properly initialized")
	}

	active, err := g.definitions.LoadActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active recurring expenses: %w", err)
	}

	target := g.policy.TargetPeriod(asOf)

	slog.InfoContext(ctx, "Generating recurring transactions",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldPeriod, target.Key(),
		"policy", g.policy.Name(),
		"total_active", len(active),
		"as_of", asOf.Format(time.DateOnly))

	var created []core.Transaction
	skipped := 0

	for _, def := range active {
		// Re-read so the ledger check sees writes made since LoadActive.
		fresh, err := g.definitions.GetDefinition(ctx, def.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get recurring expense details",
				log.FieldDefinitionID, def.ID,
				log.FieldError, err)
			continue
		}
		if !fresh.IsActive || fresh.HasGenerated(target) {
			skipped++
			continue
		}

		tx, err := g.generateOne(ctx, fresh, target, actor)
		if err != nil {
			if isDuplicate(err) {
				skipped++
				continue
			}
			slog.ErrorContext(ctx, "Failed to create transaction from recurring expense",
				log.FieldDefinitionID, fresh.ID,
				log.FieldDescription, fresh.Description,
				log.FieldPeriod, target.Key(),
				log.FieldError, err)
			continue
		}
		created = append(created, tx)
	}

	slog.InfoContext(ctx, "Recurring transaction generation complete",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldPeriod, target.Key(),
		"created", len(created),
		"skipped", skipped,
		"total_checked", len(active))

	return created, nil
}

// generateOne inserts the transaction and then records the period in the
// ledger. A duplicate insert means another run got there first; the ledger
// is repaired and core.ErrDuplicate returned.
func (g *RecurringGenerator) generateOne(ctx context.Context, def core.RecurringExpense, target core.Period, actor core.Actor) (core.Transaction, error) {
	tx := core.Transaction{
		Type:               core.Expense,
		Description:        def.Description + core.RecurringSuffix,
		Amount:             def.Amount,
		Date:               target.FirstDay(),
		Status:             core.StatusPending,
		GeneralID:          def.GeneralID,
		ConceptID:          def.ConceptID,
		SubconceptID:       def.SubconceptID,
		ProviderID:         def.ProviderID,
		Division:           def.Division,
		IsRecurring:        true,
		RecurringExpenseID: def.ID,
		Balance:            def.Amount,
	}

	saved, err := g.transactions.CreateTransaction(ctx, tx, actor)
	if err != nil {
		if isDuplicate(err) {
			slog.InfoContext(ctx, "Transaction already exists for period, repairing ledger",
				log.FieldDefinitionID, def.ID,
				log.FieldPeriod, target.Key())
			if lerr := g.definitions.AppendGeneratedPeriod(ctx, def.ID, target, g.clock.Now()); lerr != nil {
				slog.ErrorContext(ctx, "Failed to repair ledger",
					log.FieldDefinitionID, def.ID,
					log.FieldError, lerr)
			}
		}
		return core.Transaction{}, err
	}

	if err := g.definitions.AppendGeneratedPeriod(ctx, def.ID, target, g.clock.Now()); err != nil {
		// The unique constraint still prevents a second row next run.
		slog.ErrorContext(ctx, "Failed to record generated period",
			log.FieldDefinitionID, def.ID,
			log.FieldPeriod, target.Key(),
			log.FieldError, err)
	}

	slog.InfoContext(ctx, "Created transaction from recurring expense",
		log.FieldDefinitionID, def.ID,
		log.FieldTransactionID, saved.ID,
		log.FieldAmountCents, saved.Amount.Cents,
		log.FieldPeriod, target.Key())

	return saved, nil
}

// PendingDefinitions lists active definitions that have no transaction for
// p yet.
func (g *RecurringGenerator) PendingDefinitions(ctx context.Context, p core.Period) ([]core.RecurringExpense, error) {
	active, err := g.definitions.LoadActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active recurring expenses: %w", err)
	}
	var pending []core.RecurringExpense
	for _, d := range active {
		if !d.HasGenerated(p) {
			pending = append(pending, d)
		}
	}
	return pending, nil
}

// CleanFutureTransactions deletes the definition's generated transactions
// dated on or after the first day of next month and drops those periods
// from its ledger, so a later reactivation regenerates them.
func (g *RecurringGenerator) CleanFutureTransactions(ctx context.Context, id string, actor core.Actor) ([]core.Transaction, error) {
	if _, err := g.definitions.GetDefinition(ctx, id); err != nil {
		return nil, err
	}

	from := core.PeriodOf(g.clock.Now()).Next().FirstDay()
	removed, err := g.transactions.DeleteMatching(ctx, ports.TransactionFilter{
		RecurringExpenseID: id,
		From:               from.Time,
	}, actor)
	if err != nil {
		return nil, fmt.Errorf("clean future transactions of %s: %w", id, err)
	}

	periods := make([]core.Period, 0, len(removed))
	for _, t := range removed {
		periods = append(periods, t.Period())
	}
	if len(periods) > 0 {
		if err := g.definitions.RemoveGeneratedPeriods(ctx, id, periods); err != nil {
			return removed, fmt.Errorf("update ledger of %s: %w", id, err)
		}
	}

	slog.InfoContext(ctx, "Cleaned future recurring transactions",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldOperation, log.OpCleanup,
		log.FieldDefinitionID, id,
		log.FieldActor, actor.String(),
		log.FieldCount, len(removed),
		"from", from.String())

	return removed, nil
}

// ToggleActive flips the definition's active flag and returns the new
// value. Deactivation first purges already generated future transactions.
func (g *RecurringGenerator) ToggleActive(ctx context.Context, id string, actor core.Actor) (bool, error) {
	def, err := g.definitions.GetDefinition(ctx, id)
	if err != nil {
		return false, err
	}

	next := !def.IsActive
	if !next {
		if _, err := g.CleanFutureTransactions(ctx, id, actor); err != nil {
			return def.IsActive, err
		}
	}

	if err := g.definitions.SetDefinitionActive(ctx, id, next, actor); err != nil {
		return def.IsActive, fmt.Errorf("toggle recurring expense %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Recurring expense toggled",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldOperation, log.OpToggle,
		log.FieldDefinitionID, id,
		log.FieldActor, actor.String(),
		"active", next)

	return next, nil
}

// BackfillGeneratedPeriods migrates legacy definitions whose ledger is
// empty: the periods of the recurring transactions already stored for the
// definition are written to the ledger, stamped with LastGenerated when
// present. Returns how many definitions were updated.
func (g *RecurringGenerator) BackfillGeneratedPeriods(ctx context.Context) (int, error) {
	if g.definitions == nil || g.transactions == nil {
		return 0, fmt.Errorf("generator not properly initialized")
	}
	all, err := g.definitions.ListDefinitions(ctx, ports.DefinitionFilter{})
	if err != nil {
		return 0, fmt.Errorf("list recurring expenses: %w", err)
	}

	updated := 0
	var errs []error
	for _, d := range all {
		if len(d.GeneratedPeriods) > 0 {
			continue
		}
		periods, err := g.storedPeriods(ctx, d.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.ID, err))
			continue
		}
		if len(periods) == 0 {
			continue
		}

		at := g.clock.Now()
		if d.LastGenerated != nil {
			at = *d.LastGenerated
		}
		var appendErr error
		for _, p := range periods {
			if appendErr = g.definitions.AppendGeneratedPeriod(ctx, d.ID, p, at); appendErr != nil {
				break
			}
		}
		if appendErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.ID, appendErr))
			continue
		}
		updated++
	}

	slog.InfoContext(ctx, "Backfilled recurring expense ledger",
		log.FieldComponent, log.ComponentRecurring,
		log.FieldOperation, log.OpBackfill,
		log.FieldCount, updated,
		"total_checked", len(all))

	return updated, errors.Join(errs...)
}

// storedPeriods returns the distinct periods, oldest first, of the recurring
// transactions already generated for definition id.
func (g *RecurringGenerator) storedPeriods(ctx context.Context, id string) ([]core.Period, error) {
	txs, err := g.transactions.ListTransactions(ctx, ports.TransactionFilter{RecurringExpenseID: id})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	seen := make(map[core.Period]bool, len(txs))
	var periods []core.Period
	for _, t := range txs {
		p := t.Period()
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	slices.SortFunc(periods, func(a, b core.Period) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return periods, nil
}
