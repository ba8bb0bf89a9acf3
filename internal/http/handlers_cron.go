package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// requireCronAuth enforces "Authorization: Bearer <CRON_SECRET>" when a
// secret is configured.
func (s *Server) requireCronAuth(next http.Handler) http.Handler {
	return s.bearerAuth(false, next)
}

// requireBearer additionally refuses requests without any bearer token
// when no secret is configured.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return s.bearerAuth(true, next)
}

func (s *Server) bearerAuth(tokenAlwaysRequired bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, hasToken := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		hasToken = hasToken && token != ""

		if s.opts.CronSecret == "" {
			if tokenAlwaysRequired && !hasToken {
				UnauthorizedError().Write(w)
				return
			}
			log.FromContext(r.Context()).InfoContext(r.Context(), "Running without CRON_SECRET, development mode",
				log.FieldPath, r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		if !hasToken || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.CronSecret)) != 1 {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Unauthorized cron request",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
			UnauthorizedError().Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cronEndpoint accepts GET (schedulers) and POST (manual runs) behind the
// cron bearer check.
func (s *Server) cronEndpoint(h http.HandlerFunc) http.Handler {
	authed := s.requireCronAuth(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			MethodNotAllowedError("GET, POST").Write(w)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

func (s *Server) handleGenerateRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	migrated, err := s.svc.Generator.BackfillGeneratedPeriods(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Ledger backfill failed before generation", log.FieldError, err)
		InternalServerError("Error generating recurring transactions", err).Write(w)
		return
	}

	now := s.clock.Now()
	target := s.svc.Generator.Policy().TargetPeriod(now)

	// A run must finish even when the caller that started it hangs up;
	// collapsed callers share its result.
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := s.cron.Do("generate:"+target.Key(), func() (any, error) {
		return s.svc.Generator.GeneratePendingTransactions(runCtx, now, core.SystemActor())
	})
	if err != nil {
		logger.ErrorContext(ctx, "Recurring generation failed", log.FieldError, err, log.FieldPeriod, target.Key())
		InternalServerError("Error generating recurring transactions", err).Write(w)
		return
	}
	created := v.([]core.Transaction)
	s.invalidateCarryoverInfo(target.Next())

	logger.InfoContext(ctx, "Generated recurring transactions",
		log.FieldOperation, log.OpGenerate,
		log.FieldPeriod, target.Key(),
		log.FieldCount, len(created),
		"migrated", migrated,
		"shared", shared)

	msg := fmt.Sprintf("Generated %d recurring transactions", len(created))
	NewJSONResponse().
		Message(msg).
		Field("transactions", toTransactionsJSON(created)).
		Field("period", target).
		Field("migratedCount", migrated).
		Field("date", now.Format(time.RFC3339)).
		Field("executionDay", now.Day()).
		Field("dayOfWeek", int(now.Weekday())).
		Field("lastDayOfMonth", now.AddDate(0, 0, 1).Month() != now.Month()).
		SuccessNotification(msg).
		Write(w)
}

func (s *Server) handleCalculateCarryover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	now := s.clock.Now()

	p, err := ParseMonthParams(r.URL.Query(), now)
	if err != nil {
		BadRequestError("Invalid period", err).Write(w)
		return
	}

	runCtx := context.WithoutCancel(ctx)
	v, err, _ := s.cron.Do("carryover:"+p.Key(), func() (any, error) {
		return s.svc.Carryover.CalculateAndSaveCarryover(runCtx, p, core.SystemActor())
	})
	if err != nil {
		logger.ErrorContext(ctx, "Carryover calculation failed", log.FieldError, err, log.FieldPeriod, p.Key())
		ErrorFor(err, "Error calculating carryover").
			Field("date", now.Format(time.RFC3339)).
			Write(w)
		return
	}
	res := v.(services.CarryoverResult)
	s.invalidateCarryoverInfo(p, p.Next())

	rec := res.Record
	resp := NewJSONResponse().
		Field("carryoverData", toCarryoverJSON(rec)).
		Field("date", now.Format(time.RFC3339))

	if res.AlreadyExists {
		suffix := " (no balance to carry)"
		if rec.SaldoArrastre.IsPositive() {
			suffix = " (" + formatPesos(rec.SaldoArrastre) + ")"
		}
		msg := fmt.Sprintf("Carryover already calculated for %d/%d%s", int(p.Month), p.Year, suffix)
		resp.Message(msg).
			Field("alreadyExists", true).
			Notification(NotificationInfo, msg).
			Write(w)
		return
	}

	msg := fmt.Sprintf("Carryover calculated for %d/%d: No positive balance to carry over", int(p.Month), p.Year)
	if rec.SaldoArrastre.IsPositive() {
		msg = fmt.Sprintf("Carryover calculated for %d/%d: %s", int(p.Month), p.Year, formatPesos(rec.SaldoArrastre))
	}
	resp.Message(msg).
		Field("calculated", true).
		Field("summary", map[string]any{
			"month":             int(p.Month),
			"year":              p.Year,
			"carryoverAmount":   rec.SaldoArrastre,
			"fromMonth":         int(rec.PreviousMonth),
			"fromYear":          rec.PreviousYear,
			"totalIncome":       rec.TotalIngresos,
			"totalPaidExpenses": rec.TotalGastosPagados,
		}).
		SuccessNotification(msg)
	if res.IncomeTransaction != nil {
		resp.Field("incomeTransaction", toTransactionJSON(*res.IncomeTransaction))
	}
	resp.Write(w)
}

func (s *Server) handleCarryoverInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := ParseMonthParams(r.URL.Query(), s.clock.Now())
	if err != nil {
		BadRequestError("Invalid period", err).Write(w)
		return
	}

	info, ok := s.carryoverInfo.Get(p.Key())
	if !ok {
		info, err = s.svc.Carryover.GetCarryoverInfo(ctx, p)
		if err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Carryover info failed", log.FieldError, err, log.FieldPeriod, p.Key())
			ErrorFor(err, "Error reading carryover info").Write(w)
			return
		}
		s.carryoverInfo.Set(p.Key(), info)
	}

	NewJSONResponse().
		Field("period", p).
		Field("info", carryoverInfoJSON{
			Executed:   info.Executed,
			CanExecute: info.CanExecute,
			Data:       toCarryoverJSON(info.Data),
		}).
		Write(w)
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := s.svc.Generator.BackfillGeneratedPeriods(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Migration failed", log.FieldError, err)
		InternalServerError("Error during migration", err).Write(w)
		return
	}
	msg := fmt.Sprintf("Migration completed successfully. Migrated %d recurring expenses.", count)
	NewJSONResponse().
		Message(msg).
		Field("migratedCount", count).
		SuccessNotification(msg).
		Write(w)
}
