package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
	"finanzas/internal/report"
)

func (s *Server) handleAuditDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := ParseDateRange(r.URL.Query(), s.clock.Now())
	if err != nil {
		BadRequestError("Rango de fechas inválido", err).Write(w)
		return
	}
	rep, err := s.svc.Auditor.Audit(ctx, from, to)
	if err != nil {
		ErrorFor(err, "Error al ejecutar la auditoría").Write(w)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := report.WriteAuditReport(&buf, rep); err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Audit workbook failed", log.FieldError, err)
			InternalServerError("Error al generar el reporte", err).Write(w)
			return
		}
		writeWorkbook(w, fmt.Sprintf("auditoria_%s_%s.xlsx", rep.From.String(), rep.To.String()), &buf)
		return
	}

	msg := "No se encontraron duplicados"
	notif := NotificationSuccess
	if rep.DuplicateGroupsFound > 0 {
		msg = fmt.Sprintf("Se encontraron %d grupos con %d transacciones duplicadas (%s)",
			rep.DuplicateGroupsFound, rep.TotalDuplicateTransactions, formatPesos(rep.TotalAmountDuplicated))
		notif = NotificationWarning
	}
	NewJSONResponse().
		Message(msg).
		Field("summary", map[string]any{
			"from":                       rep.From.String(),
			"to":                         rep.To.String(),
			"totalTransactionsAnalyzed":  rep.TotalTransactionsAnalyzed,
			"duplicateGroupsFound":       rep.DuplicateGroupsFound,
			"totalDuplicateTransactions": rep.TotalDuplicateTransactions,
			"totalAmountDuplicated":      rep.TotalAmountDuplicated,
		}).
		Field("duplicateGroups", toDuplicateGroupsJSON(rep.Groups)).
		Notification(notif, msg).
		Write(w)
}

func (s *Server) handleDeleteByMonth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Production {
		ForbiddenError("Esta funcionalidad solo está disponible en desarrollo").Write(w)
		return
	}
	var in monthInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError("Faltan parámetros requeridos: year, month", err).Write(w)
		return
	}
	p := core.NewPeriod(in.Year, in.Month)
	if err := p.Validate(); err != nil {
		BadRequestError("Periodo inválido", err).Write(w)
		return
	}

	res, err := s.svc.Transactions.DeleteTransactionsByMonth(r.Context(), p, actorFromRequest(r))
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Delete by month failed",
			log.FieldError, err, log.FieldPeriod, p.Key())
		ErrorFor(err, "Error al eliminar transacciones").Write(w)
		return
	}
	s.invalidateCarryoverInfo(p.Next())

	msg := fmt.Sprintf("Se eliminaron %d de %d transacciones", res.DeletedCount, res.TotalFound)
	NewJSONResponse().
		Message(msg).
		Field("data", map[string]int{
			"totalFound":   res.TotalFound,
			"deletedCount": res.DeletedCount,
		}).
		SuccessNotification(msg).
		Write(w)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := ParseMonthParams(r.URL.Query(), s.clock.Now())
	if err != nil {
		BadRequestError("Periodo inválido", err).Write(w)
		return
	}

	txs, err := s.svc.Transactions.ListTransactions(ctx, ports.TransactionFilter{Period: &p})
	if err != nil {
		ErrorFor(err, "Error al listar transacciones").Write(w)
		return
	}
	var carryover *core.CarryoverRecord
	if rec, err := s.svc.Carryovers.GetCarryover(ctx, p); err == nil {
		carryover = &rec
	} else if !errors.Is(err, core.ErrNotFound) {
		ErrorFor(err, "Error al leer el arrastre").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteMonthlyReport(&buf, p, txs, carryover); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Monthly workbook failed", log.FieldError, err, log.FieldPeriod, p.Key())
		InternalServerError("Error al generar el reporte", err).Write(w)
		return
	}
	writeWorkbook(w, fmt.Sprintf("reporte_%s.xlsx", p.Key()), &buf)
}

// writeWorkbook sends a fully rendered workbook as an attachment.
func writeWorkbook(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
