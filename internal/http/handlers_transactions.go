package http

import (
	"fmt"
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.clock.Now())
	if err != nil {
		BadRequestError("Periodo inválido", err).Write(w)
		return
	}
	filter := ports.TransactionFilter{Period: &p}
	if typ := core.TransactionType(r.URL.Query().Get("type")); typ != "" {
		if err := typ.Validate(); err != nil {
			BadRequestError("Tipo inválido", err).Write(w)
			return
		}
		filter.Type = typ
	}

	txs, err := s.svc.Transactions.ListTransactions(r.Context(), filter)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed", log.FieldError, err)
		ErrorFor(err, "Error al listar transacciones").Write(w)
		return
	}
	summary := core.Summarize(p, txs)
	NewJSONResponse().
		Field("period", p).
		Field("transactions", toTransactionsJSON(txs)).
		Field("summary", map[string]any{
			"count":        summary.Count,
			"income":       summary.Income,
			"expenses":     summary.Expenses,
			"paidExpenses": summary.PaidExpenses,
			"pending":      summary.Pending,
			"balance":      summary.Balance(),
		}).
		Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError("Formato de solicitud inválido", err).Write(w)
		return
	}
	t, err := in.toTransaction(s.clock.Now())
	if err != nil {
		BadRequestError("Fecha inválida", err).Write(w)
		return
	}

	saved, err := s.svc.Transactions.CreateTransaction(r.Context(), t, actorFromRequest(r))
	if err != nil {
		ErrorFor(err, "Error al registrar la transacción").Write(w)
		return
	}
	s.invalidateForTransaction(saved)

	label := "Gasto"
	if saved.Type == core.Income {
		label = "Ingreso"
	}
	msg := fmt.Sprintf("%s registrado: %s por %s", label, saved.Description, formatPesos(saved.Amount))
	NewJSONResponse().
		Status(http.StatusCreated).
		Message(msg).
		Field("transaction", toTransactionJSON(saved)).
		SuccessNotification(msg).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	t, err := s.svc.Transactions.GetTransaction(ctx, id)
	if err != nil {
		ErrorFor(err, "Transacción no encontrada").Write(w)
		return
	}
	if err := s.svc.Transactions.DeleteTransaction(ctx, id, actorFromRequest(r)); err != nil {
		ErrorFor(err, "Error al eliminar la transacción").Write(w)
		return
	}
	s.invalidateForTransaction(t)

	NewJSONResponse().
		Message("Transacción eliminada").
		Field("id", id).
		SuccessNotification("Transacción eliminada").
		Write(w)
}
