package http

import (
	"fmt"
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	active, err := ParseActiveFilter(r.URL.Query())
	if err != nil {
		BadRequestError("Filtro inválido", err).Write(w)
		return
	}
	defs, err := s.svc.Definitions.List(r.Context(), ports.DefinitionFilter{Active: active})
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List recurring expenses failed", log.FieldError, err)
		ErrorFor(err, "Error al listar gastos recurrentes").Write(w)
		return
	}
	NewJSONResponse().
		Field("recurringExpenses", toDefinitionsJSON(defs)).
		Field("count", len(defs)).
		Write(w)
}

func (s *Server) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var in definitionInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError("Formato de solicitud inválido", err).Write(w)
		return
	}
	saved, err := s.svc.Definitions.Create(r.Context(), in.toDefinition(), actorFromRequest(r))
	if err != nil {
		ErrorFor(err, "Error al crear el gasto recurrente").Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Message("Gasto recurrente creado").
		Field("recurringExpense", toDefinitionJSON(saved)).
		SuccessNotification(fmt.Sprintf("Gasto recurrente %q creado", saved.Description)).
		Write(w)
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Definitions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorFor(err, "Gasto recurrente no encontrado").Write(w)
		return
	}
	NewJSONResponse().Field("recurringExpense", toDefinitionJSON(d)).Write(w)
}

func (s *Server) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := s.svc.Definitions.Get(ctx, r.PathValue("id"))
	if err != nil {
		ErrorFor(err, "Gasto recurrente no encontrado").Write(w)
		return
	}
	var in definitionInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError("Formato de solicitud inválido", err).Write(w)
		return
	}
	saved, err := s.svc.Definitions.Update(ctx, in.apply(current), actorFromRequest(r))
	if err != nil {
		ErrorFor(err, "Error al actualizar el gasto recurrente").Write(w)
		return
	}
	NewJSONResponse().
		Message("Gasto recurrente actualizado").
		Field("recurringExpense", toDefinitionJSON(saved)).
		SuccessNotification("Gasto recurrente actualizado").
		Write(w)
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Definitions.Delete(r.Context(), id, actorFromRequest(r)); err != nil {
		ErrorFor(err, "Error al eliminar el gasto recurrente").Write(w)
		return
	}
	NewJSONResponse().
		Message("Gasto recurrente eliminado").
		Field("id", id).
		SuccessNotification("Gasto recurrente eliminado").
		Write(w)
}

func (s *Server) handleToggleDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	active, err := s.svc.Generator.ToggleActive(ctx, id, actorFromRequest(r))
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Toggle recurring expense failed",
			log.FieldError, err, log.FieldDefinitionID, id)
		ErrorFor(err, "Error al cambiar el estado del gasto recurrente").Write(w)
		return
	}
	// Deactivation may have purged next month's generated row.
	s.invalidateCarryoverInfo(core.PeriodOf(s.clock.Now()).Next().Next())

	msg := "Gasto recurrente desactivado"
	if active {
		msg = "Gasto recurrente activado"
	}
	NewJSONResponse().
		Message(msg).
		Field("id", id).
		Field("isActive", active).
		SuccessNotification(msg).
		Write(w)
}

func (s *Server) handlePendingDefinitions(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.clock.Now())
	if err != nil {
		BadRequestError("Periodo inválido", err).Write(w)
		return
	}
	pending, err := s.svc.Generator.PendingDefinitions(r.Context(), p)
	if err != nil {
		ErrorFor(err, "Error al consultar gastos pendientes").Write(w)
		return
	}
	resp := NewJSONResponse().
		Field("period", p).
		Field("recurringExpenses", toDefinitionsJSON(pending)).
		Field("count", len(pending))
	if len(pending) > 0 {
		resp.Notification(NotificationWarning, fmt.Sprintf("%d gastos recurrentes pendientes de generar para %s", len(pending), p.Label()))
	}
	resp.Write(w)
}
