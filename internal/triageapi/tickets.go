package triageapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

const (
	defaultOpenLimit = 3
	maxOpenLimit     = 100
	maxParallel      = 16
)

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var t triage.Ticket
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if t.ID == "" {
		writeError(w, http.StatusBadRequest, "ticket_id is required")
		return
	}

	result := a.svc.Triage(r.Context(), &t)
	annotate(r, result)
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleTriageByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := a.svc.TriageByID(r.Context(), id)
	switch {
	case errors.Is(err, triage.ErrNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	case errors.Is(err, triage.ErrNoTicketSource):
		writeError(w, http.StatusNotImplemented, "backend cannot load tickets")
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "failed to load ticket", "ticket_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	annotate(r, result)
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleTriageOpen(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", defaultOpenLimit, maxOpenLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	parallel, ok := intParam(r, "parallel", 1, maxParallel)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid parallel")
		return
	}

	results, err := a.svc.TriageOpen(r.Context(), limit, parallel)
	if errors.Is(err, triage.ErrNoTicketSource) {
		writeError(w, http.StatusNotImplemented, "backend cannot load tickets")
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to triage open tickets", "limit", limit)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (a *API) handleListActions(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusNotImplemented, "audit trail not available")
		return
	}
	id := chi.URLParam(r, "id")

	actions, err := a.audit.ListActions(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list actions", "ticket_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_id": id,
		"actions":   actions,
	})
}

// intParam reads a positive query parameter, falling back to def when absent.
func intParam(r *http.Request, name string, def, upper int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > upper {
		return 0, false
	}
	return n, true
}

func annotate(r *http.Request, result *triage.Result) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("ticketry.ticket.id", result.TicketID),
		attribute.String("ticketry.priority", string(result.Decision.Priority)),
		attribute.String("ticketry.team", result.Decision.AssignedTeam),
		attribute.Bool("ticketry.needs_review", result.Decision.NeedsHumanReview),
	)
}
