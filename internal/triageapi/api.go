// Package triageapi exposes the triage pipeline over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Triage(ctx context.Context, t *triage.Ticket) *triage.Result
	TriageByID(ctx context.Context, id string) (*triage.Result, error)
	TriageOpen(ctx context.Context, limit, parallel int) ([]*triage.Result, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
	audit  triage.AuditReader
}

// New creates a new API handler. audit may be nil, in which case the audit
// trail endpoint answers 501.
func New(logger log.Logger, svc TriageService, audit triage.AuditReader) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		audit:  audit,
	}
}

// RegisterRoutes attaches API endpoints to the router. middlewares wrap the
// /api/v1 group only.
func (a *API) RegisterRoutes(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewares...)
		r.Post("/triage", a.handleTriage)
		r.Post("/triage/open", a.handleTriageOpen)
		r.Post("/tickets/{id}/triage", a.handleTriageByID)
		r.Get("/tickets/{id}/actions", a.handleListActions)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing useful to do with an encode error once the header is out
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
