package transcripts

import (
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/pkg/handlers"
	"github.com/parleyhq/parley/pkg/pagination"
	"github.com/parleyhq/parley/pkg/routes"
)

// Handler provides HTTP endpoints for transcript reads and deletion.
// Pipeline-driven mutations (transcribe, re-analyze) are exposed by the
// pipeline handler; this surface is the dashboard's query side.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "transcripts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for transcript endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/transcripts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/message/{messageId}", Handler: h.Find},
			{Method: "DELETE", Pattern: "/message/{messageId}", Handler: h.Delete},
		},
	}
}

// List returns a paginated, tenant-scoped list of transcripts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrNotFound)
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), tenantID, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single transcript by message id, scoped to the tenant.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrNotFound)
		return
	}

	t, err := h.sys.FindByMessage(r.Context(), tenantID, r.PathValue("messageId"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Delete removes a transcript. Deletion is an explicit administrative
// operation; the pipeline never deletes records.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrNotFound)
		return
	}

	if err := h.sys.Delete(r.Context(), tenantID, r.PathValue("messageId")); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
