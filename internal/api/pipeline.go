package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/analysis"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/pipeline"
	"github.com/parleyhq/parley/internal/transcripts"
	"github.com/parleyhq/parley/pkg/handlers"
	"github.com/parleyhq/parley/pkg/routes"
)

// pipelineHandler exposes the authenticated pipeline entry points:
// manual transcription, re-analysis, and transcript Q&A.
type pipelineHandler struct {
	orchestrator *pipeline.Orchestrator
	dispatcher   *pipeline.Dispatcher
	logger       *slog.Logger
}

func newPipelineHandler(
	orchestrator *pipeline.Orchestrator,
	dispatcher *pipeline.Dispatcher,
	logger *slog.Logger,
) *pipelineHandler {
	return &pipelineHandler{
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		logger:       logger.With("handler", "pipeline"),
	}
}

func (h *pipelineHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/transcribe", Handler: h.transcribe},
			{Method: "POST", Pattern: "/transcripts/message/{messageId}/reanalyze", Handler: h.reanalyze},
			{Method: "POST", Pattern: "/transcripts/message/{messageId}/ask", Handler: h.ask},
		},
	}
}

// transcribe starts (or restarts) the transcription pipeline for a
// message. Resubmission is idempotent and recomputes from scratch; a
// failed record moves back to processing only through this explicit
// retry path.
func (h *pipelineHandler) transcribe(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, errors.New("no tenant"))
		return
	}

	var payload struct {
		MessageID string `json:"messageId"`
		ContactID string `json:"contactId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if payload.MessageID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("messageId is required"))
		return
	}

	h.dispatcher.Dispatch("transcribe "+payload.MessageID, func(ctx context.Context) error {
		return h.orchestrator.StartByTenant(ctx, tenantID, payload.MessageID, payload.ContactID)
	})

	handlers.RespondJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"messageId": payload.MessageID,
		"status":    "processing",
	})
}

// reanalyze re-runs only the analysis step against stored content.
func (h *pipelineHandler) reanalyze(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, errors.New("no tenant"))
		return
	}

	t, err := h.orchestrator.Reanalyze(r.Context(), tenantID, r.PathValue("messageId"))
	if err != nil {
		handlers.RespondError(w, h.logger, transcripts.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// ask answers a question about a completed transcript, carrying recent
// session history for continuity.
func (h *pipelineHandler) ask(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, errors.New("no tenant"))
		return
	}

	var payload struct {
		Question string                 `json:"question"`
		History  []analysis.HistoryTurn `json:"conversationHistory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if payload.Question == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("question is required"))
		return
	}

	messageID := r.PathValue("messageId")
	answer, err := h.orchestrator.Ask(r.Context(), tenantID, messageID, payload.Question, payload.History)
	if err != nil {
		handlers.RespondError(w, h.logger, transcripts.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"answer":    answer,
		"messageId": messageID,
	})
}
