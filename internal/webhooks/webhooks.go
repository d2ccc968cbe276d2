// Package webhooks receives inbound events: the CRM's call-finished
// webhook, the speech provider's transcription completion callback, and
// the shared-secret internal trigger. Payload shapes at these
// boundaries drift by delivery configuration, so extraction is tolerant
// by design.
package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/analysis"
	"github.com/parleyhq/parley/internal/crm"
	"github.com/parleyhq/parley/internal/settings"
	"github.com/parleyhq/parley/internal/transcripts"
	"github.com/parleyhq/parley/pkg/handlers"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/routes"
)

// Orchestrator is the pipeline surface the webhook handlers drive.
type Orchestrator interface {
	StartByTenant(ctx context.Context, tenantID, messageID, contactID string) error
	StartByLocation(ctx context.Context, locationID, messageID, contactID string) error
	PreparePlaceholder(ctx context.Context, locationID, messageID, contactID string) error
	ResolveMessageID(ctx context.Context, locationID, contactID string) (string, error)
	HandleCompletion(ctx context.Context, jobID string) error
	Reanalyze(ctx context.Context, tenantID, messageID string) (*transcripts.Transcript, error)
	Ask(ctx context.Context, tenantID, messageID, question string, history []analysis.HistoryTurn) (string, error)
}

// Dispatcher runs pipeline work beyond the request lifetime.
type Dispatcher interface {
	Dispatch(name string, fn func(ctx context.Context) error)
}

// Handler provides the inbound webhook endpoints.
type Handler struct {
	orchestrator   Orchestrator
	dispatcher     Dispatcher
	internalSecret string
	logger         *slog.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(
	orchestrator Orchestrator,
	dispatcher Dispatcher,
	internalSecret string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		orchestrator:   orchestrator,
		dispatcher:     dispatcher,
		internalSecret: internalSecret,
		logger:         logger.With("handler", "webhooks"),
	}
}

// Routes returns the route group for the hooks module. The internal
// trigger is guarded by the shared-secret header since it runs without
// an end-user session.
func (h *Handler) Routes() routes.Group {
	guard := middleware.SharedSecret(h.internalSecret)

	return routes.Group{
		Prefix: "",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/call-finished", Handler: h.describeCallFinished},
			{Method: "POST", Pattern: "/call-finished", Handler: h.CallFinished},
			{Method: "GET", Pattern: "/transcription", Handler: h.describeTranscription},
			{Method: "POST", Pattern: "/transcription", Handler: h.Transcription},
			{Method: "POST", Pattern: "/transcribe", Handler: guard(http.HandlerFunc(h.Transcribe)).ServeHTTP},
		},
	}
}

// CallFinished ingests a CRM call-completion event, resolves the tenant
// by location id, and dispatches the pipeline. Returns 202 immediately;
// terminal outcome is observable via the transcript record.
func (h *Handler) CallFinished(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	event := ExtractCallEvent(payload)

	if event.LocationID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("locationId is required to resolve the tenant"))
		return
	}
	if event.ContactID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("contactId is required"))
		return
	}

	messageID := event.MessageID
	if messageID == "" {
		resolved, err := h.orchestrator.ResolveMessageID(r.Context(), event.LocationID, event.ContactID)
		if err != nil {
			handlers.RespondError(w, h.logger, resolveStatus(err), err)
			return
		}
		messageID = resolved
		h.logger.Info("message id resolved from latest call",
			"contact", event.ContactID, "message", messageID)
	}

	if err := h.orchestrator.PreparePlaceholder(r.Context(), event.LocationID, messageID, event.ContactID); err != nil {
		if errors.Is(err, transcripts.ErrAlreadyCompleted) {
			handlers.RespondJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"message":   "Call already transcribed",
				"messageId": messageID,
			})
			return
		}
		handlers.RespondError(w, h.logger, settings.MapHTTPStatus(err), err)
		return
	}

	h.dispatcher.Dispatch("call-finished "+messageID, func(ctx context.Context) error {
		return h.orchestrator.StartByLocation(ctx, event.LocationID, messageID, event.ContactID)
	})

	handlers.RespondJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"message":   "Call received and queued for transcription",
		"contactId": event.ContactID,
		"messageId": messageID,
	})
}

// Transcription receives the speech provider's completion signal. The
// payload carries only the job id and status; content is re-fetched.
// A signal for an unknown job is acknowledged benignly.
func (h *Handler) Transcription(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TranscriptID string `json:"transcript_id"`
		Status       string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if payload.TranscriptID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("transcript_id is required"))
		return
	}

	if err := h.orchestrator.HandleCompletion(r.Context(), payload.TranscriptID); err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"transcript_id": payload.TranscriptID,
	})
}

// Transcribe is the internal trigger that starts the download-and-submit
// chain for a message. Shared-secret guarded; 202 on acceptance.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MessageID  string `json:"messageId"`
		ContactID  string `json:"contactId"`
		LocationID string `json:"locationId"`
		TenantID   string `json:"tenantId"`
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
	if payload.LocationID == "" && payload.TenantID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("locationId or tenantId is required"))
		return
	}

	h.dispatcher.Dispatch("internal-transcribe "+payload.MessageID, func(ctx context.Context) error {
		if payload.TenantID != "" {
			return h.orchestrator.StartByTenant(ctx, payload.TenantID, payload.MessageID, payload.ContactID)
		}
		return h.orchestrator.StartByLocation(ctx, payload.LocationID, payload.MessageID, payload.ContactID)
	})

	handlers.RespondJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"messageId": payload.MessageID,
	})
}

// resolveStatus maps a message-id resolution failure: a settings miss
// or no recorded calls is 404-class, a CRM rejection or outage keeps
// its own class.
func resolveStatus(err error) int {
	if status := settings.MapHTTPStatus(err); status != http.StatusInternalServerError {
		return status
	}
	return crm.MapHTTPStatus(err)
}

func (h *Handler) describeCallFinished(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, map[string]string{
		"message":      "Call Finished Webhook Endpoint",
		"status":       "active",
		"instructions": "Send POST requests with CallFinished events",
	})
}

func (h *Handler) describeTranscription(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, map[string]string{
		"message":      "Transcription Callback Endpoint",
		"status":       "active",
		"instructions": "This endpoint receives POST requests when transcriptions complete",
	})
}
