package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/crm"
	"github.com/parleyhq/parley/internal/settings"
	"github.com/parleyhq/parley/pkg/handlers"
	"github.com/parleyhq/parley/pkg/routes"
)

// crmHandler exposes thin tenant-scoped proxies over the CRM gateway
// for the dashboard's contact, conversation, and call listings.
type crmHandler struct {
	client   *crm.Client
	settings settings.System
	logger   *slog.Logger
}

func newCRMHandler(client *crm.Client, settingsSys settings.System, logger *slog.Logger) *crmHandler {
	return &crmHandler{
		client:   client,
		settings: settingsSys,
		logger:   logger.With("handler", "crm"),
	}
}

func (h *crmHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/calls", Handler: h.calls},
			{Method: "GET", Pattern: "/contacts", Handler: h.contacts},
			{Method: "GET", Pattern: "/conversations", Handler: h.conversations},
			{Method: "GET", Pattern: "/messages/{messageId}", Handler: h.message},
		},
	}
}

// credentials resolves the requesting tenant's CRM credentials. A
// missing settings record is a configuration error, not a not-found.
func (h *crmHandler) credentials(r *http.Request) (crm.Credentials, error) {
	tenantID, ok := auth.TenantID(r.Context())
	if !ok {
		return crm.Credentials{}, errors.New("no tenant in request context")
	}

	cs, err := h.settings.Find(r.Context(), tenantID)
	if err != nil {
		return crm.Credentials{}, err
	}

	return crm.Credentials{
		AccessToken: cs.AccessToken,
		LocationID:  cs.LocationID,
	}, nil
}

func (h *crmHandler) calls(w http.ResponseWriter, r *http.Request) {
	contactID := r.URL.Query().Get("contactId")
	if contactID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("contactId query parameter is required"))
		return
	}

	creds, err := h.credentials(r)
	if err != nil {
		handlers.RespondError(w, h.logger, settings.MapHTTPStatus(err), err)
		return
	}

	calls, err := h.client.ListCalls(r.Context(), contactID, creds)
	if err != nil {
		handlers.RespondError(w, h.logger, crm.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"calls":     calls,
		"total":     len(calls),
		"contactId": contactID,
	})
}

func (h *crmHandler) contacts(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials(r)
	if err != nil {
		handlers.RespondError(w, h.logger, settings.MapHTTPStatus(err), err)
		return
	}

	contacts, err := h.client.ListContacts(r.Context(), creds)
	if err != nil {
		handlers.RespondError(w, h.logger, crm.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"contacts": contacts,
		"total":    len(contacts),
	})
}

func (h *crmHandler) conversations(w http.ResponseWriter, r *http.Request) {
	contactID := r.URL.Query().Get("contactId")
	if contactID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			errors.New("contactId query parameter is required"))
		return
	}

	creds, err := h.credentials(r)
	if err != nil {
		handlers.RespondError(w, h.logger, settings.MapHTTPStatus(err), err)
		return
	}

	conversations, err := h.client.ListConversations(r.Context(), contactID, creds)
	if err != nil {
		handlers.RespondError(w, h.logger, crm.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"conversations": conversations,
		"total":         len(conversations),
	})
}

func (h *crmHandler) message(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials(r)
	if err != nil {
		handlers.RespondError(w, h.logger, settings.MapHTTPStatus(err), err)
		return
	}

	msg, err := h.client.FetchMessage(r.Context(), r.PathValue("messageId"), creds)
	if err != nil {
		handlers.RespondError(w, h.logger, crm.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"id":           msg.ID,
		"type":         msg.Type,
		"direction":    msg.Direction,
		"status":       msg.Status,
		"dateAdded":    msg.DateAdded,
		"body":         msg.Body,
		"attachments":  msg.Attachments,
		"audioUrl":     msg.AudioURL(),
		"isCall":       msg.IsCall(),
		"hasRecording": msg.IsCall() && msg.AudioURL() != "",
	})
}
