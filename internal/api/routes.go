package api

import (
	"net/http"

	"github.com/parleyhq/parley/internal/webhooks"
	"github.com/parleyhq/parley/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime) {
	crmHandler := newCRMHandler(domain.CRM, domain.Settings, runtime.Logger)
	pipelineHandler := newPipelineHandler(domain.Orchestrator, domain.Dispatcher, runtime.Logger)
	recordingsHandler := newRecordingsHandler(runtime.Storage, runtime.Logger)

	routes.Register(
		mux,
		domain.Transcripts.Handler().Routes(),
		domain.Settings.Handler().Routes(),
		crmHandler.routes(),
		pipelineHandler.routes(),
		recordingsHandler.routes(),
	)
}

func registerHookRoutes(mux *http.ServeMux, handler *webhooks.Handler) {
	routes.Register(mux, handler.Routes())
}
