package api

import (
	"github.com/parleyhq/parley/internal/analysis"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/crm"
	"github.com/parleyhq/parley/internal/pipeline"
	"github.com/parleyhq/parley/internal/settings"
	"github.com/parleyhq/parley/internal/speech"
	"github.com/parleyhq/parley/internal/transcripts"
)

// Domain holds all domain systems that comprise the service.
type Domain struct {
	Settings     settings.System
	Transcripts  transcripts.System
	CRM          *crm.Client
	Speech       *speech.Client
	Analysis     *analysis.Engine
	Orchestrator *pipeline.Orchestrator
	Dispatcher   *pipeline.Dispatcher
}

// NewDomain creates all domain systems from the runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	settingsSystem := settings.New(
		runtime.Database.Connection(),
		runtime.Logger,
	)

	transcriptsSystem := transcripts.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	crmClient := crm.New(&cfg.CRM, runtime.Logger)
	speechClient := speech.New(&cfg.Speech, runtime.Logger)
	analysisEngine := analysis.New(&cfg.Analysis, runtime.Logger)

	orchestrator := pipeline.New(
		settingsSystem,
		transcriptsSystem,
		crmClient,
		speechClient,
		analysisEngine,
		runtime.Storage,
		runtime.Logger,
	)

	dispatcher := pipeline.NewDispatcher(runtime.Lifecycle, runtime.Logger)

	return &Domain{
		Settings:     settingsSystem,
		Transcripts:  transcriptsSystem,
		CRM:          crmClient,
		Speech:       speechClient,
		Analysis:     analysisEngine,
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
	}
}
