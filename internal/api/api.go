// Package api assembles the HTTP modules: the tenant-authenticated
// dashboard surface under /api and the inbound webhook surface under
// /hooks. Both share one Domain so webhook-triggered pipeline runs and
// dashboard queries operate on the same systems.
package api

import (
	"context"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/infrastructure"
	"github.com/parleyhq/parley/internal/webhooks"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/module"
)

// NewModule creates the dashboard API module with bearer-token
// authentication, CORS, and request logging.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	domain *Domain,
	runtime *Runtime,
) (*module.Module, error) {
	authSystem, err := auth.New(ctx, &cfg.Auth, runtime.Logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(authSystem.Middleware)

	return m, nil
}

// NewHooksModule creates the unauthenticated webhook module. The
// internal trigger route carries its own shared-secret guard.
func NewHooksModule(
	cfg *config.Config,
	infra *infrastructure.Infrastructure,
	domain *Domain,
) *module.Module {
	handler := webhooks.NewHandler(
		domain.Orchestrator,
		domain.Dispatcher,
		cfg.Webhook.InternalSecret,
		infra.Logger.With("module", "hooks"),
	)

	mux := http.NewServeMux()
	registerHookRoutes(mux, handler)

	m := module.New("/hooks", mux)
	m.Use(middleware.Logger(infra.Logger))

	return m
}
