// Package auth verifies bearer tokens and resolves the tenant identity
// for API requests. Tokens are validated against the configured OIDC
// issuer; the token subject becomes the tenant id.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/parleyhq/parley/internal/config"
)

// System verifies bearer tokens and yields the tenant id they carry.
type System interface {
	// Verify validates a raw bearer token and returns the tenant id.
	Verify(ctx context.Context, rawToken string) (string, error)
	// Middleware wraps a handler with bearer-token verification,
	// storing the tenant id in the request context.
	Middleware(next http.Handler) http.Handler
}

type system struct {
	cfg      *config.AuthConfig
	logger   *slog.Logger
	verifier *oidc.IDTokenVerifier
}

// New creates an auth system backed by OIDC discovery against the
// configured issuer.
func New(ctx context.Context, cfg *config.AuthConfig, logger *slog.Logger) (System, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc issuer: %w", err)
	}

	return &system{
		cfg:      cfg,
		logger:   logger.With("system", "auth"),
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (s *system) Verify(ctx context.Context, rawToken string) (string, error) {
	token, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	if token.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return token.Subject, nil
}

func (s *system) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			unauthorized(w)
			return
		}

		tenantID, err := s.Verify(r.Context(), raw)
		if err != nil {
			s.logger.Warn("token rejected", "error", err)
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
