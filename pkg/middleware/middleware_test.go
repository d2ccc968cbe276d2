package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parleyhq/parley/pkg/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestApplyOrder(t *testing.T) {
	var order []string
	mw := middleware.New()

	record := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	mw.Use(record("outer"))
	mw.Use(record("inner"))

	handler := mw.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Errorf("order = %v, want [outer inner handler]", order)
	}
}

func TestSharedSecret(t *testing.T) {
	handler := middleware.SharedSecret("trigger-secret")(okHandler())

	t.Run("matching secret passes", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set(middleware.SharedSecretHeader, "trigger-secret")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing secret rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if got := rec.Body.String(); got != `{"error":"unauthorized"}` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set(middleware.SharedSecretHeader, "guess")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestCORS(t *testing.T) {
	t.Run("disabled passes through without headers", func(t *testing.T) {
		handler := middleware.CORS(&middleware.CORSConfig{Enabled: false})(okHandler())

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://app.example.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("headers set while disabled")
		}
	})

	t.Run("allowed origin gets policy headers", func(t *testing.T) {
		handler := middleware.CORS(&middleware.CORSConfig{
			Enabled:          true,
			Origins:          []string{"https://app.example.com"},
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           3600,
		})(okHandler())

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://app.example.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("allow-origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
			t.Errorf("allow-methods = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("allow-credentials = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Max-Age"); got != "3600" {
			t.Errorf("max-age = %q", got)
		}
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		handler := middleware.CORS(&middleware.CORSConfig{
			Enabled: true,
			Origins: []string{"https://app.example.com"},
		})(okHandler())

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("headers set for unknown origin")
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		var called bool
		handler := middleware.CORS(&middleware.CORSConfig{
			Enabled: true,
			Origins: []string{"https://app.example.com"},
		})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest("OPTIONS", "/", nil)
		req.Header.Set("Origin", "https://app.example.com")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if called {
			t.Error("handler ran for preflight")
		}
	})
}

func TestLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var called bool
	handler := middleware.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/transcripts", nil))

	if !called || rec.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d", called, rec.Code)
	}
}

func TestCORSConfig(t *testing.T) {
	t.Run("finalize applies defaults", func(t *testing.T) {
		cfg := middleware.CORSConfig{}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("finalize: %v", err)
		}
		if len(cfg.AllowedMethods) != 5 || len(cfg.AllowedHeaders) != 2 || cfg.MaxAge != 3600 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("env overrides apply", func(t *testing.T) {
		t.Setenv("TEST_CORS_ENABLED", "true")
		t.Setenv("TEST_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

		cfg := middleware.CORSConfig{}
		err := cfg.Finalize(&middleware.CORSEnv{
			Enabled: "TEST_CORS_ENABLED",
			Origins: "TEST_CORS_ORIGINS",
		})
		if err != nil {
			t.Fatalf("finalize: %v", err)
		}
		if !cfg.Enabled {
			t.Error("enabled not set from env")
		}
		if len(cfg.Origins) != 2 || cfg.Origins[1] != "https://b.example.com" {
			t.Errorf("origins = %v", cfg.Origins)
		}
	})

	t.Run("merge overlays non-zero fields", func(t *testing.T) {
		base := middleware.CORSConfig{
			Origins: []string{"https://base.example.com"},
			MaxAge:  3600,
		}
		base.Merge(&middleware.CORSConfig{
			Enabled: true,
			Origins: []string{"https://overlay.example.com"},
			MaxAge:  7200,
		})

		if !base.Enabled || base.MaxAge != 7200 {
			t.Errorf("base = %+v", base)
		}
		if len(base.Origins) != 1 || base.Origins[0] != "https://overlay.example.com" {
			t.Errorf("origins = %v", base.Origins)
		}
	})
}
