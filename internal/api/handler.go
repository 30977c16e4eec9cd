package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlassist/sqlassist/internal/auth"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/history"
	"github.com/sqlassist/sqlassist/internal/library"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

type Converter interface {
	Convert(ctx context.Context, sess *session.Session, req nl2sql.Request) (nl2sql.Result, error)
}

type SchemaLibrary interface {
	Save(ctx context.Context, name string, doc *schema.Schema) (library.Entry, error)
	Load(ctx context.Context, name string) (*schema.Schema, error)
	List(ctx context.Context) ([]library.Entry, error)
	Delete(ctx context.Context, name string) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Sessions          *session.Manager
	Converter         Converter
	History           history.Lister
	Library           SchemaLibrary
	UI                http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(cfg.Session.IdleTTL)
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"service":       cfg.Service.Name,
			"auth_required": cfg.Auth.Required,
		})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/examples", handleExamples)

	protected := http.NewServeMux()
	protectedRoutes := []string{}
	route := func(pattern string, handler http.Handler) {
		protected.Handle(pattern, handler)
		protectedRoutes = append(protectedRoutes, pattern)
	}
	withSession := func(fn func(Dependencies, config.Config, http.ResponseWriter, *http.Request)) http.Handler {
		return sessionMiddleware(cfg.Session, deps.Sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fn(deps, cfg, w, r)
		}))
	}
	converter := auth.RequireRole(auth.RoleConverter)
	libraryWriter := auth.RequireRole(auth.RoleLibraryWriter)
	historyReader := auth.RequireRole(auth.RoleHistoryReader)

	route("GET /v1/session", converter(withSession(handleGetSession)))
	route("GET /v1/schema", converter(withSession(handleGetSchema)))
	route("POST /v1/schema/tables", converter(withSession(handleAddTable)))
	route("DELETE /v1/schema", converter(withSession(handleClearSchema)))
	route("POST /v1/schema/import", converter(withSession(handleImportSchema)))
	route("GET /v1/schema/export", converter(withSession(handleExportSchema)))
	route("POST /v1/convert", converter(withSession(handleConvert)))
	route("GET /v1/history", historyReader(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListHistory(deps, cfg, w, r)
	})))
	route("GET /v1/history/export", historyReader(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleExportHistory(deps, cfg, w, r)
	})))
	route("GET /v1/library", converter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListLibrary(deps, w, r)
	})))
	route("PUT /v1/library/{name}", libraryWriter(withSession(handleSaveLibrary)))
	route("GET /v1/library/{name}", converter(withSession(handleLoadLibrary)))
	route("DELETE /v1/library/{name}", libraryWriter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDeleteLibrary(deps, w, r)
	})))

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	protectedHandler = limitBody(cfg.HTTP.MaxBodyBytes)(protectedHandler)
	for _, pattern := range protectedRoutes {
		mux.Handle(pattern, protectedHandler)
	}
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckHistory reports the history database as not ready when it cannot be
// pinged. A nil pinger means history is disabled.
func CheckHistory(pinger interface{ HealthCheck(context.Context) error }) ReadinessCheck {
	if pinger == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := pinger.HealthCheck(ctx); err != nil {
			return errors.New("history database is not reachable")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func limitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
