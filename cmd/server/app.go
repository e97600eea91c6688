package main

import (
	"log/slog"
	"net/http"

	"github.com/diewo77/go-backoffice/internal/config"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/middleware"
	"github.com/diewo77/go-backoffice/internal/policy"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
	metrics   *metrics.Metrics
	handler   http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *policy.RouterConfig, m *metrics.Metrics, serverCfg config.ServerConfig, logger *slog.Logger) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
		metrics:   m,
	}
	app.setupRoutes()
	// metrics sits right above the mux so it sees the matched pattern
	app.handler = middleware.Chain(app.mux,
		middleware.Recover(logger),
		middleware.Logging(logger),
		middleware.NewCORS(serverCfg),
		routerCfg.Sessions.Middleware,
		m.Middleware,
	)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// Public routes
	hh := a.routerCfg.HealthHandler
	a.mux.HandleFunc("GET /health", hh.Check)
	a.mux.HandleFunc("GET /healthz", hh.Check)
	a.mux.Handle("GET /metrics", a.metrics.Handler())

	ah := a.routerCfg.AuthHandler
	a.mux.HandleFunc("GET /{$}", a.landingPage)
	a.mux.HandleFunc("GET /login", ah.Login)
	a.mux.HandleFunc("POST /login", ah.Login)
	a.mux.HandleFunc("GET /signup", ah.Signup)
	a.mux.HandleFunc("POST /signup", ah.Signup)
	a.mux.HandleFunc("POST /logout", ah.Logout)
	a.mux.Handle("POST /account/password", a.requireAuth(ah.UpdatePassword))

	// Documents
	dh := a.routerCfg.DocumentHandler
	a.mux.Handle("GET /documents", a.requireAuth(dh.List))
	a.mux.Handle("POST /documents/new", a.requireAuth(dh.New))
	a.mux.Handle("POST /documents", a.requireAuth(dh.Save))
	a.mux.Handle("POST /documents/toggle-type", a.requireAuth(dh.ToggleType))
	a.mux.Handle("POST /documents/items", a.requireAuth(dh.Items))
	a.mux.Handle("DELETE /documents/{id}", a.requireAuth(dh.Delete))
	a.mux.Handle("GET /documents/{id}/pdf", a.requireAuth(dh.PDF))
	a.mux.Handle("GET /documents/{id}/print", a.requireAuth(dh.Print))

	// Tasks
	th := a.routerCfg.TaskHandler
	a.mux.Handle("GET /tasks", a.requireAuth(th.List))
	a.mux.Handle("PUT /tasks/view", a.requireAuth(th.SetView))
	a.mux.Handle("POST /tasks", a.requireAuth(th.Create))
	a.mux.Handle("PUT /tasks/{id}", a.requireAuth(th.Update))
	a.mux.Handle("POST /tasks/{id}/toggle", a.requireAuth(th.Toggle))
	a.mux.Handle("DELETE /tasks/{id}", a.requireAuth(th.Delete))
	a.mux.Handle("POST /tasks/select", a.requireAuth(th.Select))
	a.mux.Handle("POST /tasks/select-all", a.requireAuth(th.SelectAll))
	a.mux.Handle("POST /tasks/bulk/complete", a.requireAuth(th.BulkComplete))
	a.mux.Handle("POST /tasks/bulk/delete", a.requireAuth(th.BulkDelete))
}

// requireAuth wraps a handler to require authentication.
func (a *App) requireAuth(h http.HandlerFunc) http.Handler {
	return a.routerCfg.Sessions.RequireAuth(h)
}

func (a *App) landingPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/documents", http.StatusSeeOther)
}
