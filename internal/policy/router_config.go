// Package policy wires the collaborators chosen at startup into the HTTP handlers.
package policy

import (
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/archive"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/handlers"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/internal/tasks"
	"github.com/diewo77/go-backoffice/internal/viewstate"
)

// Deps are the variants picked from configuration. Nil members fall back to
// their null or in-memory variant.
type Deps struct {
	DB       *gorm.DB // nil when no database is configured
	Store    tablestore.Client
	Gate     authgate.Gate
	Sessions *auth.Sessions
	States   viewstate.Store
	Archive  archive.Archive
	Memo     *tasks.Memo
}

// RouterConfig holds configured handlers for the application router.
type RouterConfig struct {
	Sessions *auth.Sessions

	AuthHandler     *handlers.AuthHandler
	DocumentHandler *handlers.DocumentHandler
	TaskHandler     *handlers.TaskHandler
	HealthHandler   *handlers.HealthHandler
}

// NewRouterConfig builds every handler around deps.
//
//	cfg := policy.NewRouterConfig(policy.Deps{Store: store, Gate: gate, Sessions: sessions})
//	mux.Handle("GET /tasks", cfg.Sessions.RequireAuth(http.HandlerFunc(cfg.TaskHandler.List)))
func NewRouterConfig(deps Deps) *RouterConfig {
	if deps.Store == nil {
		deps.Store = tablestore.NullClient{}
	}
	if deps.Gate == nil {
		deps.Gate = authgate.NullGate{}
	}
	if deps.States == nil {
		deps.States = viewstate.NewMemoryStore(0)
	}
	if deps.Archive == nil {
		deps.Archive = archive.NullArchive{}
	}

	var cache handlers.UserInvalidator
	if sg, ok := deps.Gate.(*authgate.SessionGate); ok {
		// sessions of deleted users stop passing RequireAuth
		deps.Sessions.SetUserVerifier(sg.UserExists)
		cache = sg
	}

	return &RouterConfig{
		Sessions:        deps.Sessions,
		AuthHandler:     handlers.NewAuthHandler(authgate.NewAccounts(deps.Store), deps.Sessions, cache),
		DocumentHandler: handlers.NewDocumentHandler(deps.Store, deps.Gate, deps.Archive),
		TaskHandler:     handlers.NewTaskHandler(deps.Store, deps.Gate, deps.Memo, deps.States),
		HealthHandler:   handlers.NewHealthHandler(deps.DB),
	}
}
