package handlers

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/db"
)

// HealthHandler reports liveness and, when a database is configured, its reachability.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler accepts a nil db when the app runs without a database.
func NewHealthHandler(gdb *gorm.DB) *HealthHandler {
	return &HealthHandler{db: gdb}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		httpx.JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "not_configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, h.db); err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Database: "unreachable", Error: err.Error()})
		return
	}
	httpx.JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}
