package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/documents"
	"github.com/diewo77/go-backoffice/internal/notice"
	"github.com/diewo77/go-backoffice/internal/render"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/internal/tasks"
	"github.com/diewo77/go-backoffice/validation"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var stepErr *documents.StepError
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrSessionExpired), errors.Is(err, auth.ErrNoSession),
		errors.Is(err, authgate.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, documents.ErrConfirmationRequired), errors.Is(err, tasks.ErrConfirmationRequired):
		return http.StatusConflict
	case errors.Is(err, documents.ErrNotFound), errors.Is(err, tasks.ErrNotFound),
		errors.Is(err, documents.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, documents.ErrInvalidID), errors.Is(err, render.ErrMalformedDocument):
		return http.StatusBadRequest
	case errors.Is(err, authgate.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, tablestore.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &stepErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorCode(status int) string {
	switch status {
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusConflict:
		return "conflict"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusServiceUnavailable:
		return "not_configured"
	case http.StatusBadGateway:
		return "upstream_error"
	}
	return "internal_error"
}

// writeError answers with a JSON error carrying the banner message. Validation
// failures include the per-field violations as details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	if status == http.StatusUnauthorized && !httpx.WantsJSON(r) && r.Method == http.MethodGet {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	var details any = notice.MessageFor(err)
	var v validation.Violations
	if errors.As(err, &v) {
		details = v
	}
	httpx.JSONError(w, status, errorCode(status), details)
}

// confirmed reads the ?confirm= flag destructive routes require.
func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

func pathID(r *http.Request) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, documents.ErrInvalidID
	}
	return uint(n), nil
}
