package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/notice"
	"github.com/diewo77/go-backoffice/validation"
	"github.com/diewo77/go-backoffice/view"
)

// UserInvalidator drops cached user lookups; *authgate.SessionGate implements it.
type UserInvalidator interface {
	Invalidate(uid uint)
}

type AuthHandler struct {
	accounts *authgate.Accounts
	sessions *auth.Sessions
	cache    UserInvalidator
}

// NewAuthHandler wires sign-up and sign-in. cache may be nil.
func NewAuthHandler(accounts *authgate.Accounts, sessions *auth.Sessions, cache UserInvalidator) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions, cache: cache}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func isJSONBody(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if isJSONBody(r) {
		err := httpx.DecodeJSON(r, &c)
		return c, err
	}
	c.Email = r.FormValue("email")
	c.Password = r.FormValue("password")
	c.Name = r.FormValue("name")
	return c, nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.renderForm(w, r, "login.html", credentials{}, "")
		return
	}

	c, err := readCredentials(r)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	user, err := h.accounts.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		h.fail(w, r, "login.html", c, err)
		return
	}
	h.startSession(w, r, user.ID, user.Email)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.renderForm(w, r, "signup.html", credentials{}, "")
		return
	}

	c, err := readCredentials(r)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	user, err := h.accounts.SignUp(r.Context(), c.Email, c.Password, c.Name)
	if err != nil {
		h.fail(w, r, "signup.html", c, err)
		return
	}
	slog.InfoContext(r.Context(), "user signed up", "user_id", user.ID)
	h.startSession(w, r, user.ID, user.Email)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID uint, email string) {
	if err := h.sessions.CreateSession(w, userID, email); err != nil {
		slog.ErrorContext(r.Context(), "create session", "user_id", userID, "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if isJSONBody(r) || httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "email": email})
		return
	}
	http.Redirect(w, r, "/documents", http.StatusSeeOther)
}

// fail re-renders the form for browsers and answers JSON otherwise.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, page string, c credentials, err error) {
	if isJSONBody(r) || httpx.WantsJSON(r) {
		writeError(w, r, err)
		return
	}
	msg := notice.MessageFor(err)
	switch {
	case errors.Is(err, authgate.ErrInvalidCredentials):
		msg = "Invalid email or password"
	case errors.Is(err, authgate.ErrEmailTaken):
		msg = "Email already exists"
	case !errors.Is(err, validation.ErrInvalid):
		slog.ErrorContext(r.Context(), "auth request failed", "page", page, "error", err)
		msg = notice.FallbackMessage
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusFor(err))
	h.renderForm(w, r, page, c, msg)
}

func (h *AuthHandler) renderForm(w http.ResponseWriter, r *http.Request, page string, c credentials, msg string) {
	data := map[string]any{"Email": c.Email, "Name": c.Name, "Error": msg}
	if err := view.Render(w, r, page, data); err != nil {
		http.Error(w, "Failed to render template: "+err.Error(), http.StatusInternalServerError)
	}
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type passwordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

// UpdatePassword changes the signed-in user's password.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req passwordRequest
	if isJSONBody(r) {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
	} else {
		req.Current, req.New = r.FormValue("current_password"), r.FormValue("new_password")
	}
	if err := h.accounts.UpdatePassword(r.Context(), userID, req.Current, req.New); err != nil {
		writeError(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(userID)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"banner": notice.Success("Password updated", time.Now())})
}
