// Package auth issues and validates the signed session cookie and exposes the
// authenticated user to handlers through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const (
	sessionCookieName = "session"
	sessionCtxKey     = ctxKey("session")
	issuer            = "go-backoffice"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
)

// Session is what a valid cookie resolves to.
type Session struct {
	UserID    uint
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserVerifier validates that a session's user still exists/is allowed.
type UserVerifier func(ctx context.Context, uid uint) bool

// Sessions signs and parses session cookies. Build one at startup with NewSessions.
type Sessions struct {
	secret   []byte
	ttl      time.Duration
	verifier UserVerifier
	now      func() time.Time
}

// NewSessions returns a session manager signing with secret; ttl <= 0 means 14 days.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SetUserVerifier configures the verifier used by RequireAuth. If nil, no extra verification is performed.
func (s *Sessions) SetUserVerifier(v UserVerifier) { s.verifier = v }

// Issue returns a signed token for the user.
func (s *Sessions) Issue(userID uint, email string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session: %w", err)
	}
	return signed, exp, nil
}

// CreateSession sets a signed cookie for the user.
func (s *Sessions) CreateSession(w http.ResponseWriter, userID uint, email string) error {
	token, exp, err := s.Issue(userID, email)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
	return nil
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// Parse validates a token and returns its session.
func (s *Sessions) Parse(token string) (Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, fmt.Errorf("parsing session: %w", err)
	}
	id64, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id64 == 0 {
		return Session{}, errors.New("invalid session subject")
	}
	sess := Session{UserID: uint(id64), Email: c.Email}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}

// ParseRequest reads the session from the cookie or an "Authorization: Bearer" header.
func (s *Sessions) ParseRequest(r *http.Request) (Session, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return s.Parse(strings.TrimPrefix(h, "Bearer "))
	}
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return Session{}, ErrNoSession
	}
	return s.Parse(c.Value)
}

// WithSession stores the session in context.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

// WithUserID stores a bare user id in context; used by tests and internal callers.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return WithSession(ctx, Session{UserID: userID})
}

// SessionFromContext extracts the session.
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey).(Session)
	if !ok || sess.UserID == 0 {
		return Session{}, false
	}
	return sess, true
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	sess, ok := SessionFromContext(ctx)
	return sess.UserID, ok
}

// Middleware attaches the session to the request context if present and valid.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, err := s.ParseRequest(r); err == nil {
			r = r.WithContext(WithSession(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects to /login if not authenticated (HTML) or returns 401 JSON.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if ok && s.verifier != nil && !s.verifier(r.Context(), uid) {
			// Session refers to a non-existing/disabled user: clear and treat as unauthorized.
			ClearSession(w)
			ok = false
		}
		if !ok {
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"unauthorized"}`)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
