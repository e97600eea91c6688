// Package authgate resolves the current session and user for the feature modules.
package authgate

import (
	"context"
	"sync"
	"time"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tablestore"
)

// Gate answers who is signed in. Both methods return nil (and no error) when
// there is no usable session.
type Gate interface {
	CurrentSession(ctx context.Context) (*auth.Session, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// SessionGate reads the session the auth middleware attached to the context and
// confirms the user row still exists. User lookups are cached for ttl.
type SessionGate struct {
	store tablestore.Client
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[uint]*cacheEntry
}

type cacheEntry struct {
	user      *models.User // nil caches a missing user
	expiresAt time.Time
}

// NewSessionGate builds a gate over the users table. ttl <= 0 disables caching.
func NewSessionGate(store tablestore.Client, ttl time.Duration) *SessionGate {
	return &SessionGate{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[uint]*cacheEntry),
	}
}

func (g *SessionGate) CurrentSession(ctx context.Context) (*auth.Session, error) {
	sess, ok := auth.SessionFromContext(ctx)
	if !ok || sess.Expired(g.now()) {
		return nil, nil
	}
	return &sess, nil
}

func (g *SessionGate) CurrentUser(ctx context.Context) (*models.User, error) {
	sess, err := g.CurrentSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	return g.lookup(ctx, sess.UserID)
}

// UserExists is meant for auth.Sessions.SetUserVerifier.
func (g *SessionGate) UserExists(ctx context.Context, uid uint) bool {
	u, err := g.lookup(ctx, uid)
	return err == nil && u != nil
}

// Invalidate drops a cached user, e.g. after a password change.
func (g *SessionGate) Invalidate(uid uint) {
	g.mu.Lock()
	delete(g.cache, uid)
	g.mu.Unlock()
}

func (g *SessionGate) lookup(ctx context.Context, uid uint) (*models.User, error) {
	if g.ttl > 0 {
		g.mu.RLock()
		entry, ok := g.cache[uid]
		g.mu.RUnlock()
		if ok && g.now().Before(entry.expiresAt) {
			return entry.user, nil
		}
	}

	var users []models.User
	err := g.store.Select(ctx, models.TableUsers, &users, tablestore.Query{
		Filters: []tablestore.Filter{tablestore.Eq("id", uid)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	var user *models.User
	if len(users) == 1 {
		user = &users[0]
	}

	if g.ttl > 0 {
		g.mu.Lock()
		g.cache[uid] = &cacheEntry{user: user, expiresAt: g.now().Add(g.ttl)}
		g.mu.Unlock()
	}
	return user, nil
}

// NullGate is selected when authentication is not configured. Nobody is ever signed in.
type NullGate struct{}

func (NullGate) CurrentSession(context.Context) (*auth.Session, error) { return nil, nil }

func (NullGate) CurrentUser(context.Context) (*models.User, error) { return nil, nil }
