// Package auth keeps the caller's identity in a server-side session and
// exposes it to handlers as claims.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/core/claims"
	"github.com/irsalhamdi/course-storefront/core/user"
)

const (
	userIDKey     = "user_id"
	emailKey      = "email"
	roleKey       = "role"
	oauthStateKey = "oauth_state"
)

// LoadAndSave loads the caller's session into the context and commits it
// once the rest of the chain has run.
func LoadAndSave(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			})

			sm.LoadAndSave(next).ServeHTTP(w, r.WithContext(ctx))
			return err
		}
		return h
	}
	return m
}

// Authenticate rejects requests without a logged in session and stores the
// session's claims in the context.
func Authenticate(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, ok := sessionClaims(ctx, sm)
			if !ok {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Identify attaches the session's claims when there are any and lets
// anonymous callers through.
func Identify(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if clm, ok := sessionClaims(ctx, sm); ok {
				ctx = claims.Set(ctx, clm)
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Admin is Authenticate restricted to the admin role.
func Admin(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, ok := sessionClaims(ctx, sm)
			if !ok {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			if clm.Role != claims.RoleAdmin {
				return weberr.Forbidden(fmt.Errorf("user[%s] is not an admin", clm.UserID))
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

func sessionClaims(ctx context.Context, sm *scs.SessionManager) (claims.Claims, bool) {
	id := sm.GetString(ctx, userIDKey)
	if id == "" {
		return claims.Claims{}, false
	}

	return claims.Claims{
		UserID: id,
		Email:  sm.GetString(ctx, emailKey),
		Role:   sm.GetString(ctx, roleKey),
	}, true
}

func login(ctx context.Context, sm *scs.SessionManager, usr user.User) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}

	sm.Put(ctx, userIDKey, usr.ID)
	sm.Put(ctx, emailKey, usr.Email)
	sm.Put(ctx, roleKey, usr.Role)
	return nil
}
