package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/core/claims"
	"github.com/irsalhamdi/course-storefront/core/user"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleSignup registers a password account and logs it in. The configured
// admin email is granted the admin role on signup.
func HandleSignup(db *sqlx.DB, sm *scs.SessionManager, adminEmail string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var un user.UserNew
		if err := web.Decode(w, r, &un); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(un); err != nil {
			return weberr.InvalidInput(err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(un.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		now := time.Now().UTC()
		usr := user.User{
			ID:           validate.GenerateID(),
			Email:        strings.ToLower(un.Email),
			PasswordHash: hash,
			Role:         roleFor(un.Email, adminEmail),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, usr); err != nil {
			if errors.Is(err, user.ErrEmailTaken) {
				return weberr.Conflict(err)
			}
			return fmt.Errorf("creating user: %w", err)
		}

		if err := login(ctx, sm, usr); err != nil {
			return err
		}

		return web.Respond(ctx, w, usr, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in Login
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.InvalidInput(err)
		}

		usr, err := user.FetchByEmail(ctx, db, in.Email)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotAuthorized(err)
			}
			return fmt.Errorf("fetching user: %w", err)
		}

		if len(usr.PasswordHash) == 0 {
			return weberr.NotAuthorized(fmt.Errorf("user[%s] has no password login", usr.ID))
		}

		if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(in.Password)); err != nil {
			return weberr.NotAuthorized(fmt.Errorf("user[%s] password mismatch: %w", usr.ID, err))
		}

		if err := login(ctx, sm, usr); err != nil {
			return err
		}

		return web.Respond(ctx, w, usr, http.StatusOK)
	}
}

func HandleLogout(sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := sm.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func roleFor(email, adminEmail string) string {
	if adminEmail != "" && strings.EqualFold(email, adminEmail) {
		return claims.RoleAdmin
	}
	return claims.RoleUser
}
