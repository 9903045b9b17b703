// Package lead collects newsletter and waitlist sign ups.
package lead

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/jmoiron/sqlx"
)

const defaultSource = "website"

var ErrDuplicate = errors.New("email already subscribed")

type Lead struct {
	ID        string    `json:"id" db:"lead_id"`
	Email     string    `json:"email" db:"email"`
	Source    string    `json:"source" db:"source"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type LeadNew struct {
	Email  string `json:"email"`
	Source string `json:"source" validate:"max=100"`
}

type Created struct {
	ID string `json:"id"`
}

func Create(ctx context.Context, db sqlx.ExtContext, l Lead) error {
	const q = `
	INSERT INTO leads
		(lead_id, email, source, created_at)
	VALUES
		(:lead_id, :email, :source, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, l); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ln LeadNew
		if err := web.Decode(w, r, &ln); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		email := strings.ToLower(strings.TrimSpace(ln.Email))
		if err := validate.Email(email); err != nil {
			return weberr.InvalidInput(err)
		}
		if err := validate.Check(ln); err != nil {
			return weberr.InvalidInput(err)
		}

		l := Lead{
			ID:        validate.GenerateID(),
			Email:     email,
			Source:    ln.Source,
			CreatedAt: time.Now().UTC(),
		}
		if l.Source == "" {
			l.Source = defaultSource
		}

		if err := Create(ctx, db, l); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return weberr.Conflict(err)
			}
			return fmt.Errorf("creating lead: %w", err)
		}

		return web.Respond(ctx, w, Created{ID: l.ID}, http.StatusCreated)
	}
}
