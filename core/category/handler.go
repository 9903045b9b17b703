package category

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

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cats, err := ListActive(ctx, db)
		if err != nil {
			return fmt.Errorf("listing categories: %w", err)
		}

		return web.Respond(ctx, w, Listing{Categories: Tree(cats), Flat: cats}, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CategoryNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.InvalidInput(err)
		}

		c := Category{
			ID:          validate.GenerateID(),
			Name:        cn.Name,
			Slug:        strings.ToLower(strings.TrimSpace(cn.Slug)),
			Description: cn.Description,
			ParentID:    cn.ParentID,
			SortOrder:   cn.SortOrder,
			Active:      true,
			CreatedAt:   time.Now().UTC(),
		}

		if err := Create(ctx, db, c); err != nil {
			switch {
			case errors.Is(err, ErrSlugTaken):
				return weberr.Conflict(err)
			case database.IsForeignKeyViolation(err):
				return weberr.InvalidInput(errors.New("parent category does not exist"))
			}
			return fmt.Errorf("creating category: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}
