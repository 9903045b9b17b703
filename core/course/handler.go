package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/core/claims"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func HandleSearch(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		q := r.URL.Query()
		f := Filter{
			Query:      q.Get("q"),
			CategoryID: q.Get("category"),
			Tag:        q.Get("tag"),
			MinPrice:   web.QueryIntPtr(r, "minPrice"),
			MaxPrice:   web.QueryIntPtr(r, "maxPrice"),
			SortBy:     q.Get("sortBy"),
			Page:       web.QueryInt(r, "page", 1),
			Limit:      web.QueryInt(r, "limit", defaultLimit),
		}.Normalize()

		if f.CategoryID != "" {
			if err := validate.CheckID(f.CategoryID); err != nil {
				return weberr.InvalidInput(err)
			}
		}

		courses, total, err := Search(ctx, db, f)
		if err != nil {
			return fmt.Errorf("searching courses: %w", err)
		}

		for i := range courses {
			courses[i] = courses[i].Public()
		}

		return web.Respond(ctx, w, SearchResult{
			Courses:    courses,
			Pagination: Paginate(f.Page, f.Limit, total),
			Filters:    f,
		}, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.InvalidInput(err)
		}

		c, err := FetchActive(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course: %w", err)
		}

		if err := IncrementViews(ctx, db, id); err != nil {
			log.WithField("course_id", id).Warnf("counting view: %v", err)
		}

		return web.Respond(ctx, w, c.Public(), http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courses, err := ListOwned(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing owned courses: %w", err)
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.InvalidInput(err)
		}

		now := time.Now().UTC()
		c := Course{
			ID:            validate.GenerateID(),
			Title:         cn.Title,
			Subtitle:      cn.Subtitle,
			Description:   cn.Description,
			Price:         cn.Price,
			DiscountPrice: cn.DiscountPrice,
			CategoryID:    cn.CategoryID,
			Tag:           cn.Tag,
			CommunityLink: cn.CommunityLink,
			ThumbnailURL:  cn.ThumbnailURL,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := c.Validate(); err != nil {
			return weberr.InvalidInput(err)
		}

		if err := Create(ctx, db, c); err != nil {
			if database.IsForeignKeyViolation(err) {
				return weberr.InvalidInput(errors.New("category does not exist"))
			}
			return fmt.Errorf("creating course: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.InvalidInput(err)
		}

		var up CourseUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(up); err != nil {
			return weberr.InvalidInput(err)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course: %w", err)
		}

		c = up.Apply(c)
		c.UpdatedAt = time.Now().UTC()
		if err := c.Validate(); err != nil {
			return weberr.InvalidInput(err)
		}

		if err := Update(ctx, db, c); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			if database.IsForeignKeyViolation(err) {
				return weberr.InvalidInput(errors.New("category does not exist"))
			}
			return fmt.Errorf("updating course: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleToggle(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.InvalidInput(err)
		}

		var up ActiveUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if up.Active == nil {
			return weberr.InvalidInput(errors.New("invalid is_active value"))
		}

		if err := SetActive(ctx, db, id, *up.Active); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("toggling course: %w", err)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			return fmt.Errorf("fetching toggled course: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.InvalidInput(err)
		}

		if err := Delete(ctx, db, id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("deleting course: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
