package progress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/core/analytics"
	"github.com/irsalhamdi/course-storefront/core/claims"
	"github.com/irsalhamdi/course-storefront/core/entitlement"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func HandleSave(db *sqlx.DB, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var up ProgressUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(up); err != nil {
			return weberr.InvalidInput(err)
		}

		owned, err := entitlement.Exists(ctx, db, clm.UserID, up.CourseID)
		if err != nil {
			return fmt.Errorf("checking course access: %w", err)
		}
		if !owned {
			return weberr.NewError(
				fmt.Errorf("user[%s] does not own course[%s]", clm.UserID, up.CourseID),
				"course not found or access denied",
				http.StatusNotFound,
			)
		}

		pct := Clamp(*up.Percentage)
		if err := Save(ctx, db, clm.UserID, up.CourseID, pct, up.Completed, time.Now().UTC()); err != nil {
			return fmt.Errorf("updating progress: %w", err)
		}

		props := map[string]any{
			"course_id":           up.CourseID,
			"progress_percentage": pct,
			"completed":           up.Completed,
		}
		if err := analytics.Track(ctx, db, clm.UserID, "progress_updated", props); err != nil {
			log.WithField("user_id", clm.UserID).Warnf("tracking progress: %v", err)
		}

		return web.Respond(ctx, w, Updated{Success: true, Progress: pct, Completed: up.Completed}, http.StatusOK)
	}
}

// HandleShow returns all of the caller's progress, or a single course's when
// courseId is given.
func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := r.URL.Query().Get("courseId")
		if courseID == "" {
			ps, err := List(ctx, db, clm.UserID)
			if err != nil {
				return fmt.Errorf("listing progress: %w", err)
			}
			return web.Respond(ctx, w, map[string]any{"progress": ps}, http.StatusOK)
		}

		if err := validate.CheckID(courseID); err != nil {
			return weberr.InvalidInput(err)
		}

		p, err := Fetch(ctx, db, clm.UserID, courseID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return web.Respond(ctx, w, map[string]any{"progress": nil}, http.StatusOK)
			}
			return fmt.Errorf("fetching progress: %w", err)
		}

		return web.Respond(ctx, w, map[string]any{"progress": p}, http.StatusOK)
	}
}
