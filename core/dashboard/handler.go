package dashboard

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
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/progress"
	"github.com/jmoiron/sqlx"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		owned, err := course.ListOwned(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing owned courses: %w", err)
		}

		ps, err := progress.List(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing progress: %w", err)
		}

		d := Build(Owner{ID: clm.UserID, Email: clm.Email}, owned, ps, time.Now().UTC())
		return web.Respond(ctx, w, d, http.StatusOK)
	}
}

// HandleAnalytics reports the caller's own activity over ?period=.
func HandleAnalytics(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		now := time.Now().UTC()
		period, since := analytics.Since(r.URL.Query().Get("period"), now)

		evs, err := analytics.ListByUser(ctx, db, clm.UserID, since)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}

		ps, err := progress.ListSince(ctx, db, clm.UserID, since)
		if err != nil {
			return fmt.Errorf("listing progress history: %w", err)
		}

		return web.Respond(ctx, w, Report{
			Period:           period,
			StartDate:        since,
			EndDate:          now,
			Events:           SummarizeEvents(period, evs),
			Progress:         SummarizeProgress(ps),
			ActivityTimeline: Timeline(evs),
		}, http.StatusOK)
	}
}
