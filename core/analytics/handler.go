package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/core/claims"
	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

type Tracked struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func HandleTrack(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var en EventNew
		if err := web.Decode(w, r, &en); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(en); err != nil {
			return weberr.InvalidInput(err)
		}

		props := types.JSONText("{}")
		if len(en.Properties) > 0 {
			b, err := json.Marshal(en.Properties)
			if err != nil {
				return weberr.BadRequest(fmt.Errorf("encoding properties: %w", err))
			}
			props = b
		}

		ev := Event{
			ID:         validate.GenerateID(),
			Name:       en.Event,
			Properties: props,
			UserAgent:  r.UserAgent(),
			IPAddress:  clientIP(r),
			CreatedAt:  time.Now().UTC(),
		}
		if en.Timestamp != nil {
			ev.CreatedAt = en.Timestamp.UTC()
		}
		if clm, err := claims.Get(ctx); err == nil {
			ev.UserID = &clm.UserID
		}

		if err := Record(ctx, db, ev); err != nil {
			return fmt.Errorf("recording event: %w", err)
		}

		return web.Respond(ctx, w, Tracked{ID: ev.ID, Message: "event stored"}, http.StatusCreated)
	}
}

func HandleOverview(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		now := time.Now().UTC()
		period, since := Since(r.URL.Query().Get("period"), now)

		ov, err := QueryOverview(ctx, db, since, now)
		if err != nil {
			return fmt.Errorf("building overview: %w", err)
		}

		return web.Respond(ctx, w, Report{
			Overview:  ov,
			Period:    period,
			StartDate: since,
			EndDate:   now,
		}, http.StatusOK)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
