package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/rate"
)

// RateLimit rejects callers that exhausted their bucket with a 429. Callers
// are keyed by remote IP.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if lim == nil {
				return handler(ctx, w, r)
			}

			if !lim.Check(clientIP(r)) {
				err := errors.New("too many requests")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
