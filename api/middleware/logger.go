package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

// Logger logs the start and completion of every request. Completed requests
// are logged at a level matching their status class.
func Logger(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			entry := log.WithFields(logrus.Fields{
				"req_id":     ContextRequestID(ctx),
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteaddr": r.RemoteAddr,
				"useragent":  r.UserAgent(),
			})

			entry.Debug("started")
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}

			entry = entry.WithFields(logrus.Fields{
				"statuscode": status,
				"bytes":      lw.BytesWritten(),
				"took_ms":    time.Since(start).Milliseconds(),
			})

			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("completed")
			case status >= http.StatusBadRequest:
				entry.Warn("completed")
			default:
				entry.Info("completed")
			}
			return err
		}
		return h
	}
	return m
}
