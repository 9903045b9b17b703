package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/course-storefront/api/middleware"
	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/core/analytics"
	"github.com/irsalhamdi/course-storefront/core/auth"
	"github.com/irsalhamdi/course-storefront/core/category"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/dashboard"
	"github.com/irsalhamdi/course-storefront/core/lead"
	"github.com/irsalhamdi/course-storefront/core/payment"
	"github.com/irsalhamdi/course-storefront/core/progress"
	"github.com/irsalhamdi/course-storefront/core/user"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/rate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin       string
	Log              logrus.FieldLogger
	DB               *sqlx.DB
	Session          *scs.SessionManager
	Payments         *payment.Handlers
	Limiter          *rate.Limiter
	Providers        map[string]auth.Provider
	LoginRedirectURL string
	AdminEmail       string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	identify := auth.Identify(cfg.Session)
	limit := middleware.RateLimit(cfg.Limiter)

	a.Handle(http.MethodGet, "/readiness", handleReadiness(cfg.DB))

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session, cfg.AdminEmail), limit)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limit)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers), limit)
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL, cfg.AdminEmail))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/dashboard", dashboard.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/analytics", dashboard.HandleAnalytics(cfg.DB), authen)

	a.Handle(http.MethodGet, "/courses/search", course.HandleSearch(cfg.DB))
	a.Handle(http.MethodGet, "/courses/owned", course.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB, cfg.Log))
	a.Handle(http.MethodPost, "/admin/courses", course.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/admin/courses/{id}", course.HandleUpdate(cfg.DB), admin)
	a.Handle(http.MethodPatch, "/admin/courses/{id}/toggle", course.HandleToggle(cfg.DB), admin)
	a.Handle(http.MethodDelete, "/admin/courses/{id}", course.HandleDelete(cfg.DB), admin)

	a.Handle(http.MethodGet, "/categories", category.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/admin/categories", category.HandleCreate(cfg.DB), admin)

	a.Handle(http.MethodPost, "/payments/razorpay/order", cfg.Payments.CreateOrder(), authen)
	a.Handle(http.MethodPost, "/payments/razorpay/verify", cfg.Payments.Verify(), authen)
	a.Handle(http.MethodPost, "/payments/razorpay/webhook", cfg.Payments.Webhook())

	a.Handle(http.MethodGet, "/progress", progress.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/progress", progress.HandleSave(cfg.DB, cfg.Log), authen)

	a.Handle(http.MethodPost, "/leads", lead.HandleCreate(cfg.DB), limit)

	a.Handle(http.MethodPost, "/analytics/events", analytics.HandleTrack(cfg.DB), identify, limit)
	a.Handle(http.MethodGet, "/admin/analytics", analytics.HandleOverview(cfg.DB), admin)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}

func handleReadiness(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := database.StatusCheck(ctx, db); err != nil {
			return err
		}
		return web.Respond(ctx, w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}
