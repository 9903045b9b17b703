package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/api/weberr"
	"github.com/irsalhamdi/course-storefront/core/claims"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/entitlement"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/sirupsen/logrus"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"
)

// Courses looks up purchasable courses.
type Courses interface {
	FetchActive(ctx context.Context, id string) (course.Course, error)
}

type Handlers struct {
	cfg     Config
	gw      Gateway
	courses Courses
	grants  Granter
	dedupe  Deduper
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewHandlers(cfg Config, gw Gateway, courses Courses, grants Granter, dedupe Deduper, log logrus.FieldLogger) *Handlers {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.SuccessPath == "" {
		cfg.SuccessPath = "/success"
	}
	if dedupe == nil {
		dedupe = NopDeduper{}
	}
	return &Handlers{
		cfg:     cfg,
		gw:      gw,
		courses: courses,
		grants:  grants,
		dedupe:  dedupe,
		log:     log,
		now:     time.Now,
	}
}

// Receipt identifies an order in the gateway dashboard. The gateway caps
// receipts at 40 characters, so only a prefix of the course id is kept.
func Receipt(courseID string, at time.Time) string {
	id := strings.ReplaceAll(courseID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return fmt.Sprintf("course_%s_%d", id, at.UnixMilli())
}

// CreateOrder prices the course and opens a gateway order for the caller.
func (h *Handlers) CreateOrder() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req OrderRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if req.CourseID == "" {
			return weberr.InvalidInput(errors.New("missing course_id"))
		}
		if err := validate.CheckID(req.CourseID); err != nil {
			return weberr.InvalidInput(errors.New("invalid course_id"))
		}

		c, err := h.courses.FetchActive(ctx, req.CourseID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NewError(err, "course not found", http.StatusNotFound)
			}
			return fmt.Errorf("fetching course: %w", err)
		}

		params := OrderParams{
			Amount:   c.MinorUnits(),
			Currency: h.cfg.Currency,
			Receipt:  Receipt(c.ID, h.now()),
			Notes:    Notes{CourseID: c.ID, UserID: clm.UserID},
		}

		ord, err := h.gw.CreateOrder(ctx, params)
		if err != nil {
			if errors.Is(err, ErrMisconfigured) {
				return weberr.Misconfigured(err)
			}
			return weberr.BadGateway(err, weberr.WithFields(map[string]interface{}{
				"course_id": c.ID,
				"amount":    params.Amount,
			}))
		}

		h.log.WithFields(logrus.Fields{
			"order_id":  ord.ID,
			"course_id": c.ID,
			"user_id":   clm.UserID,
			"amount":    ord.Amount,
		}).Info("order created")

		return web.Respond(ctx, w, OrderResponse{
			OrderID:  ord.ID,
			Amount:   ord.Amount,
			Currency: ord.Currency,
			KeyID:    h.cfg.KeyID,
			Course:   OrderCourse{ID: c.ID, Title: c.Title},
			User:     OrderUser{ID: clm.UserID, Email: clm.Email},
		}, http.StatusOK)
	}
}

// Verify grants access once the client proves the checkout succeeded. The
// signature is the only thing standing between a forged request and a grant.
func (h *Handlers) Verify() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req VerifyRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if !req.Complete() {
			return weberr.InvalidInput(errors.New("missing parameters"))
		}

		if h.cfg.KeySecret == "" {
			return weberr.Misconfigured(ErrMisconfigured)
		}

		fields := weberr.WithFields(map[string]interface{}{
			"order_id":   req.OrderID,
			"payment_id": req.PaymentID,
			"course_id":  req.CourseID,
		})

		if !VerifyPayment(h.cfg.KeySecret, req.OrderID, req.PaymentID, req.Signature) {
			return weberr.InvalidInput(errors.New("invalid signature"), fields)
		}

		// The signature does not cover the course, so the order's own notes
		// decide what was bought and by whom.
		ord, err := h.gw.FetchOrder(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, ErrMisconfigured) {
				return weberr.Misconfigured(err)
			}
			return weberr.BadGateway(err, fields)
		}
		if ord.Notes.CourseID != req.CourseID || ord.Notes.UserID != clm.UserID {
			return weberr.InvalidInput(errors.New("order does not match course"), fields)
		}

		if err := h.grants.Grant(ctx, clm.UserID, req.CourseID, entitlement.SourceVerify); err != nil {
			switch {
			case errors.Is(err, entitlement.ErrInvalid):
				return weberr.InvalidInput(err, fields)
			case errors.Is(err, entitlement.ErrUnknownReference):
				return weberr.NewError(err, "course not found", http.StatusNotFound, fields)
			}
			return fmt.Errorf("granting course after verification: %w", err)
		}

		return web.Respond(ctx, w, VerifyResponse{
			OK:         true,
			RedirectTo: h.cfg.SuccessPath + "?course_id=" + url.QueryEscape(req.CourseID),
		}, http.StatusOK)
	}
}

// Webhook consumes gateway events. It answers 2xx for everything it will
// never be able to act on so the gateway stops retrying, and non-2xx only for
// bad signatures and transient failures.
func (h *Handlers) Webhook() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		body, err := web.Raw(w, r)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		if h.cfg.WebhookSecret == "" {
			return weberr.Misconfigured(ErrNoWebhook)
		}

		if !VerifyWebhook(h.cfg.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
			return weberr.InvalidInput(errors.New("invalid signature"))
		}

		var hdr EventHeader
		if err := json.Unmarshal(body, &hdr); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode webhook event: %w", err))
		}

		eventID := r.Header.Get(EventIDHeader)
		log := h.log.WithFields(logrus.Fields{
			"event":    hdr.Event,
			"event_id": eventID,
		})

		// Payloads of other event types are never read, whatever their shape.
		if hdr.Event != EventPaymentCaptured {
			log.Debug("ignoring webhook event")
			return web.Respond(ctx, w, Ack{OK: true}, http.StatusOK)
		}

		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode captured payment: %w", err))
		}

		entity := ev.Payload.Payment.Entity
		log = log.WithFields(logrus.Fields{
			"payment_id": entity.ID,
			"order_id":   entity.OrderID,
		})

		notes := entity.Notes
		if !notes.Complete() {
			log.Warn("captured payment without course notes")
			return web.Respond(ctx, w, Ack{OK: true}, http.StatusOK)
		}

		if eventID != "" {
			seen, err := h.dedupe.Seen(ctx, eventID)
			if err != nil {
				log.Warnf("webhook dedupe lookup: %v", err)
			}
			if seen {
				log.Info("webhook event already processed")
				return web.Respond(ctx, w, Ack{OK: true}, http.StatusOK)
			}
		}

		if err := h.grants.Grant(ctx, notes.UserID, notes.CourseID, entitlement.SourceWebhook); err != nil {
			if errors.Is(err, entitlement.ErrInvalid) || errors.Is(err, entitlement.ErrUnknownReference) {
				log.WithField("course_id", notes.CourseID).Warnf("dropping captured payment: %v", err)
				return web.Respond(ctx, w, Ack{OK: true}, http.StatusOK)
			}
			return fmt.Errorf("granting course from webhook: %w", err)
		}

		if eventID != "" {
			if err := h.dedupe.Mark(ctx, eventID); err != nil {
				log.Warnf("webhook dedupe mark: %v", err)
			}
		}

		return web.Respond(ctx, w, Ack{OK: true}, http.StatusOK)
	}
}
