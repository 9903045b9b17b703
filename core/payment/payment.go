// Package payment runs checkout through the Razorpay gateway: it creates
// orders, verifies the client's checkout result and consumes the gateway's
// webhooks. Both verification paths end in the same idempotent entitlement
// grant.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

const EventPaymentCaptured = "payment.captured"

var (
	ErrMisconfigured = errors.New("razorpay keys not configured")
	ErrNoWebhook     = errors.New("webhook not configured")
)

// Config holds the gateway credentials. Missing values are reported per
// request instead of preventing startup.
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	SuccessPath   string
}

// Notes is the context attached to a gateway order and echoed back in its
// payments.
type Notes struct {
	CourseID string `json:"course_id"`
	UserID   string `json:"user_id"`
}

// UnmarshalJSON accepts the empty array the gateway sends for orders without
// notes.
func (n *Notes) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("[")) {
		*n = Notes{}
		return nil
	}

	type notes Notes
	var v notes
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Notes(v)
	return nil
}

func (n Notes) Complete() bool {
	return n.CourseID != "" && n.UserID != ""
}

type OrderParams struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    Notes
}

// Order is the gateway's view of a checkout attempt. It is never stored
// locally.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
	Notes    Notes
}

// Gateway creates and looks up orders at the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, p OrderParams) (Order, error)
	FetchOrder(ctx context.Context, id string) (Order, error)
}

// Granter gives a user access to a course, idempotently.
type Granter interface {
	Grant(ctx context.Context, userID, courseID, source string) error
}

type OrderRequest struct {
	CourseID string `json:"course_id"`
}

type OrderCourse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type OrderUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type OrderResponse struct {
	OrderID  string      `json:"order_id"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
	KeyID    string      `json:"key_id"`
	Course   OrderCourse `json:"course"`
	User     OrderUser   `json:"user"`
}

type VerifyRequest struct {
	CourseID  string `json:"course_id"`
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (v VerifyRequest) Complete() bool {
	return v.CourseID != "" && v.OrderID != "" && v.PaymentID != "" && v.Signature != ""
}

type VerifyResponse struct {
	OK         bool   `json:"ok"`
	RedirectTo string `json:"redirect_to"`
}

type Ack struct {
	OK bool `json:"ok"`
}

// EventHeader is the part of a webhook every event type shares.
type EventHeader struct {
	ID    string `json:"id"`
	Event string `json:"event"`
}

// Event is the webhook envelope. Only the payment entity is read.
type Event struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Notes    Notes  `json:"notes"`
}
