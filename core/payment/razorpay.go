package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/razorpay/razorpay-go"
)

// Razorpay is the gateway handle. The SDK client is built on first use and
// reused for the lifetime of the handle.
type Razorpay struct {
	keyID     string
	keySecret string

	once   sync.Once
	client *razorpay.Client
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{keyID: keyID, keySecret: keySecret}
}

// Ensure builds the SDK client once. It fails while credentials are missing.
func (r *Razorpay) Ensure() (*razorpay.Client, error) {
	if r.keyID == "" || r.keySecret == "" {
		return nil, ErrMisconfigured
	}
	r.once.Do(func() {
		r.client = razorpay.NewClient(r.keyID, r.keySecret)
	})
	return r.client, nil
}

// CreateOrder asks the gateway for a new order. The SDK has no context
// support so ctx is only checked before the call.
func (r *Razorpay) CreateOrder(ctx context.Context, p OrderParams) (Order, error) {
	client, err := r.Ensure()
	if err != nil {
		return Order{}, err
	}
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}

	data := map[string]interface{}{
		"amount":   p.Amount,
		"currency": p.Currency,
		"receipt":  p.Receipt,
		"notes": map[string]interface{}{
			"course_id": p.Notes.CourseID,
			"user_id":   p.Notes.UserID,
		},
	}

	body, err := client.Order.Create(data, nil)
	if err != nil {
		return Order{}, fmt.Errorf("creating razorpay order: %w", err)
	}
	return decodeOrder(body)
}

func (r *Razorpay) FetchOrder(ctx context.Context, id string) (Order, error) {
	client, err := r.Ensure()
	if err != nil {
		return Order{}, err
	}
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}

	body, err := client.Order.Fetch(id, nil, nil)
	if err != nil {
		return Order{}, fmt.Errorf("fetching razorpay order[%s]: %w", id, err)
	}
	return decodeOrder(body)
}

// decodeOrder maps the SDK's loosely typed response onto Order.
func decodeOrder(body map[string]interface{}) (Order, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Order{}, fmt.Errorf("re-encoding razorpay order: %w", err)
	}

	var v struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
		Notes    Notes  `json:"notes"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return Order{}, fmt.Errorf("decoding razorpay order: %w", err)
	}
	if v.ID == "" {
		return Order{}, fmt.Errorf("razorpay order without id: %s", b)
	}

	return Order{
		ID:       v.ID,
		Amount:   v.Amount,
		Currency: v.Currency,
		Receipt:  v.Receipt,
		Status:   v.Status,
		Notes:    v.Notes,
	}, nil
}
