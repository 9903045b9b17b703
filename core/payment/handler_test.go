package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/course-storefront/api/middleware"
	"github.com/irsalhamdi/course-storefront/api/web"
	"github.com/irsalhamdi/course-storefront/core/claims"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/entitlement"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	keySecret     = "rzp_secret"
	webhookSecret = "rzp_webhook_secret"
	userID        = "6a1f1d1e-0000-4000-8000-000000000001"
	courseID      = "6a1f1d1e-0000-4000-8000-0000000000c1"
)

type fakeGateway struct {
	mu      sync.Mutex
	created []OrderParams
	orders  map[string]Order
	err     error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, p OrderParams) (Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return Order{}, g.err
	}
	g.created = append(g.created, p)
	return Order{ID: "order_test_1", Amount: p.Amount, Currency: p.Currency, Receipt: p.Receipt, Notes: p.Notes}, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, id string) (Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return Order{}, g.err
	}
	ord, ok := g.orders[id]
	if !ok {
		return Order{}, errors.New("order not found at gateway")
	}
	return ord, nil
}

type fakeCourses map[string]course.Course

func (f fakeCourses) FetchActive(ctx context.Context, id string) (course.Course, error) {
	c, ok := f[id]
	if !ok {
		return course.Course{}, database.ErrNotFound
	}
	return c, nil
}

// fakeGrants mimics the unique constraint of the entitlement table.
type fakeGrants struct {
	mu      sync.Mutex
	rows    map[[2]string]string
	calls   int
	failErr error
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{rows: make(map[[2]string]string)}
}

func (g *fakeGrants) Grant(ctx context.Context, userID, courseID, source string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.failErr != nil {
		return g.failErr
	}
	key := [2]string{userID, courseID}
	if _, ok := g.rows[key]; !ok {
		g.rows[key] = source
	}
	return nil
}

type memDeduper struct {
	seen map[string]bool
}

func (d *memDeduper) Seen(ctx context.Context, id string) (bool, error) { return d.seen[id], nil }

func (d *memDeduper) Mark(ctx context.Context, id string) error {
	d.seen[id] = true
	return nil
}

type env struct {
	h      *Handlers
	gw     *fakeGateway
	grants *fakeGrants
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()

	discount := 499
	courses := fakeCourses{
		courseID: {ID: courseID, Title: "Meta Ads Mastery", Price: 999, DiscountPrice: &discount},
	}
	gw := &fakeGateway{orders: map[string]Order{
		"order_test_1": {ID: "order_test_1", Notes: Notes{CourseID: courseID, UserID: userID}},
	}}
	grants := newFakeGrants()
	log, _ := test.NewNullLogger()

	h := NewHandlers(cfg, gw, courses, grants, &memDeduper{seen: map[string]bool{}}, log)
	h.now = func() time.Time { return time.UnixMilli(1760000000000) }
	return &env{h: h, gw: gw, grants: grants}
}

func fullConfig() Config {
	return Config{KeyID: "rzp_test_key", KeySecret: keySecret, WebhookSecret: webhookSecret}
}

func serve(h web.Handler, r *http.Request, authed bool) (*httptest.ResponseRecorder, error) {
	log, _ := test.NewNullLogger()
	handler := web.WrapMiddleware([]web.Middleware{middleware.Errors(log)}, h)

	ctx := r.Context()
	if authed {
		ctx = claims.Set(ctx, claims.Claims{UserID: userID, Email: "learner@example.com", Role: claims.RoleUser})
	}

	w := httptest.NewRecorder()
	err := handler(ctx, w, r.WithContext(ctx))
	return w, err
}

func do(t *testing.T, h web.Handler, r *http.Request, authed bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	w, err := serve(h, r, authed)
	if err != nil {
		t.Fatalf("handler returned an unhandled error: %v", err)
	}

	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding response %q: %v", w.Body.String(), err)
		}
	}
	return w, body
}

func jsonRequest(t *testing.T, path string, v any) *http.Request {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
}

func TestCreateOrder(t *testing.T) {
	e := newEnv(t, fullConfig())

	w, body := do(t, e.h.CreateOrder(), jsonRequest(t, "/payments/razorpay/order", OrderRequest{CourseID: courseID}), true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}

	want := map[string]any{
		"order_id": "order_test_1",
		"amount":   float64(49900),
		"currency": "INR",
		"key_id":   "rzp_test_key",
		"course":   map[string]any{"id": courseID, "title": "Meta Ads Mastery"},
		"user":     map[string]any{"id": userID, "email": "learner@example.com"},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("unexpected response (-want +got):\n%s", diff)
	}

	wantParams := []OrderParams{{
		Amount:   49900,
		Currency: "INR",
		Receipt:  "course_6a1f1d1e0000_1760000000000",
		Notes:    Notes{CourseID: courseID, UserID: userID},
	}}
	if diff := cmp.Diff(wantParams, e.gw.created); diff != "" {
		t.Fatalf("unexpected gateway call (-want +got):\n%s", diff)
	}
}

func TestCreateOrderFailures(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		gwErr  error
		body   any
		authed bool
		status int
	}{
		{"unauthenticated", fullConfig(), nil, OrderRequest{CourseID: courseID}, false, http.StatusUnauthorized},
		{"missing course", fullConfig(), nil, OrderRequest{}, true, http.StatusBadRequest},
		{"malformed course", fullConfig(), nil, OrderRequest{CourseID: "meta-ads"}, true, http.StatusBadRequest},
		{"unknown course", fullConfig(), nil, OrderRequest{CourseID: "6a1f1d1e-0000-4000-8000-0000000000ff"}, true, http.StatusNotFound},
		{"missing keys", Config{}, ErrMisconfigured, OrderRequest{CourseID: courseID}, true, http.StatusInternalServerError},
		{"gateway down", fullConfig(), errors.New("connection refused"), OrderRequest{CourseID: courseID}, true, http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, tc.cfg)
			e.gw.err = tc.gwErr

			w, body := do(t, e.h.CreateOrder(), jsonRequest(t, "/payments/razorpay/order", tc.body), tc.authed)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %v", tc.status, w.Code, body)
			}
			if _, ok := body["error"]; !ok {
				t.Fatalf("expected an error payload, got %v", body)
			}
		})
	}
}

func verifyRequest(t *testing.T, req VerifyRequest) *http.Request {
	return jsonRequest(t, "/payments/razorpay/verify", req)
}

func signedVerify(course string) VerifyRequest {
	return VerifyRequest{
		CourseID:  course,
		OrderID:   "order_test_1",
		PaymentID: "pay_test_1",
		Signature: Sign(keySecret, PaymentMessage("order_test_1", "pay_test_1")),
	}
}

func TestVerify(t *testing.T) {
	e := newEnv(t, fullConfig())

	w, body := do(t, e.h.Verify(), verifyRequest(t, signedVerify(courseID)), true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}

	want := map[string]any{"ok": true, "redirect_to": "/success?course_id=" + courseID}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("unexpected response (-want +got):\n%s", diff)
	}

	if src := e.grants.rows[[2]string{userID, courseID}]; src != entitlement.SourceVerify {
		t.Fatalf("expected a grant from the verify path, got %q", src)
	}

	// A replay of the same checkout result stays a success.
	w, _ = do(t, e.h.Verify(), verifyRequest(t, signedVerify(courseID)), true)
	if w.Code != http.StatusOK {
		t.Fatalf("replayed verification should succeed, got %d", w.Code)
	}
	if len(e.grants.rows) != 1 {
		t.Fatalf("expected one entitlement, got %d", len(e.grants.rows))
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	e := newEnv(t, fullConfig())

	req := signedVerify(courseID)
	tampered := []byte(req.Signature)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	req.Signature = string(tampered)

	w, body := do(t, e.h.Verify(), verifyRequest(t, req), true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["error"] != "invalid signature" {
		t.Fatalf("unexpected error %v", body["error"])
	}
	if e.grants.calls != 0 || len(e.grants.rows) != 0 {
		t.Fatal("a tampered signature must never reach the entitlement store")
	}
}

func TestVerifyFailures(t *testing.T) {
	other := "6a1f1d1e-0000-4000-8000-0000000000c2"

	tests := []struct {
		name     string
		cfg      Config
		req      VerifyRequest
		authed   bool
		grantErr error
		gwErr    error
		status   int
	}{
		{"unauthenticated", fullConfig(), signedVerify(courseID), false, nil, nil, http.StatusUnauthorized},
		{"missing parameters", fullConfig(), VerifyRequest{CourseID: courseID, OrderID: "order_test_1"}, true, nil, nil, http.StatusBadRequest},
		{"missing secret", Config{KeyID: "rzp_test_key"}, signedVerify(courseID), true, nil, nil, http.StatusInternalServerError},
		{"course swapped after payment", fullConfig(), signedVerify(other), true, nil, nil, http.StatusBadRequest},
		{"gateway down during order lookup", fullConfig(), signedVerify(courseID), true, nil, errors.New("connection refused"), http.StatusBadGateway},
		{"store failure", fullConfig(), signedVerify(courseID), true, errors.New("connection reset"), nil, http.StatusInternalServerError},
		{"unknown course", fullConfig(), signedVerify(courseID), true, entitlement.ErrUnknownReference, nil, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, tc.cfg)
			e.grants.failErr = tc.grantErr
			e.gw.err = tc.gwErr

			w, body := do(t, e.h.Verify(), verifyRequest(t, tc.req), tc.authed)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %v", tc.status, w.Code, body)
			}
			if len(e.grants.rows) != 0 {
				t.Fatal("no entitlement may be written on failure")
			}
		})
	}
}

func capturedEvent(eventType string, notes any) []byte {
	ev := map[string]any{
		"entity": "event",
		"event":  eventType,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       "pay_test_1",
					"order_id": "order_test_1",
					"amount":   49900,
					"currency": "INR",
					"status":   "captured",
					"notes":    notes,
				},
			},
		},
	}
	b, _ := json.Marshal(ev)
	return b
}

func webhookRequest(body []byte, signature, eventID string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/payments/razorpay/webhook", bytes.NewReader(body))
	r.Header.Set(SignatureHeader, signature)
	if eventID != "" {
		r.Header.Set(EventIDHeader, eventID)
	}
	return r
}

func TestWebhookCaptured(t *testing.T) {
	e := newEnv(t, fullConfig())

	body := capturedEvent(EventPaymentCaptured, map[string]string{"course_id": courseID, "user_id": userID})
	w, resp := do(t, e.h.Webhook(), webhookRequest(body, Sign(webhookSecret, body), "evt_1"), false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, resp)
	}
	if diff := cmp.Diff(map[string]any{"ok": true}, resp); diff != "" {
		t.Fatalf("unexpected response (-want +got):\n%s", diff)
	}
	if src := e.grants.rows[[2]string{userID, courseID}]; src != entitlement.SourceWebhook {
		t.Fatalf("expected a grant from the webhook path, got %q", src)
	}

	// The gateway redelivers the same event: acknowledged without a second grant call.
	w, _ = do(t, e.h.Webhook(), webhookRequest(body, Sign(webhookSecret, body), "evt_1"), false)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery should be acknowledged, got %d", w.Code)
	}
	if e.grants.calls != 1 {
		t.Fatalf("expected 1 grant call, got %d", e.grants.calls)
	}
}

func TestWebhookAndVerifyConverge(t *testing.T) {
	e := newEnv(t, fullConfig())
	body := capturedEvent(EventPaymentCaptured, map[string]string{"course_id": courseID, "user_id": userID})

	hook := webhookRequest(body, Sign(webhookSecret, body), "")
	verify := verifyRequest(t, signedVerify(courseID))

	var wg sync.WaitGroup
	codes := make([]int, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		w, _ := serve(e.h.Webhook(), hook, false)
		codes[0] = w.Code
	}()
	go func() {
		defer wg.Done()
		w, _ := serve(e.h.Verify(), verify, true)
		codes[1] = w.Code
	}()
	wg.Wait()

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("both paths should succeed, got %v", codes)
	}
	if len(e.grants.rows) != 1 {
		t.Fatalf("expected exactly one entitlement, got %d", len(e.grants.rows))
	}
}

func TestWebhookIgnored(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"other event", capturedEvent("payment.failed", map[string]string{"course_id": courseID, "user_id": userID})},
		{"order paid", capturedEvent("order.paid", map[string]string{"course_id": courseID, "user_id": userID})},
		{"captured without notes", capturedEvent(EventPaymentCaptured, []string{})},
		{"captured with partial notes", capturedEvent(EventPaymentCaptured, map[string]string{"course_id": courseID})},
		{"other event with an unexpected payload", []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","amount":"100","notes":{"course_id":7}}}}}`)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, fullConfig())

			w, resp := do(t, e.h.Webhook(), webhookRequest(tc.body, Sign(webhookSecret, tc.body), ""), false)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %v", w.Code, resp)
			}
			if e.grants.calls != 0 {
				t.Fatal("ignored events must not grant")
			}
		})
	}
}

func TestWebhookFailures(t *testing.T) {
	body := capturedEvent(EventPaymentCaptured, map[string]string{"course_id": courseID, "user_id": userID})

	tests := []struct {
		name     string
		cfg      Config
		body     []byte
		sig      string
		grantErr error
		status   int
	}{
		{"missing secret", Config{KeySecret: keySecret}, body, Sign(webhookSecret, body), nil, http.StatusInternalServerError},
		{"signed with key secret", fullConfig(), body, Sign(keySecret, body), nil, http.StatusBadRequest},
		{"missing signature", fullConfig(), body, "", nil, http.StatusBadRequest},
		{"malformed json", fullConfig(), []byte(`{"event":`), Sign(webhookSecret, []byte(`{"event":`)), nil, http.StatusBadRequest},
		{"store failure", fullConfig(), body, Sign(webhookSecret, body), errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, tc.cfg)
			e.grants.failErr = tc.grantErr

			w, resp := do(t, e.h.Webhook(), webhookRequest(tc.body, tc.sig, ""), false)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %v", tc.status, w.Code, resp)
			}
			if len(e.grants.rows) != 0 {
				t.Fatal("no entitlement may be written on failure")
			}
		})
	}
}

func TestWebhookDropsUnknownReferences(t *testing.T) {
	e := newEnv(t, fullConfig())
	e.grants.failErr = entitlement.ErrUnknownReference

	body := capturedEvent(EventPaymentCaptured, map[string]string{"course_id": courseID, "user_id": userID})
	w, _ := do(t, e.h.Webhook(), webhookRequest(body, Sign(webhookSecret, body), ""), false)
	if w.Code != http.StatusOK {
		t.Fatalf("unrecoverable events should be acknowledged, got %d", w.Code)
	}
}
