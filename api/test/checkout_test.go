package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/course-storefront/core/analytics"
	"github.com/irsalhamdi/course-storefront/core/category"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/payment"
	"github.com/irsalhamdi/course-storefront/core/progress"
)

func TestCheckout(t *testing.T) {
	env := NewTestEnv(t)

	env.Signup(t, adminEmail, "admin-password")

	var cat category.Category
	code := env.Do(t, http.MethodPost, "/admin/categories", map[string]any{"name": "Marketing", "slug": "marketing"}, &cat)
	if code != http.StatusCreated {
		t.Fatalf("creating category: status %d", code)
	}
	if code := env.Do(t, http.MethodPost, "/admin/categories", map[string]any{"name": "Again", "slug": "marketing"}, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 for a duplicate slug, got %d", code)
	}

	var c course.Course
	code = env.Do(t, http.MethodPost, "/admin/courses", map[string]any{
		"title":         "Meta Ads Mastery",
		"price":         999,
		"discountPrice": 499,
		"categoryId":    cat.ID,
		"communityLink": "https://chat.example.com/invite/meta",
	}, &c)
	if code != http.StatusCreated {
		t.Fatalf("creating course: status %d", code)
	}
	env.Logout(t)

	if code := env.Do(t, http.MethodPost, "/payments/razorpay/order", map[string]string{"course_id": c.ID}, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an anonymous order, got %d", code)
	}

	env.Signup(t, "learner@example.com", "learner-password")

	var shown course.Course
	if code := env.Do(t, http.MethodGet, "/courses/"+c.ID, nil, &shown); code != http.StatusOK {
		t.Fatalf("showing course: status %d", code)
	}
	if shown.CommunityLink != nil {
		t.Fatal("the community link must stay hidden before purchase")
	}

	var ord payment.OrderResponse
	if code := env.Do(t, http.MethodPost, "/payments/razorpay/order", map[string]string{"course_id": c.ID}, &ord); code != http.StatusOK {
		t.Fatalf("creating order: status %d", code)
	}
	if ord.Amount != 49900 || ord.Currency != "INR" || ord.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected order %+v", ord)
	}

	forged := payment.VerifyRequest{
		CourseID:  c.ID,
		OrderID:   ord.OrderID,
		PaymentID: "pay_mock_1",
		Signature: payment.Sign("wrong-secret", payment.PaymentMessage(ord.OrderID, "pay_mock_1")),
	}
	if code := env.Do(t, http.MethodPost, "/payments/razorpay/verify", forged, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a forged signature, got %d", code)
	}

	var owned []course.Course
	env.Do(t, http.MethodGet, "/courses/owned", nil, &owned)
	if len(owned) != 0 {
		t.Fatal("a forged verification must not grant the course")
	}

	verify := forged
	verify.Signature = payment.Sign(keySecret, payment.PaymentMessage(ord.OrderID, "pay_mock_1"))

	var res payment.VerifyResponse
	if code := env.Do(t, http.MethodPost, "/payments/razorpay/verify", verify, &res); code != http.StatusOK {
		t.Fatalf("verifying payment: status %d", code)
	}
	if diff := cmp.Diff(payment.VerifyResponse{OK: true, RedirectTo: "/success?course_id=" + c.ID}, res); diff != "" {
		t.Fatalf("unexpected verification (-want +got):\n%s", diff)
	}

	// The gateway's webhook for the same payment arrives after the client
	// already verified it.
	event, err := json.Marshal(map[string]any{
		"event": payment.EventPaymentCaptured,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       "pay_mock_1",
					"order_id": ord.OrderID,
					"notes":    map[string]string{"course_id": c.ID, "user_id": ord.User.ID},
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		r, err := http.NewRequest(http.MethodPost, env.URL+"/payments/razorpay/webhook", bytes.NewReader(event))
		if err != nil {
			t.Fatal(err)
		}
		r.Header.Set(payment.SignatureHeader, payment.Sign(webhookSecret, event))
		if code := env.send(t, r, nil); code != http.StatusOK {
			t.Fatalf("delivering webhook: status %d", code)
		}
	}

	owned = nil
	env.Do(t, http.MethodGet, "/courses/owned", nil, &owned)
	if len(owned) != 1 || owned[0].ID != c.ID {
		t.Fatalf("expected exactly the purchased course, got %d courses", len(owned))
	}
	if owned[0].CommunityLink == nil {
		t.Fatal("owners should see the community link")
	}

	var grants int
	if err := env.DB.Get(&grants, `SELECT count(*) FROM user_courses WHERE course_id = $1`, c.ID); err != nil {
		t.Fatal(err)
	}
	if grants != 1 {
		t.Fatalf("expected one entitlement row, got %d", grants)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.Background.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if n := env.Publisher.count(); n != 1 {
		t.Fatalf("expected one grant event, got %d", n)
	}

	var saved progress.Updated
	code = env.Do(t, http.MethodPost, "/progress", map[string]any{"courseId": c.ID, "progressPercentage": 140, "completed": true}, &saved)
	if code != http.StatusOK || saved.Progress != 100 {
		t.Fatalf("saving progress: status %d %+v", code, saved)
	}
	env.Logout(t)

	env.Login(t, adminEmail, "admin-password")
	var report analytics.Report
	if code := env.Do(t, http.MethodGet, "/admin/analytics?period=7d", nil, &report); code != http.StatusOK {
		t.Fatalf("fetching analytics: status %d", code)
	}
	if report.Overview.TotalPurchases != 1 || report.Overview.TotalRevenue != 499 {
		t.Fatalf("unexpected totals %+v", report.Overview.Totals)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := NewTestEnv(t)

	if code := env.Do(t, http.MethodGet, "/admin/analytics", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an anonymous caller, got %d", code)
	}

	env.Signup(t, "learner@example.com", "learner-password")
	if code := env.Do(t, http.MethodPost, "/admin/courses", map[string]any{"title": "Nope", "price": 1}, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for a regular user, got %d", code)
	}
}

func TestReadiness(t *testing.T) {
	env := NewTestEnv(t)

	var got map[string]string
	if code := env.Do(t, http.MethodGet, "/readiness", nil, &got); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got["status"] != "ok" {
		t.Fatalf("unexpected readiness body %v", got)
	}
}

func TestCurrentUser(t *testing.T) {
	env := NewTestEnv(t)

	if code := env.Do(t, http.MethodGet, "/users/current", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before signing up, got %d", code)
	}

	env.Signup(t, adminEmail, "admin-password")

	var usr struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if code := env.Do(t, http.MethodGet, "/users/current", nil, &usr); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if usr.Email != adminEmail || usr.Role != "ADMIN" || usr.ID == "" {
		t.Fatalf("unexpected current user %+v", usr)
	}

	if code := env.Do(t, http.MethodPost, "/auth/logout", nil, nil); code >= http.StatusBadRequest {
		t.Fatalf("logout failed with %d", code)
	}
	if code := env.Do(t, http.MethodGet, "/users/current", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", code)
	}
}
