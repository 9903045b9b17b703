package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/course-storefront/api"
	"github.com/irsalhamdi/course-storefront/api/background"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/entitlement"
	"github.com/irsalhamdi/course-storefront/core/payment"
	"github.com/irsalhamdi/course-storefront/database/dbtest"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	adminEmail    = "admin@example.com"
	keySecret     = "rzp_test_secret"
	webhookSecret = "rzp_test_webhook_secret"
)

// mockGateway stands in for the Razorpay API and remembers the orders it
// opened.
type mockGateway struct {
	mu     sync.Mutex
	seq    int
	orders map[string]payment.Order
}

func (m *mockGateway) CreateOrder(ctx context.Context, p payment.OrderParams) (payment.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	ord := payment.Order{
		ID:       fmt.Sprintf("order_mock_%d", m.seq),
		Amount:   p.Amount,
		Currency: p.Currency,
		Receipt:  p.Receipt,
		Status:   "created",
		Notes:    p.Notes,
	}
	m.orders[ord.ID] = ord
	return ord, nil
}

func (m *mockGateway) FetchOrder(ctx context.Context, id string) (payment.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ord, ok := m.orders[id]
	if !ok {
		return payment.Order{}, fmt.Errorf("order %s not found", id)
	}
	return ord, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, value)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.messages)
}

type TestEnv struct {
	*httptest.Server
	DB         *sqlx.DB
	Gateway    *mockGateway
	Publisher  *recordingPublisher
	Background *background.Background
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	db := dbtest.New(t)
	log, _ := test.NewNullLogger()

	bg := background.New(log)
	gw := &mockGateway{orders: map[string]payment.Order{}}
	pub := &recordingPublisher{}

	payments := payment.NewHandlers(
		payment.Config{
			KeyID:         "rzp_test_key",
			KeySecret:     keySecret,
			WebhookSecret: webhookSecret,
		},
		gw,
		course.Catalog{DB: db},
		entitlement.NewService(db, pub, bg, log),
		payment.NopDeduper{},
		log,
	)

	mux := api.APIMux(api.APIConfig{
		Log:        log,
		DB:         db,
		Session:    scs.New(),
		Payments:   payments,
		AdminEmail: adminEmail,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	srv.Client().Jar = jar

	return &TestEnv{Server: srv, DB: db, Gateway: gw, Publisher: pub, Background: bg}
}

// Do sends body as JSON and decodes the response into out when it is not nil.
func (env *TestEnv) Do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			rd = bytes.NewReader(b)
		default:
			raw, err := json.Marshal(body)
			if err != nil {
				t.Fatal(err)
			}
			rd = bytes.NewReader(raw)
		}
	}

	r, err := http.NewRequest(method, env.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	return env.send(t, r, out)
}

func (env *TestEnv) send(t *testing.T, r *http.Request, out any) int {
	t.Helper()

	w, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", r.Method, r.URL.Path, err)
		}
	}
	return w.StatusCode
}

func (env *TestEnv) Signup(t *testing.T, email, pass string) {
	t.Helper()

	creds := map[string]string{"email": email, "password": pass}
	if code := env.Do(t, http.MethodPost, "/auth/signup", creds, nil); code != http.StatusCreated {
		t.Fatalf("signing up %s: status %d", email, code)
	}
}

func (env *TestEnv) Login(t *testing.T, email, pass string) {
	t.Helper()

	creds := map[string]string{"email": email, "password": pass}
	if code := env.Do(t, http.MethodPost, "/auth/login", creds, nil); code != http.StatusOK {
		t.Fatalf("logging in %s: status %d", email, code)
	}
}

func (env *TestEnv) Logout(t *testing.T) {
	t.Helper()

	if code := env.Do(t, http.MethodPost, "/auth/logout", nil, nil); code != http.StatusNoContent {
		t.Fatalf("logging out: status %d", code)
	}
}
