package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stripe/stripe-go/v72"

	"atsboost/internal/auth"
	"atsboost/internal/chat"
	"atsboost/internal/models"
	"atsboost/internal/navstate"
	"atsboost/internal/payment"
	"atsboost/internal/realtime"
	"atsboost/pkg/logger"
)

const testSecret = "test-secret"

type fakeChat struct {
	mu      sync.Mutex
	calls   int
	sent    []string
	files   []string
	sendErr error
}

func (f *fakeChat) History(ctx context.Context, userID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []models.Message{{ID: "1", UserID: userID, Content: "Hello expert", CreatedAt: time.Now()}}, nil
}

func (f *fakeChat) SendText(ctx context.Context, userID, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrEmptyMessage
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, content)
	return &models.Message{ID: "2", UserID: userID, Content: content, CreatedAt: time.Now()}, nil
}

func (f *fakeChat) SendFile(ctx context.Context, userID, accessToken string, file chat.Attachment) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.files = append(f.files, file.Name)
	return &models.Message{ID: "3", UserID: userID, Content: "Shared file: " + file.Name}, nil
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePayments struct {
	enabled bool
	secret  string
	verify  func(payload []byte, sig string) (stripe.Event, error)
}

func (f *fakePayments) Enabled() bool            { return f.enabled }
func (f *fakePayments) Currency() string         { return "inr" }
func (f *fakePayments) GetWebhookSecret() string { return f.secret }

func (f *fakePayments) CreateCheckoutSession(plan models.SubscriptionPlan, user *models.User, successURL, cancelURL string) (*payment.Session, error) {
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (f *fakePayments) VerifyWebhookSignature(payload []byte, sig string, webhookSecret string) (stripe.Event, error) {
	if f.verify != nil {
		return f.verify(payload, sig)
	}
	return stripe.Event{}, errors.New("bad signature")
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[string]*models.Order{}}
}

func (f *fakeOrders) SaveOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := *order
	f.orders[order.ProviderRef] = &o
	return nil
}

func (f *fakeOrders) UpdateOrderStatus(ctx context.Context, providerRef, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[providerRef]
	if !ok {
		return models.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrders) GetOrderByProviderRef(ctx context.Context, providerRef string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[providerRef]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

type testEnv struct {
	router   http.Handler
	chat     *fakeChat
	payments *fakePayments
	orders   *fakeOrders
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := logger.NewNop()
	env := &testEnv{
		chat:     &fakeChat{},
		payments: &fakePayments{},
		orders:   newFakeOrders(),
	}
	h, err := NewHandler(Deps{
		Chat:     env.chat,
		Payments: env.payments,
		Orders:   env.orders,
		WS:       realtime.NewWSHandler(realtime.NewHub(l), nil, l),
		Nav:      navstate.NewCodec(testSecret, false),
		Verifier: auth.NewJWTVerifier(testSecret),
		Logger:   l,
	}, Options{BaseURL: "http://localhost:8080", CheckoutKey: "pk_test", CheckoutScriptURL: "https://js.example/v3/"})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	env.router = h.SetupRouter()
	return env
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, r)
	return rr
}

func userToken(t *testing.T) string {
	t.Helper()
	return tokenFor(t, "user-1")
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()
	c := auth.Claims{
		Email:        "sarah@example.com",
		UserMetadata: map[string]any{"full_name": "Sarah Chen"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func signedIn(t *testing.T, r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: userToken(t)})
	return r
}

func TestChatRequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/chat", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected status %d, got %d", http.StatusFound, rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}
	if env.chat.callCount() != 0 {
		t.Errorf("Expected no data fetch before the redirect, got %d calls", env.chat.callCount())
	}
}

func TestChatPageRendersHistory(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(signedIn(t, httptest.NewRequest(http.MethodGet, "/chat", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Hello expert", `accept=".pdf,.doc,.docx"`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}
}

func TestChatSendKeepsDraftOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.chat.sendErr = errors.New("insert failed")

	form := url.Values{"content": {"please review my resume"}}
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := env.do(signedIn(t, r))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `value="please review my resume"`) {
		t.Error("Expected the draft to be kept in the input")
	}
}

func TestChatSendClearsOnSuccess(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"content": {"hello"}}
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := env.do(signedIn(t, r))

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/chat" {
		t.Fatalf("Expected 303 to /chat, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if len(env.chat.sent) != 1 {
		t.Errorf("Expected one message sent, got %d", len(env.chat.sent))
	}
}

func TestCreateMessageAPI(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		sendErr    error
		wantStatus int
		wantDraft  bool
	}{
		{"success", `{"content":"hi"}`, nil, http.StatusCreated, false},
		{"blank", `{"content":"   "}`, nil, http.StatusBadRequest, false},
		{"invalid json", `{`, nil, http.StatusBadRequest, false},
		{"insert failure", `{"content":"hi"}`, errors.New("down"), http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.chat.sendErr = tt.sendErr

			r := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(tt.body))
			r.Header.Set("Authorization", "Bearer "+userToken(t))
			rr := env.do(r)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantDraft {
				var resp sendFailure
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				if resp.Draft != "hi" {
					t.Errorf("Expected draft %q echoed back, got %q", "hi", resp.Draft)
				}
			}
		})
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if env.chat.callCount() != 0 {
		t.Error("Expected no data fetch for an anonymous request")
	}
}

func multipartFile(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAttachment(t *testing.T) {
	tests := []struct {
		file       string
		wantStatus int
	}{
		{"resume.pdf", http.StatusCreated},
		{"resume.DOCX", http.StatusCreated},
		{"photo.png", http.StatusBadRequest},
		{"script.exe", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			env := newTestEnv(t)
			body, ct := multipartFile(t, tt.file, "data")

			r := httptest.NewRequest(http.MethodPost, "/api/messages/attachments", body)
			r.Header.Set("Content-Type", ct)
			rr := env.do(signedIn(t, r))

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus != http.StatusCreated && len(env.chat.files) != 0 {
				t.Error("Rejected file must not be uploaded")
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartFile(t, "resume.pdf", strings.Repeat("x", maxUploadSize+1024))

	r := httptest.NewRequest(http.MethodPost, "/api/messages/attachments", body)
	r.Header.Set("Content-Type", ct)
	rr := env.do(signedIn(t, r))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
	if len(env.chat.files) != 0 {
		t.Error("Oversized file must not be uploaded")
	}
}

func TestSuccessWithoutStateRedirects(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/success", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected status %d, got %d", http.StatusFound, rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/subscriptions" {
		t.Errorf("Expected redirect to /subscriptions, got %q", loc)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", rr.Body.String())
	}
}

func TestSubscriptionsProceedState(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/subscriptions", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "Please select a plan to continue") || !strings.Contains(body, `id="proceed" class="btn btn-primary btn-lg" disabled`) {
		t.Error("Expected proceed to be disabled with no selection")
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/subscriptions?plan=three-day", nil))
	body = rr.Body.String()
	if strings.Contains(body, "Please select a plan to continue") || strings.Contains(body, " disabled>") {
		t.Error("Expected proceed to be enabled once a plan is selected")
	}
	if n := strings.Count(body, ">Selected<"); n != 1 {
		t.Errorf("Expected exactly one selected plan, got %d", n)
	}
}

func TestProceedThenSuccess(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"plan": {"week"}}
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(signedIn(t, r))

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/success" {
		t.Fatalf("Expected 303 to /success, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	var state *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == navstate.CookieName {
			state = c
		}
	}
	if state == nil {
		t.Fatal("Expected navigation state cookie")
	}

	r = signedIn(t, httptest.NewRequest(http.MethodGet, "/success", nil))
	r.AddCookie(state)
	rr = env.do(r)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Weekly Access", "₹2499", "7 days", "Sarah Chen"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected success page to contain %q", want)
		}
	}
}

func TestSuccessStateIsPerUser(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"plan": {"week"}}
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(signedIn(t, r))

	var state *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == navstate.CookieName {
			state = c
		}
	}
	if state == nil {
		t.Fatal("Expected navigation state cookie")
	}

	r = httptest.NewRequest(http.MethodGet, "/success", nil)
	r.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: tokenFor(t, "user-2")})
	r.AddCookie(state)
	rr = env.do(r)
	if rr.Code != http.StatusFound || rr.Body.Len() != 0 {
		t.Errorf("Another user must not see the summary, got %d", rr.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/success", nil)
	r.AddCookie(state)
	if rr = env.do(r); rr.Code != http.StatusFound {
		t.Errorf("A signed-out visitor must not see the summary, got %d", rr.Code)
	}
}

func TestLogoutClearsState(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(signedIn(t, httptest.NewRequest(http.MethodPost, "/logout", nil)))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected status %d, got %d", http.StatusSeeOther, rr.Code)
	}

	cleared := map[string]bool{}
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	if !cleared[auth.TokenCookie] || !cleared[navstate.CookieName] {
		t.Errorf("Expected both cookies to be cleared, got %v", cleared)
	}
}

func TestProceedWithoutPlanStays(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader("plan=gold"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(r)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Header().Get("Location") != "" {
		t.Error("Expected no navigation")
	}
}

func TestCheckoutPlaceholder(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(signedIn(t, httptest.NewRequest(http.MethodGet, "/checkout/one-day", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "local placeholder") {
		t.Error("Expected placeholder notice")
	}
}

func TestCheckoutPageCreatesNoOrder(t *testing.T) {
	env := newTestEnv(t)
	env.payments.enabled = true

	for i := 0; i < 2; i++ {
		rr := env.do(signedIn(t, httptest.NewRequest(http.MethodGet, "/checkout/three-day", nil)))
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
		}
		body := rr.Body.String()
		if strings.Contains(body, "local placeholder") {
			t.Error("Provider checkout must not be labelled as a placeholder")
		}
		for _, want := range []string{`"amount":129900`, `"key":"pk_test"`, "redirectToCheckout"} {
			if !strings.Contains(body, want) {
				t.Errorf("Expected checkout page to contain %s", want)
			}
		}
	}

	env.orders.mu.Lock()
	defer env.orders.mu.Unlock()
	if len(env.orders.orders) != 0 {
		t.Errorf("Rendering the checkout page must not create orders, got %d", len(env.orders.orders))
	}
}

func TestCreateCheckoutUsesCatalogAmount(t *testing.T) {
	env := newTestEnv(t)
	env.payments.enabled = true

	r := httptest.NewRequest(http.MethodPost, "/api/checkout/one-day", strings.NewReader(`{"amount":1}`))
	rr := env.do(signedIn(t, r))

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	var resp checkoutResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.OrderID != "cs_test_1" || resp.Amount != 49900 {
		t.Errorf("Unexpected response %+v", resp)
	}

	order, err := env.orders.GetOrderByProviderRef(context.Background(), "cs_test_1")
	if err != nil {
		t.Fatalf("Expected order to be stored: %v", err)
	}
	if order.Status != models.OrderStatusPending || order.UserID != "user-1" || order.Amount != 49900 {
		t.Errorf("Unexpected order %+v", order)
	}
}

func TestCreateCheckoutUnknownPlan(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(signedIn(t, httptest.NewRequest(http.MethodPost, "/api/checkout/gold", nil)))

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestCheckoutCompleteSetsState(t *testing.T) {
	env := newTestEnv(t)
	env.orders.SaveOrder(context.Background(), &models.Order{
		UserID: "user-1", PlanID: "three-day", ProviderRef: "cs_done", Status: models.OrderStatusPending,
	})

	rr := env.do(signedIn(t, httptest.NewRequest(http.MethodGet, "/checkout/complete?session_id=cs_done", nil)))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/success" {
		t.Fatalf("Expected redirect to /success, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(signedIn(t, httptest.NewRequest(http.MethodGet, "/checkout/complete?session_id=cs_other", nil)))
	if rr.Header().Get("Location") != "/subscriptions" {
		t.Errorf("Expected unknown session to go back to plans, got %q", rr.Header().Get("Location"))
	}
}

func TestStripeWebhook(t *testing.T) {
	env := newTestEnv(t)
	env.payments.secret = "whsec_test"
	env.orders.SaveOrder(context.Background(), &models.Order{
		UserID: "user-1", PlanID: "one-day", ProviderRef: "cs_paid", Status: models.OrderStatusPending,
	})

	rr := env.do(httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader("{}")))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Missing signature: expected %d, got %d", http.StatusBadRequest, rr.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader("{}"))
	r.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rr = env.do(r)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Invalid signature: expected %d, got %d", http.StatusBadRequest, rr.Code)
	}

	env.payments.verify = func(payload []byte, sig string) (stripe.Event, error) {
		return stripe.Event{
			Type: "checkout.session.completed",
			Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"cs_paid","client_reference_id":"user-1"}`)},
		}, nil
	}
	r = httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader("{}"))
	r.Header.Set("Stripe-Signature", "t=1,v1=good")
	rr = env.do(r)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	order, _ := env.orders.GetOrderByProviderRef(context.Background(), "cs_paid")
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected order to be paid, got %q", order.Status)
	}
}

func TestLoginSetsCookie(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"token": {userToken(t)}}
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(r)

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/chat" {
		t.Fatalf("Expected 303 to /chat, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	found := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.TokenCookie && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("Expected an HttpOnly access token cookie")
	}

	r = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("token=nope"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rr = env.do(r); rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d for a bad token, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestAboutAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/about", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "98% Success Rate") {
		t.Errorf("Expected about page, got %d", rr.Code)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("Expected health OK, got %d %q", rr.Code, rr.Body.String())
	}
}
