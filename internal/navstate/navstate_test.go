package navstate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atsboost/internal/models"
	"atsboost/internal/plans"
)

func testSummary(t *testing.T) models.OrderSummary {
	t.Helper()
	p, err := plans.Find("week")
	if err != nil {
		t.Fatal(err)
	}
	return models.OrderSummary{Plan: p, User: "priya@example.com"}
}

func TestCookieRoundTrip(t *testing.T) {
	c := NewCodec("secret", false)

	w := httptest.NewRecorder()
	if err := c.Set(w, testSummary(t), "user-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/success", nil)
	for _, ck := range w.Result().Cookies() {
		r.AddCookie(ck)
	}

	got, err := c.Get(r, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Plan.ID != "week" || got.User != "priya@example.com" {
		t.Errorf("Unexpected summary %+v", got)
	}
}

func TestMissingCookie(t *testing.T) {
	c := NewCodec("secret", false)
	r := httptest.NewRequest(http.MethodGet, "/success", nil)
	if _, err := c.Get(r, ""); !errors.Is(err, models.ErrNoNavigationState) {
		t.Errorf("Expected ErrNoNavigationState, got %v", err)
	}
}

func TestRejectsForeignSignature(t *testing.T) {
	raw, err := NewCodec("other", false).Encode(testSummary(t), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewCodec("secret", false).Decode(raw, ""); !errors.Is(err, models.ErrNoNavigationState) {
		t.Errorf("Expected ErrNoNavigationState, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	c := NewCodec("secret", false)
	raw, err := c.Encode(testSummary(t), "")
	if err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := c.Decode(raw, ""); !errors.Is(err, models.ErrNoNavigationState) {
		t.Errorf("Expected expired state to be rejected, got %v", err)
	}
}

func TestStateWithoutPlan(t *testing.T) {
	c := NewCodec("secret", false)
	raw, err := c.Encode(models.OrderSummary{User: "someone"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode(raw, ""); !errors.Is(err, models.ErrNoNavigationState) {
		t.Errorf("Expected ErrNoNavigationState, got %v", err)
	}
}

func TestStateIsBoundToOwner(t *testing.T) {
	c := NewCodec("secret", false)
	raw, err := c.Encode(testSummary(t), "user-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Decode(raw, "user-1"); err != nil {
		t.Errorf("Owner should read its state, got %v", err)
	}
	for _, other := range []string{"user-2", ""} {
		if _, err := c.Decode(raw, other); !errors.Is(err, models.ErrNoNavigationState) {
			t.Errorf("State must not be readable by %q, got %v", other, err)
		}
	}
}

func TestClear(t *testing.T) {
	c := NewCodec("secret", false)
	w := httptest.NewRecorder()
	c.Clear(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected an expiring %s cookie, got %+v", CookieName, cookies)
	}
}
