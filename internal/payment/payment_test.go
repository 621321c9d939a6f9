package payment

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stripe/stripe-go/v72"

	"atsboost/internal/config"
	"atsboost/internal/models"
	"atsboost/internal/plans"
)

func TestPlaceholderOrderID(t *testing.T) {
	re := regexp.MustCompile(`^order_[0-9a-z]{9}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := PlaceholderOrderID()
		if !re.MatchString(id) {
			t.Fatalf("Unexpected id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 49 {
		t.Errorf("Placeholder ids should be random, got %d distinct of 50", len(seen))
	}
}

func TestPlaceholderOrderUsesCatalogAmount(t *testing.T) {
	plan, _ := plans.Find("one-day")
	o := PlaceholderOrder(plan, "inr")
	if o.Amount != 49900 || o.Currency != "inr" || !o.Placeholder || o.PlanID != "one-day" {
		t.Errorf("Unexpected order %+v", o)
	}
}

func TestNewCheckoutOptions(t *testing.T) {
	user := &models.User{ID: "u", DisplayName: "James Wilson", Email: "james@example.com"}
	opts := NewCheckoutOptions("pk_test", Order{ID: "order_abc", Amount: 129900, Currency: "inr"}, user)

	if opts.Key != "pk_test" || opts.Amount != 129900 || opts.Currency != "inr" || opts.OrderID != "order_abc" {
		t.Errorf("Unexpected options %+v", opts)
	}
	if opts.Name != "ATS Score Increaser" || opts.Description != "Expert Resume Optimization Service" {
		t.Errorf("Unexpected merchant labels %+v", opts)
	}
	if opts.Prefill.Name != "James Wilson" || opts.Prefill.Email != "james@example.com" {
		t.Errorf("Unexpected prefill %+v", opts.Prefill)
	}
	if opts.Theme.Color != "#2563EB" {
		t.Errorf("Unexpected theme %+v", opts.Theme)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	c := NewStripeClient(config.StripeConfig{SecretKey: "sk_test", Currency: "inr"})

	var got *stripe.CheckoutSessionParams
	c.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}

	plan, _ := plans.Find("week")
	sess, err := c.CreateCheckoutSession(plan, &models.User{ID: "user-7", Email: "p@example.com"}, "https://app/success", "https://app/subscriptions")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sess.ID != "cs_test_1" {
		t.Errorf("Unexpected session %+v", sess)
	}

	item := got.LineItems[0]
	if *item.PriceData.UnitAmount != 249900 || *item.PriceData.Currency != "inr" {
		t.Errorf("Amount must come from the catalog, got %d %s", *item.PriceData.UnitAmount, *item.PriceData.Currency)
	}
	if *got.ClientReferenceID != "user-7" || *got.CustomerEmail != "p@example.com" {
		t.Errorf("Unexpected customer fields")
	}
	if got.Metadata["plan_id"] != "week" {
		t.Errorf("Expected plan metadata, got %v", got.Metadata)
	}
}

func TestCreateCheckoutSessionError(t *testing.T) {
	c := NewStripeClient(config.StripeConfig{SecretKey: "sk_test", Currency: "inr"})
	c.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("card_declined")
	}
	plan, _ := plans.Find("week")
	if _, err := c.CreateCheckoutSession(plan, &models.User{ID: "u"}, "s", "c"); err == nil {
		t.Fatal("Expected error")
	}
}

func TestVerifyWebhookSignatureRequiresSecret(t *testing.T) {
	c := NewStripeClient(config.StripeConfig{})
	if _, err := c.VerifyWebhookSignature([]byte("{}"), "t=1,v1=x", ""); err == nil {
		t.Error("Expected error without a webhook secret")
	}
	if c.Enabled() {
		t.Error("Client without a secret key must report disabled")
	}
}

func TestPublishableKey(t *testing.T) {
	c := NewStripeClient(config.StripeConfig{SecretKey: "sk_test", PublicKey: "pk_test", Currency: "inr"})
	if c.PublishableKey() != "pk_test" {
		t.Errorf("Expected pk_test, got %q", c.PublishableKey())
	}
}
