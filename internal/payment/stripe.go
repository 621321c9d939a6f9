package payment

import (
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"

	"atsboost/internal/config"
	"atsboost/internal/models"
	"atsboost/internal/plans"
)

type StripeClient struct {
	secretKey     string
	publicKey     string
	webhookSecret string
	currency      string

	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	// Set the secret key for backend operations
	stripe.Key = cfg.SecretKey

	return &StripeClient{
		secretKey:     cfg.SecretKey,
		publicKey:     cfg.PublicKey,
		webhookSecret: cfg.WebhookKey,
		currency:      cfg.Currency,
		newSession:    session.New,
	}
}

// Enabled reports whether server-side orders can be created.
func (s *StripeClient) Enabled() bool {
	return s != nil && s.secretKey != ""
}

func (s *StripeClient) GetWebhookSecret() string {
	return s.webhookSecret
}

func (s *StripeClient) Currency() string {
	return s.currency
}

// PublishableKey is the browser-side key the checkout SDK is initialised with.
func (s *StripeClient) PublishableKey() string {
	return s.publicKey
}

// Session is the server-issued order handle.
type Session struct {
	ID  string
	URL string
}

// CreateCheckoutSession prices the plan from the catalog; no client-supplied amount
// is ever used.
func (s *StripeClient) CreateCheckoutSession(plan models.SubscriptionPlan, user *models.User, successURL, cancelURL string) (*Session, error) {
	if stripe.Key != s.secretKey {
		stripe.Key = s.secretKey
	}

	sess, err := s.newSession(s.checkoutParams(plan, user, successURL, cancelURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeClient) checkoutParams(plan models.SubscriptionPlan, user *models.User, successURL, cancelURL string) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.currency),
					UnitAmount: stripe.Int64(plans.AmountMinor(plan)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(plan.Name),
						Description: stripe.String(ProductDescription),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(user.ID),
	}
	// Hosted checkout prefills the email field from CustomerEmail.
	if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}
	params.AddMetadata("plan_id", plan.ID)
	if user.DisplayName != "" {
		params.AddMetadata("customer_name", user.DisplayName)
	}
	return params
}

func (s *StripeClient) VerifyWebhookSignature(payload []byte, sig string, webhookSecret string) (stripe.Event, error) {
	if webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("webhook secret is not configured")
	}
	return webhook.ConstructEvent(payload, sig, webhookSecret)
}
