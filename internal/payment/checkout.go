// Package payment prepares hosted checkouts for subscription plans.
package payment

import (
	"crypto/rand"
	"math/big"

	"atsboost/internal/models"
	"atsboost/internal/plans"
)

const (
	MerchantName       = "ATS Score Increaser"
	ProductDescription = "Expert Resume Optimization Service"
	ThemeColor         = "#2563EB"
)

// Order is what the checkout widget is opened with.
type Order struct {
	ID       string
	PlanID   string
	Amount   int64
	Currency string
	// Placeholder is set when the id was fabricated locally instead of issued
	// by the payment provider.
	Placeholder bool
	// RedirectURL is the hosted checkout page for provider-issued orders.
	RedirectURL string
}

type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Theme struct {
	Color string `json:"color"`
}

// CheckoutOptions is handed to the widget script as JSON.
type CheckoutOptions struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	RedirectURL string  `json:"redirect_url,omitempty"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

func NewCheckoutOptions(key string, order Order, user *models.User) CheckoutOptions {
	opts := CheckoutOptions{
		Key:         key,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        MerchantName,
		Description: ProductDescription,
		OrderID:     order.ID,
		RedirectURL: order.RedirectURL,
		Theme:       Theme{Color: ThemeColor},
	}
	if user != nil {
		opts.Prefill = Prefill{Name: user.DisplayName, Email: user.Email}
	}
	return opts
}

// PlaceholderOrder prices plan from the catalog under a locally fabricated id.
func PlaceholderOrder(plan models.SubscriptionPlan, currency string) Order {
	return Order{
		ID:          PlaceholderOrderID(),
		PlanID:      plan.ID,
		Amount:      plans.AmountMinor(plan),
		Currency:    currency,
		Placeholder: true,
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// PlaceholderOrderID returns "order_" followed by 9 random base-36 characters.
// It is not a provider-issued id and must not be trusted for reconciliation.
func PlaceholderOrderID() string {
	b := make([]byte, 9)
	max := big.NewInt(int64(len(base36)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = base36[n.Int64()]
	}
	return "order_" + string(b)
}
