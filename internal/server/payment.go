package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v72"

	"atsboost/internal/auth"
	"atsboost/internal/models"
	"atsboost/internal/payment"
	"atsboost/internal/plans"
)

type checkoutData struct {
	pageData
	Plan        models.SubscriptionPlan
	Placeholder bool
	Options     payment.CheckoutOptions
	ScriptURL   string
	OrderURL    string
}

// CheckoutPage opens the hosted checkout for a catalog plan. Rendering it creates
// no order; the page asks CreateCheckout for one when the user pays.
func (h *Handler) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	plan, err := plans.Find(mux.Vars(r)["planID"])
	if err != nil {
		redirect(w, "/subscriptions", http.StatusFound)
		return
	}

	var order payment.Order
	if h.paymentsEnabled() {
		order = payment.Order{
			PlanID:   plan.ID,
			Amount:   plans.AmountMinor(plan),
			Currency: h.payments.Currency(),
		}
	} else {
		order = payment.PlaceholderOrder(plan, h.currency())
	}

	h.render(w, http.StatusOK, "checkout", checkoutData{
		pageData:    pageData{User: user},
		Plan:        plan,
		Placeholder: order.Placeholder,
		Options:     payment.NewCheckoutOptions(h.opts.CheckoutKey, order, user),
		ScriptURL:   h.opts.CheckoutScriptURL,
		OrderURL:    "/api/checkout/" + url.PathEscape(plan.ID),
	})
}

func (h *Handler) paymentsEnabled() bool {
	return h.payments != nil && h.payments.Enabled()
}

func (h *Handler) currency() string {
	if h.payments != nil && h.payments.Currency() != "" {
		return h.payments.Currency()
	}
	return "inr"
}

type checkoutResponse struct {
	OrderID     string `json:"order_id"`
	URL         string `json:"url,omitempty"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// CreateCheckout handles POST /api/checkout/{planID}
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	plan, err := plans.Find(mux.Vars(r)["planID"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown plan")
		return
	}

	order, err := h.issueOrder(r, plan, user)
	if err != nil {
		h.logger.Errorw("Failed to create order", "plan_id", plan.ID, "user_id", user.ID, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to start checkout")
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:     order.ID,
		URL:         order.RedirectURL,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Placeholder: order.Placeholder,
	})
}

// issueOrder creates a provider session priced from the catalog and records it
// as pending. Without a configured provider a placeholder order is returned.
func (h *Handler) issueOrder(r *http.Request, plan models.SubscriptionPlan, user *models.User) (payment.Order, error) {
	if !h.paymentsEnabled() {
		h.logger.Warnw("Payment provider not configured, using placeholder order", "plan_id", plan.ID)
		return payment.PlaceholderOrder(plan, h.currency()), nil
	}

	base := strings.TrimSuffix(h.opts.BaseURL, "/")
	successURL := base + "/checkout/complete?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := base + "/subscriptions?plan=" + url.QueryEscape(plan.ID)

	sess, err := h.payments.CreateCheckoutSession(plan, user, successURL, cancelURL)
	if err != nil {
		return payment.Order{}, err
	}

	order := payment.Order{
		ID:          sess.ID,
		PlanID:      plan.ID,
		Amount:      plans.AmountMinor(plan),
		Currency:    h.payments.Currency(),
		RedirectURL: sess.URL,
	}

	if h.orders != nil {
		err = h.orders.SaveOrder(r.Context(), &models.Order{
			UserID:      user.ID,
			PlanID:      order.PlanID,
			Amount:      order.Amount,
			Currency:    order.Currency,
			ProviderRef: order.ID,
			Status:      models.OrderStatusPending,
		})
		if err != nil {
			return payment.Order{}, err
		}
	}

	h.logger.Infow("Checkout session created", "order_id", order.ID, "plan_id", plan.ID, "user_id", user.ID)
	return order, nil
}

// CheckoutComplete is the provider's success return URL. It restores the order
// summary and continues to the success page.
func (h *Handler) CheckoutComplete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" || h.orders == nil {
		redirect(w, "/subscriptions", http.StatusFound)
		return
	}

	order, err := h.orders.GetOrderByProviderRef(r.Context(), sessionID)
	if err != nil || order.UserID != user.ID {
		if err != nil && !errors.Is(err, models.ErrOrderNotFound) {
			h.logger.Errorw("Failed to load order", "order_id", sessionID, "error", err)
		}
		redirect(w, "/subscriptions", http.StatusFound)
		return
	}

	plan, err := plans.Find(order.PlanID)
	if err != nil {
		redirect(w, "/subscriptions", http.StatusFound)
		return
	}

	if err := h.nav.Set(w, models.OrderSummary{Plan: plan, User: user.Label()}, user.ID); err != nil {
		h.logger.Errorw("Failed to store navigation state", "error", err)
	}
	redirect(w, "/success", http.StatusFound)
}

// HandleStripeWebhook processes Stripe webhook events
func (h *Handler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// Only allow POST requests
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		h.logger.Errorw("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if h.payments == nil || h.payments.GetWebhookSecret() == "" {
		h.logger.Errorw("Webhook secret is not configured")
		http.Error(w, "Webhook not configured", http.StatusInternalServerError)
		return
	}
	webhookSecret := h.payments.GetWebhookSecret()

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warnw("Missing Stripe signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := h.payments.VerifyWebhookSignature(body, signature, webhookSecret)
	if err != nil {
		h.logger.Warnw("Failed to verify webhook signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.logger.Errorw("Failed to parse checkout session", "error", err)
			http.Error(w, "Failed to parse event data", http.StatusBadRequest)
			return
		}
		if session.ClientReferenceID == "" {
			h.logger.Errorw("Missing client reference ID", "session_id", session.ID)
			http.Error(w, "Missing client reference ID", http.StatusBadRequest)
			return
		}

		if h.orders != nil {
			err := h.orders.UpdateOrderStatus(r.Context(), session.ID, models.OrderStatusPaid)
			if err != nil && !errors.Is(err, models.ErrOrderNotFound) {
				h.logger.Errorw("Failed to mark order paid", "session_id", session.ID, "error", err)
				http.Error(w, "Failed to record payment", http.StatusInternalServerError)
				return
			}
			if errors.Is(err, models.ErrOrderNotFound) {
				h.logger.Warnw("Paid session has no order", "session_id", session.ID)
			}
		}
		h.logger.Infow("Payment completed", "session_id", session.ID, "user_id", session.ClientReferenceID)

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err == nil {
			h.logger.Warnw("Payment failed", "payment_intent", intent.ID)
		}

	default:
		h.logger.Debugw("Unhandled event type", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}
