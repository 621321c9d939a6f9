package server

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v72"

	"atsboost/internal/auth"
	"atsboost/internal/chat"
	"atsboost/internal/models"
	"atsboost/internal/navstate"
	"atsboost/internal/payment"
	"atsboost/internal/realtime"
	"atsboost/pkg/logger"
)

// ChatService is the chat surface's view of the hosted data service.
type ChatService interface {
	History(ctx context.Context, userID string) ([]models.Message, error)
	SendText(ctx context.Context, userID, content string) (*models.Message, error)
	SendFile(ctx context.Context, userID, accessToken string, file chat.Attachment) (*models.Message, error)
}

// Payments creates server-issued orders and authenticates provider callbacks.
type Payments interface {
	Enabled() bool
	Currency() string
	GetWebhookSecret() string
	CreateCheckoutSession(plan models.SubscriptionPlan, user *models.User, successURL, cancelURL string) (*payment.Session, error)
	VerifyWebhookSignature(payload []byte, sig string, webhookSecret string) (stripe.Event, error)
}

type OrderStore interface {
	SaveOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, providerRef, status string) error
	GetOrderByProviderRef(ctx context.Context, providerRef string) (*models.Order, error)
}

// Options are the non-service settings the handlers need.
type Options struct {
	BaseURL           string
	CheckoutKey       string
	CheckoutScriptURL string
	AllowedOrigins    []string
	SecureCookies     bool
}

// Handler holds application dependencies
type Handler struct {
	chat      ChatService
	payments  Payments
	orders    OrderStore
	ws        *realtime.WSHandler
	nav       *navstate.Codec
	verifier  auth.Verifier
	health    func(ctx context.Context) error
	opts      Options
	logger    *logger.Logger
	templates map[string]*template.Template
}

type Deps struct {
	Chat     ChatService
	Payments Payments
	Orders   OrderStore
	WS       *realtime.WSHandler
	Nav      *navstate.Codec
	Verifier auth.Verifier
	// Health reports readiness of the data service; nil means always healthy.
	Health func(ctx context.Context) error
	Logger *logger.Logger
}

func NewHandler(d Deps, opts Options) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		chat:      d.Chat,
		payments:  d.Payments,
		orders:    d.Orders,
		ws:        d.WS,
		nav:       d.Nav,
		verifier:  d.Verifier,
		health:    d.Health,
		opts:      opts,
		logger:    d.Logger,
		templates: templates,
	}, nil
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(auth.Attach(h.verifier, h.logger))

	// Pages
	r.HandleFunc("/", h.AboutPage).Methods("GET")
	r.HandleFunc("/about", h.AboutPage).Methods("GET")
	r.HandleFunc("/subscriptions", h.SubscriptionsPage).Methods("GET")
	r.HandleFunc("/subscriptions", h.ProceedToPayment).Methods("POST")
	r.HandleFunc("/success", h.SuccessPage).Methods("GET")
	r.HandleFunc("/login", h.LoginPage).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.HandleFunc("/static/app.css", serveCSS).Methods("GET")

	// Pages that need a signed-in user
	r.Handle("/chat", auth.RequirePage(http.HandlerFunc(h.ChatPage))).Methods("GET")
	r.Handle("/chat", auth.RequirePage(http.HandlerFunc(h.ChatSend))).Methods("POST")
	r.Handle("/chat/attachments", auth.RequirePage(http.HandlerFunc(h.ChatUpload))).Methods("POST")
	r.Handle("/checkout/complete", auth.RequirePage(http.HandlerFunc(h.CheckoutComplete))).Methods("GET")
	r.Handle("/checkout/{planID}", auth.RequirePage(http.HandlerFunc(h.CheckoutPage))).Methods("GET")

	// Realtime
	r.Handle("/ws", auth.RequireAPI(http.HandlerFunc(h.HandleWebSocket))).Methods("GET")

	// REST API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.RequireAPI)
	api.HandleFunc("/messages", h.GetMessages).Methods("GET")
	api.HandleFunc("/messages", h.CreateMessage).Methods("POST")
	api.HandleFunc("/messages/attachments", h.UploadAttachment).Methods("POST")
	api.HandleFunc("/checkout/{planID}", h.CreateCheckout).Methods("POST")

	// Provider callbacks and probes
	r.HandleFunc("/webhook/stripe", h.HandleStripeWebhook).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")

	return r
}

// Health reports whether the data service is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warnw("Health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
