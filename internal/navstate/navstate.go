// Package navstate carries ephemeral page-transition state in a signed cookie.
package navstate

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"atsboost/internal/models"
)

const (
	CookieName = "nav_state"
	defaultTTL = 15 * time.Minute
)

type claims struct {
	Summary models.OrderSummary `json:"summary"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewCodec(secret string, secure bool) *Codec {
	return &Codec{secret: []byte(secret), ttl: defaultTTL, secure: secure, now: time.Now}
}

// Encode signs summary for owner, the id of the signed-in user or "" for a visitor.
func (c *Codec) Encode(summary models.OrderSummary, owner string) (string, error) {
	now := c.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Summary: summary,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign navigation state: %w", err)
	}
	return signed, nil
}

// Decode verifies raw and rejects state that belongs to someone other than owner.
func (c *Codec) Decode(raw, owner string) (models.OrderSummary, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return models.OrderSummary{}, fmt.Errorf("%w: %v", models.ErrNoNavigationState, err)
	}
	if cl.Summary.Plan.ID == "" {
		return models.OrderSummary{}, models.ErrNoNavigationState
	}
	if cl.Subject != owner {
		return models.OrderSummary{}, fmt.Errorf("%w: state belongs to another user", models.ErrNoNavigationState)
	}
	return cl.Summary, nil
}

// Set writes the summary into the response cookie.
func (c *Codec) Set(w http.ResponseWriter, summary models.OrderSummary, owner string) error {
	value, err := c.Encode(summary, owner)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get reads the summary. Any problem yields ErrNoNavigationState.
func (c *Codec) Get(r *http.Request, owner string) (models.OrderSummary, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return models.OrderSummary{}, models.ErrNoNavigationState
		}
		return models.OrderSummary{}, fmt.Errorf("%w: %v", models.ErrNoNavigationState, err)
	}
	return c.Decode(cookie.Value, owner)
}

// Clear drops the state cookie.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
