// Package auth supplies the current user to the chat and subscription flows.
package auth

import (
	"context"
	"net/http"
	"strings"

	"atsboost/internal/models"
)

// TokenCookie holds the access token for browser page requests.
const TokenCookie = "access_token"

// Verifier turns an access token issued by the hosted auth into a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

type contextKey string

const userKey contextKey = "user"

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// TokenFromRequest prefers the bearer header and falls back to the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}
