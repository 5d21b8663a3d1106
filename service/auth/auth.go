// Package auth authenticates HTTP trigger requests
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned when a request carries no valid identity
var ErrUnauthorized = errors.New("unauthorized")

// User is an authenticated caller
type User struct {
	Subject  string `json:"subject"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Validator extracts the caller of a request. A nil user with nil error
// means the caller is unknown.
type Validator interface {
	Validate(ctx context.Context, request *http.Request) (*User, error)
}

// ValidatorFunc adapts a function to Validator
type ValidatorFunc func(ctx context.Context, request *http.Request) (*User, error)

// Validate calls f
func (f ValidatorFunc) Validate(ctx context.Context, request *http.Request) (*User, error) {
	return f(ctx, request)
}

// BearerToken returns the bearer token of the Authorization header
func BearerToken(request *http.Request) string {
	header := request.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type userKey struct{}

// WithUser returns ctx carrying user
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userKey{}).(*User)
	return user
}
