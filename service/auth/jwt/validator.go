// Package jwt validates bearer tokens with the scy JWT verifier
package jwt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/viant/scy"
	sjwt "github.com/viant/scy/auth/jwt"
	"github.com/viant/scy/auth/jwt/verifier"
	"github.com/viant/tripmanager/service/auth"
)

// Config locates the verification key
type Config struct {
	RSAKeyURL  string `json:"rsaKeyURL,omitempty" yaml:"rsaKeyURL,omitempty"`
	HMACKeyURL string `json:"hmacKeyURL,omitempty" yaml:"hmacKeyURL,omitempty"`
	KeySecret  string `json:"keySecret,omitempty" yaml:"keySecret,omitempty"`
}

// ClaimsVerifier verifies a token and returns its claims
type ClaimsVerifier interface {
	VerifyClaims(ctx context.Context, token string) (*sjwt.Claims, error)
}

// Validator maps verified bearer token claims to auth.User
type Validator struct {
	verifier ClaimsVerifier
}

// New creates a validator backed by the scy verifier
func New(ctx context.Context, config *Config) (*Validator, error) {
	if config.RSAKeyURL == "" && config.HMACKeyURL == "" {
		return nil, fmt.Errorf("either rsaKeyURL or hmacKeyURL must be provided")
	}
	verifierConfig := &verifier.Config{}
	if config.RSAKeyURL != "" {
		verifierConfig.RSA = []*scy.Resource{{URL: config.RSAKeyURL, Key: config.KeySecret}}
	}
	if config.HMACKeyURL != "" {
		verifierConfig.HMAC = &scy.Resource{URL: config.HMACKeyURL, Key: config.KeySecret}
	}
	jwtVerifier := verifier.New(verifierConfig)
	if err := jwtVerifier.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize JWT verifier: %w", err)
	}
	return NewWithVerifier(jwtVerifier), nil
}

// NewWithVerifier creates a validator over an initialized verifier
func NewWithVerifier(claimsVerifier ClaimsVerifier) *Validator {
	return &Validator{verifier: claimsVerifier}
}

// Validate implements auth.Validator. Requests without a bearer token yield
// a nil user.
func (v *Validator) Validate(ctx context.Context, request *http.Request) (*auth.User, error) {
	token := auth.BearerToken(request)
	if token == "" {
		return nil, nil
	}
	claims, err := v.verifier.VerifyClaims(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrUnauthorized, err)
	}
	if claims == nil {
		return nil, nil
	}
	user := &auth.User{Subject: claims.Subject, Email: claims.Email, Username: claims.Username}
	if user.Subject == "" {
		user.Subject = user.Email
	}
	return user, nil
}

var _ auth.Validator = (*Validator)(nil)
