package auth

import (
	"context"

	"github.com/Brownie44l1/extension-admin/internal/models"
)

// Credentials is an opaque credential shape submitted for authentication.
type Credentials interface {
	Kind() string
}

// OTPCredentials is an address plus the code delivered to it.
type OTPCredentials struct {
	Address string
	Purpose models.Purpose
	Code    string
}

func (OTPCredentials) Kind() string { return "otp" }

// BearerCredentials is a session token presented on a request.
type BearerCredentials struct {
	Token string
}

func (BearerCredentials) Kind() string { return "bearer" }

// Authentication is a successfully authenticated identity.
type Authentication struct {
	Subject     string
	Principal   *models.Principal // nil when rebuilt from a token
	Authorities []string
	Attributes  map[string]string
}

// Strategy authenticates one credential shape.
type Strategy interface {
	Supports(creds Credentials) bool
	Authenticate(ctx context.Context, creds Credentials) (*Authentication, error)
}

// Chain dispatches credentials to the first strategy that supports them.
// It is fixed at construction and safe for concurrent use.
type Chain struct {
	strategies []Strategy
}

func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

func (c *Chain) Authenticate(ctx context.Context, creds Credentials) (*Authentication, error) {
	for _, s := range c.strategies {
		if s.Supports(creds) {
			return s.Authenticate(ctx, creds)
		}
	}
	return nil, models.ErrUnsupportedCredential
}
