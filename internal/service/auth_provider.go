package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"go.uber.org/zap"
)

// CodeVerifier redeems a submitted one-time code.
type CodeVerifier interface {
	Verify(ctx context.Context, address string, purpose models.Purpose, code string) (bool, error)
}

// PrincipalLookup resolves an identity by email address.
type PrincipalLookup interface {
	FindByAddress(ctx context.Context, address string) (*models.Principal, error)
}

// TokenValidator decodes a session token.
type TokenValidator interface {
	Validate(token string) (*auth.SessionClaims, error)
}

// ==============================================
// AUTHENTICATION STATES
// ==============================================

type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StatePendingVerification
	StateAuthenticated
	StateRejected
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePendingVerification:
		return "pending_verification"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// Attempt is one OTP submission moving through the provider states.
// Result is set only in StateAuthenticated, Err only in StateRejected.
type Attempt struct {
	Credentials auth.OTPCredentials
	State       AuthState
	Result      *auth.Authentication
	Err         error
}

func (a *Attempt) reject(err error) *Attempt {
	a.State = StateRejected
	a.Err = err
	return a
}

// ==============================================
// OTP AUTH PROVIDER
// ==============================================

// OTPAuthProvider turns a redeemed code into an authenticated principal.
type OTPAuthProvider struct {
	verifier   CodeVerifier
	principals PrincipalLookup
	log        *zap.Logger
}

func NewOTPAuthProvider(verifier CodeVerifier, principals PrincipalLookup, log *zap.Logger) *OTPAuthProvider {
	return &OTPAuthProvider{
		verifier:   verifier,
		principals: principals,
		log:        log.Named("otp_provider"),
	}
}

func (p *OTPAuthProvider) Supports(creds auth.Credentials) bool {
	_, ok := creds.(auth.OTPCredentials)
	return ok
}

func (p *OTPAuthProvider) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Authentication, error) {
	c, ok := creds.(auth.OTPCredentials)
	if !ok {
		return nil, models.ErrUnsupportedCredential
	}

	attempt := p.Run(ctx, c)
	if attempt.State != StateAuthenticated {
		return nil, attempt.Err
	}
	return attempt.Result, nil
}

// Run drives one attempt to a terminal state.
func (p *OTPAuthProvider) Run(ctx context.Context, creds auth.OTPCredentials) *Attempt {
	attempt := &Attempt{Credentials: creds, State: StateUnauthenticated}
	address := models.NormalizeAddress(creds.Address)

	// Unauthenticated -> PendingVerification
	attempt.State = StatePendingVerification
	ok, err := p.verifier.Verify(ctx, address, creds.Purpose, creds.Code)
	if err != nil {
		p.log.Error("OTP verification failed", zap.String("address", address), zap.Error(err))
		return attempt.reject(fmt.Errorf("failed to verify OTP: %w", err))
	}
	if !ok {
		return attempt.reject(models.ErrInvalidCredential)
	}

	// PendingVerification -> Authenticated
	principal, err := p.principals.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, models.ErrPrincipalNotFound) {
			p.log.Info("OTP redeemed for unknown principal", zap.String("address", address))
			return attempt.reject(models.ErrPrincipalNotFound)
		}
		p.log.Error("principal lookup failed", zap.String("address", address), zap.Error(err))
		return attempt.reject(fmt.Errorf("failed to get principal: %w", err))
	}

	attempt.State = StateAuthenticated
	attempt.Result = &auth.Authentication{
		Subject:     principal.ID,
		Principal:   principal,
		Authorities: principal.Authorities(),
		Attributes:  map[string]string{"email": principal.Email},
	}

	p.log.Info("principal authenticated",
		zap.String("subject", principal.ID),
		zap.Stringer("purpose", creds.Purpose),
	)
	return attempt
}

// ==============================================
// TOKEN AUTH PROVIDER
// ==============================================

// TokenAuthProvider rebuilds an identity from a bearer session token.
type TokenAuthProvider struct {
	tokens TokenValidator
}

func NewTokenAuthProvider(tokens TokenValidator) *TokenAuthProvider {
	return &TokenAuthProvider{tokens: tokens}
}

func (p *TokenAuthProvider) Supports(creds auth.Credentials) bool {
	_, ok := creds.(auth.BearerCredentials)
	return ok
}

func (p *TokenAuthProvider) Authenticate(_ context.Context, creds auth.Credentials) (*auth.Authentication, error) {
	c, ok := creds.(auth.BearerCredentials)
	if !ok {
		return nil, models.ErrUnsupportedCredential
	}

	claims, err := p.tokens.Validate(c.Token)
	if err != nil {
		return nil, err
	}

	return &auth.Authentication{
		Subject:     claims.Subject,
		Authorities: claims.Authorities,
		Attributes:  claims.Attributes,
	}, nil
}
