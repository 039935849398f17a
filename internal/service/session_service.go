package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/auth"
	"go.uber.org/zap"
)

// Authenticator resolves credentials to an identity, typically an *auth.Chain.
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Authentication, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(subject string, claims auth.Claims) (string, time.Time, error)
}

// Session is a freshly minted bearer token and the identity behind it.
type Session struct {
	Token          string
	ExpiresAt      time.Time
	Authentication *auth.Authentication
}

// SessionService authenticates credentials and hands the identity to the token service.
type SessionService struct {
	authn  Authenticator
	tokens TokenIssuer
	log    *zap.Logger
}

func NewSessionService(authn Authenticator, tokens TokenIssuer, log *zap.Logger) *SessionService {
	return &SessionService{
		authn:  authn,
		tokens: tokens,
		log:    log.Named("session"),
	}
}

func (s *SessionService) SignIn(ctx context.Context, creds auth.Credentials) (*Session, error) {
	authn, err := s.authn.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(authn.Subject, auth.Claims{
		Authorities: authn.Authorities,
		Attributes:  authn.Attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Debug("session issued", zap.String("subject", authn.Subject), zap.Time("expires_at", expiresAt))
	return &Session{
		Token:          token,
		ExpiresAt:      expiresAt,
		Authentication: authn,
	}, nil
}
