package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest HS256 key accepted at startup.
const MinSecretLength = 32

// DefaultTokenLifetime is how long a session token is valid (24 hours)
const DefaultTokenLifetime = 24 * time.Hour

// Claims are the optional authority hints carried next to the subject.
type Claims struct {
	Authorities []string          `json:"authorities,omitempty"`
	Attributes  map[string]string `json:"attrs,omitempty"`
}

// SessionClaims is what a validated token decodes to.
type SessionClaims struct {
	Subject string
	Claims
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	Claims
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Lifetime time.Duration
	Clock    Clock
}

// TokenService issues and validates stateless HS256 session tokens.
// The key is fixed at construction and never mutated, so the service is
// safe for concurrent use without locking.
type TokenService struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	clock    Clock
	parser   *jwt.Parser
}

// NewTokenService validates cfg and returns a ready TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultTokenLifetime
	}
	if cfg.Lifetime < time.Second {
		return nil, errors.New("token lifetime must be at least one second")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(cfg.Clock.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenService{
		secret:   secret,
		issuer:   cfg.Issuer,
		lifetime: cfg.Lifetime,
		clock:    cfg.Clock,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for subject. It returns the compact token and its expiry.
func (s *TokenService) Issue(subject string, claims Claims) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}

	now := s.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(s.lifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate verifies the signature, then the lifetime, and returns the decoded claims.
func (s *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	var claims jwtClaims

	token, err := s.parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrTokenInvalid
	}

	out := &SessionClaims{
		Subject: claims.Subject,
		Claims:  claims.Claims,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}
