package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingIssuer struct{ err error }

func (f failingIssuer) Issue(string, auth.Claims) (string, time.Time, error) {
	return "", time.Time{}, f.err
}

func TestSessionService_SignIn(t *testing.T) {
	clock := newFakeClock()
	tokens := newTestTokens(t, clock)
	chain := auth.NewChain(NewOTPAuthProvider(acceptingVerifier(t), knownPrincipals(), zaptest.NewLogger(t)))
	sessions := NewSessionService(chain, tokens, zaptest.NewLogger(t))

	sess, err := sessions.SignIn(context.Background(), auth.OTPCredentials{
		Address: "alice@example.org", Purpose: models.PurposeLogin, Code: "GOOD23",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, clock.Now().Add(time.Hour), sess.ExpiresAt)
	assert.Equal(t, coordinator.ID, sess.Authentication.Subject)

	claims, err := tokens.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, coordinator.ID, claims.Subject)
	assert.Equal(t, []string{"ROLE_COORDINATOR"}, claims.Authorities)
	assert.Equal(t, coordinator.Email, claims.Attributes["email"])
}

func TestSessionService_SignIn_Failures(t *testing.T) {
	chain := auth.NewChain(NewOTPAuthProvider(acceptingVerifier(t), knownPrincipals(), zaptest.NewLogger(t)))

	t.Run("bad code", func(t *testing.T) {
		sessions := NewSessionService(chain, newTestTokens(t, newFakeClock()), zaptest.NewLogger(t))
		sess, err := sessions.SignIn(context.Background(), auth.OTPCredentials{
			Address: "alice@example.org", Purpose: models.PurposeLogin, Code: "BAD234",
		})
		assert.Nil(t, sess)
		assert.ErrorIs(t, err, models.ErrInvalidCredential)
	})

	t.Run("unsupported credential", func(t *testing.T) {
		sessions := NewSessionService(chain, newTestTokens(t, newFakeClock()), zaptest.NewLogger(t))
		_, err := sessions.SignIn(context.Background(), auth.BearerCredentials{Token: "x"})
		assert.ErrorIs(t, err, models.ErrUnsupportedCredential)
	})

	t.Run("signing fails", func(t *testing.T) {
		signErr := errors.New("hsm offline")
		sessions := NewSessionService(chain, failingIssuer{err: signErr}, zaptest.NewLogger(t))
		_, err := sessions.SignIn(context.Background(), auth.OTPCredentials{
			Address: "alice@example.org", Purpose: models.PurposeLogin, Code: "GOOD23",
		})
		assert.ErrorIs(t, err, signErr)
		assert.False(t, models.IsAuthError(err))
	})
}
