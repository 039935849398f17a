package auth

import (
	"context"
	"testing"

	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	kind   string
	result *Authentication
	calls  int
}

func (s *stubStrategy) Supports(creds Credentials) bool {
	return creds.Kind() == s.kind
}

func (s *stubStrategy) Authenticate(_ context.Context, _ Credentials) (*Authentication, error) {
	s.calls++
	return s.result, nil
}

func TestChain_DispatchesByKind(t *testing.T) {
	otp := &stubStrategy{kind: "otp", result: &Authentication{Subject: "from-otp"}}
	bearer := &stubStrategy{kind: "bearer", result: &Authentication{Subject: "from-bearer"}}
	chain := NewChain(otp, bearer)

	got, err := chain.Authenticate(context.Background(), BearerCredentials{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "from-bearer", got.Subject)
	assert.Equal(t, 0, otp.calls)

	got, err = chain.Authenticate(context.Background(), OTPCredentials{Address: "a@b.c", Purpose: models.PurposeLogin, Code: "X"})
	require.NoError(t, err)
	assert.Equal(t, "from-otp", got.Subject)
}

func TestChain_Unsupported(t *testing.T) {
	chain := NewChain(&stubStrategy{kind: "otp"})

	_, err := chain.Authenticate(context.Background(), BearerCredentials{Token: "t"})
	assert.ErrorIs(t, err, models.ErrUnsupportedCredential)
}
