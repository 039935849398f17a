package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Brownie44l1/extension-admin/internal/api/dto"
	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Authentication, error) {
	args := m.Called(ctx, creds)
	var authn *auth.Authentication
	if args.Get(0) != nil {
		authn = args.Get(0).(*auth.Authentication)
	}
	return authn, args.Error(1)
}

func setupRouter(authn Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Bearer(authn, zap.NewNop()))
	router.GET("/open", func(c *gin.Context) {
		subject := c.GetString(ContextSubjectKey)
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	})
	router.GET("/private", RequireAuth(), func(c *gin.Context) {
		authn, _ := GetAuthentication(c)
		c.JSON(http.StatusOK, gin.H{"subject": authn.Subject})
	})
	return router
}

func do(router *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ==============================================
// BEARER
// ==============================================

func TestBearer_NoHeaderIsAnonymous(t *testing.T) {
	authn := new(MockAuthenticator)
	router := setupRouter(authn)

	rr := do(router, "/open", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"subject":""}`, rr.Body.String())
	authn.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestBearer_ValidToken(t *testing.T) {
	authn := new(MockAuthenticator)
	authn.On("Authenticate", mock.Anything, auth.BearerCredentials{Token: "good-token"}).
		Return(&auth.Authentication{Subject: "user-1", Authorities: []string{"ROLE_ADMIN"}}, nil)
	router := setupRouter(authn)

	rr := do(router, "/private", "Bearer good-token")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"subject":"user-1"}`, rr.Body.String())
	authn.AssertExpectations(t)
}

func TestBearer_SchemeIsCaseInsensitive(t *testing.T) {
	authn := new(MockAuthenticator)
	authn.On("Authenticate", mock.Anything, auth.BearerCredentials{Token: "good-token"}).
		Return(&auth.Authentication{Subject: "user-1"}, nil)

	rr := do(setupRouter(authn), "/open", "bearer good-token")

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBearer_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
	}{
		{"wrong scheme", "Basic dXNlcjpwYXNz", nil},
		{"missing token", "Bearer ", nil},
		{"no separator", "Bearer", nil},
		{"invalid token", "Bearer forged", models.ErrTokenInvalid},
		{"expired token", "Bearer stale", models.ErrTokenExpired},
		{"backend failure", "Bearer whatever", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := new(MockAuthenticator)
			if tt.err != nil {
				authn.On("Authenticate", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			router := setupRouter(authn)

			// even the open route is closed to a bad token
			rr := do(router, "/open", tt.header)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, models.ErrCodeUnauthorized, resp.Error)
			assert.Equal(t, "Authentication required", resp.Message)
			if tt.err == nil {
				authn.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRequireAuth_Anonymous(t *testing.T) {
	rr := do(setupRouter(new(MockAuthenticator)), "/private", "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// ==============================================
// REQUEST ID / LOGGER
// ==============================================

func TestRequestID(t *testing.T) {
	router := setupRouter(new(MockAuthenticator))

	rr := do(router, "/open", "")
	_, err := uuid.Parse(rr.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(RequestIDHeader, inbound)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, inbound, rr.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\r\n")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.NotEqual(t, "not a uuid\r\n", rr.Header().Get(RequestIDHeader))
}

func TestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(RequestID(), Logger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusNoContent), entries[0].ContextMap()["status"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
