package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Brownie44l1/extension-admin/internal/api/dto"
	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	AuthHeaderKey  = "Authorization"
	AuthTypeBearer = "bearer"

	ContextAuthKey    = "authentication"
	ContextSubjectKey = "subject"
)

// Authenticator resolves credentials to an identity, typically an *auth.Chain.
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Authentication, error)
}

// Bearer validates an Authorization: Bearer header when one is present.
// Requests without the header continue anonymously; a malformed, invalid
// or expired token is rejected with 401 before any handler runs.
func Bearer(authn Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			c.Next()
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, AuthTypeBearer) || token == "" {
			log.Debug("malformed authorization header", zap.String("request_id", GetRequestID(c)))
			abortUnauthorized(c)
			return
		}

		identity, err := authn.Authenticate(c.Request.Context(), auth.BearerCredentials{Token: token})
		if err != nil {
			if !models.IsAuthError(err) {
				log.Error("bearer authentication failed", zap.String("request_id", GetRequestID(c)), zap.Error(err))
			} else if errors.Is(err, models.ErrTokenExpired) {
				log.Debug("expired bearer token", zap.String("request_id", GetRequestID(c)))
			} else {
				log.Info("rejected bearer token", zap.String("request_id", GetRequestID(c)), zap.Error(err))
			}
			abortUnauthorized(c)
			return
		}

		c.Set(ContextAuthKey, identity)
		c.Set(ContextSubjectKey, identity.Subject)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests. It must run after Bearer.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetAuthentication(c); !ok {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// GetAuthentication returns the identity Bearer attached to the request.
func GetAuthentication(c *gin.Context) (*auth.Authentication, bool) {
	v, ok := c.Get(ContextAuthKey)
	if !ok {
		return nil, false
	}
	authn, ok := v.(*auth.Authentication)
	return authn, ok && authn != nil
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="extension-admin"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   models.ErrCodeUnauthorized,
		Message: "Authentication required",
	})
}
