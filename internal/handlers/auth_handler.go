package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/api/dto"
	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/middleware"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/Brownie44l1/extension-admin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ==============================================
// SERVICE INTERFACES (for testing)
// ==============================================

type OTPIssuer interface {
	Issue(ctx context.Context, address string, purpose models.Purpose) error
}

type SessionService interface {
	SignIn(ctx context.Context, creds auth.Credentials) (*service.Session, error)
}

// ==============================================
// HANDLER (HTTP Layer ONLY)
// ==============================================

type AuthHandler struct {
	issuer   OTPIssuer
	sessions SessionService
	otpTTL   time.Duration
	tokenTTL time.Duration
	log      *zap.Logger
}

func NewAuthHandler(issuer OTPIssuer, sessions SessionService, otpTTL, tokenTTL time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		issuer:   issuer,
		sessions: sessions,
		otpTTL:   otpTTL,
		tokenTTL: tokenTTL,
		log:      log.Named("auth_handler"),
	}
}

// ==============================================
// ENDPOINTS
// ==============================================

// RequestOTP handles POST /api/v1/auth/otp/request
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req dto.RequestOTPRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	if err := h.issuer.Issue(c.Request.Context(), req.Address, models.Purpose(req.Purpose)); err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, dto.RequestOTPResponse{
		Success:          true,
		Message:          "Verification code sent",
		ExpiresInSeconds: int64(h.otpTTL / time.Second),
	})
}

// VerifyOTP handles POST /api/v1/auth/otp/verify
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	// an unknown purpose fails like any other bad credential
	purpose, err := models.ParsePurpose(req.Purpose)
	if err != nil {
		h.log.Info("request rejected",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("code", models.ErrCodeInvalidCredentials),
			zap.Error(err),
		)
		respondError(c, http.StatusUnauthorized, models.ErrCodeInvalidCredentials, invalidCredentialsMessage)
		return
	}

	sess, err := h.sessions.SignIn(c.Request.Context(), auth.OTPCredentials{
		Address: req.Address,
		Purpose: purpose,
		Code:    req.Code,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, dto.TokenResponse{
		Token:            sess.Token,
		TokenType:        "Bearer",
		ExpiresInSeconds: int64(h.tokenTTL / time.Second),
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	authn, ok := middleware.GetAuthentication(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Authentication required")
		return
	}

	authorities := authn.Authorities
	if authorities == nil {
		authorities = []string{}
	}

	respondSuccess(c, http.StatusOK, dto.MeResponse{
		Subject:     authn.Subject,
		Authorities: authorities,
		Attributes:  authn.Attributes,
	})
}

// ==============================================
// ROUTE REGISTRATION
// ==============================================

// RegisterRoutes expects middleware.Bearer to be installed on router.
func (h *AuthHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1/auth")
	{
		v1.POST("/otp/request", h.RequestOTP)
		v1.POST("/otp/verify", h.VerifyOTP)
		v1.GET("/me", middleware.RequireAuth(), h.Me)
	}
}

// ==============================================
// HELPER FUNCTIONS
// ==============================================

// respondSuccess sends a successful JSON response
func respondSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// respondError sends an error JSON response. Messages are fixed strings;
// internal error text never reaches the client.
func respondError(c *gin.Context, statusCode int, code, message string) {
	respondErrorDetails(c, statusCode, code, message, nil)
}

func respondErrorDetails(c *gin.Context, statusCode int, code, message string, details map[string]string) {
	c.JSON(statusCode, dto.ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// respondServiceError maps service errors to a status and stable code, logging the cause
func (h *AuthHandler) respondServiceError(c *gin.Context, err error) {
	statusCode, code, message := mapServiceError(err)

	var details map[string]string
	var rl *models.RateLimitError
	if errors.As(err, &rl) && rl.Kind == models.RateLimitShort {
		seconds := strconv.Itoa(int(rl.RetryAfter.Round(time.Second) / time.Second))
		c.Header("Retry-After", seconds)
		details = map[string]string{"retry_after_seconds": seconds}
	}

	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("code", code),
		zap.Error(err),
	}
	if statusCode >= http.StatusInternalServerError {
		h.log.Error("request failed", fields...)
		_ = c.Error(err)
	} else {
		h.log.Info("request rejected", fields...)
	}

	respondErrorDetails(c, statusCode, code, message, details)
}

const invalidCredentialsMessage = "Invalid or expired code"

// mapServiceError maps service errors to HTTP status codes and user-friendly messages
func mapServiceError(err error) (int, string, string) {
	switch {
	// Validation errors (400 Bad Request)
	case models.IsValidationError(err):
		if errors.Is(err, models.ErrInvalidPurpose) {
			return http.StatusBadRequest, models.ErrCodeInvalidPurpose, "Invalid purpose"
		}
		return http.StatusBadRequest, models.ErrCodeInvalidAddress, "Invalid email address"

	// Throttles (400 Bad Request)
	case models.IsRateLimitError(err):
		return mapRateLimitError(err)

	// Credential errors (401 Unauthorized), one message for every cause
	case models.IsAuthError(err):
		return http.StatusUnauthorized, models.ErrCodeInvalidCredentials, invalidCredentialsMessage

	// Delivery errors (500 Internal Server Error)
	case errors.Is(err, models.ErrTransportFailure):
		return http.StatusInternalServerError, models.ErrCodeTransportFailure, "Could not deliver the verification code"

	// Default (500 Internal Server Error)
	default:
		return http.StatusInternalServerError, models.ErrCodeInternalError, "Internal server error"
	}
}

func mapRateLimitError(err error) (int, string, string) {
	if errors.Is(err, models.ErrRateLimitedDaily) {
		return http.StatusBadRequest, models.ErrCodeRateLimitedDaily, "Daily code limit reached"
	}

	var rl *models.RateLimitError
	if errors.As(err, &rl) {
		return http.StatusBadRequest, models.ErrCodeRateLimitedShort,
			fmt.Sprintf("Too many codes requested, try again in %d minutes", rl.RetryMinutes())
	}
	return http.StatusBadRequest, models.ErrCodeRateLimitedShort, "Too many codes requested, try again later"
}
