package dto

// ==============================================
// AUTH REQUEST DTOs
// ==============================================

// RequestOTPRequest asks for a one-time code to be mailed to Address.
// Address syntax is checked by the issuer so it can report invalid_address.
type RequestOTPRequest struct {
	Address string `json:"address" binding:"required,max=254"`
	Purpose string `json:"purpose" binding:"required"`
}

// VerifyOTPRequest redeems a code for a session token.
type VerifyOTPRequest struct {
	Address string `json:"address" binding:"required,max=254"`
	Purpose string `json:"purpose" binding:"required"`
	Code    string `json:"code" binding:"required,max=32"`
}

// ==============================================
// AUTH RESPONSE DTOs
// ==============================================

type RequestOTPResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token            string `json:"token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// MeResponse describes the caller behind the bearer token.
type MeResponse struct {
	Subject     string            `json:"subject"`
	Authorities []string          `json:"authorities"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}
