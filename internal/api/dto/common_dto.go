package dto

// ==============================================
// COMMON RESPONSE DTOs
// ==============================================

// ErrorResponse - Standard error format
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse - API health check
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
