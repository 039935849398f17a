package models

import (
	"fmt"
	"strings"
	"time"
)

// ==============================================
// OTP PURPOSE
// ==============================================

// Purpose separates concurrent use-cases so codes issued for one never
// redeem another.
type Purpose string

const (
	PurposeRegistration Purpose = "registration"
	PurposeLogin        Purpose = "login"
)

// ParsePurpose accepts only known purposes. An empty tag is an error, never a default.
func ParsePurpose(raw string) (Purpose, error) {
	switch p := Purpose(strings.ToLower(strings.TrimSpace(raw))); p {
	case PurposeRegistration, PurposeLogin:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, raw)
	}
}

func (p Purpose) String() string {
	return string(p)
}

// ==============================================
// OTP RECORD MODEL
// ==============================================

// OTPRecord is one issued code. Records are never deleted by the auth core.
type OTPRecord struct {
	ID          int64      `db:"id"`
	Address     string     `db:"address"`
	Purpose     Purpose    `db:"purpose"`
	Code        string     `db:"code"`
	GeneratedAt time.Time  `db:"generated_at"`
	ExpiresAt   time.Time  `db:"expires_at"`
	Used        bool       `db:"used"`
	UsedAt      *time.Time `db:"used_at"`
}

// IsExpiredAt reports whether the code can no longer be redeemed at now.
func (r *OTPRecord) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsRedeemableAt reports whether the record is unused and inside its TTL.
func (r *OTPRecord) IsRedeemableAt(now time.Time) bool {
	return !r.Used && !r.IsExpiredAt(now)
}

// ==============================================
// OTP CONFIGURATION
// ==============================================
const (
	OTPLength   = 6
	OTPAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, 1/I

	DefaultOTPTTL         = 10 * time.Minute
	DefaultShortWindow    = 15 * time.Minute
	DefaultShortThreshold = 5
	DefaultDailyThreshold = 20
	DailyWindow           = 24 * time.Hour
	DefaultOTPRetention   = 48 * time.Hour
)

// NormalizeAddress lower-cases and trims an email address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeCode applies the same case folding used at generation.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
