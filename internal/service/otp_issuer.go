package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ==============================================
// COLLABORATORS
// ==============================================

// CodeStore persists OTP records keyed by (address, purpose).
type CodeStore interface {
	Insert(ctx context.Context, rec *models.OTPRecord) error
	FindMostRecent(ctx context.Context, address string, purpose models.Purpose) (*models.OTPRecord, error)
	CountSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) (int, error)
	// GeneratedAtSince lists generation times after since, oldest first.
	GeneratedAtSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) ([]time.Time, error)
	// MarkUsed reports whether this call flipped used from false to true.
	MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error)
}

// Notifier delivers a plain-text message to an address. It does not retry.
type Notifier interface {
	Send(ctx context.Context, address, subject, body string) error
}

// ==============================================
// OTP POLICY
// ==============================================

// OTPPolicy holds the issuance limits. Zero fields fall back to the defaults.
type OTPPolicy struct {
	TTL            time.Duration
	ShortWindow    time.Duration
	ShortThreshold int
	DailyThreshold int
}

func DefaultOTPPolicy() OTPPolicy {
	return OTPPolicy{
		TTL:            models.DefaultOTPTTL,
		ShortWindow:    models.DefaultShortWindow,
		ShortThreshold: models.DefaultShortThreshold,
		DailyThreshold: models.DefaultDailyThreshold,
	}
}

func (p OTPPolicy) withDefaults() OTPPolicy {
	d := DefaultOTPPolicy()
	if p.TTL <= 0 {
		p.TTL = d.TTL
	}
	if p.ShortWindow <= 0 {
		p.ShortWindow = d.ShortWindow
	}
	if p.ShortThreshold <= 0 {
		p.ShortThreshold = d.ShortThreshold
	}
	if p.DailyThreshold <= 0 {
		p.DailyThreshold = d.DailyThreshold
	}
	return p
}

// ==============================================
// OTP ISSUER
// ==============================================

type OTPIssuer struct {
	store    CodeStore
	notifier Notifier
	clock    auth.Clock
	policy   OTPPolicy
	validate *validator.Validate
	generate func() (string, error)
	log      *zap.Logger
}

func NewOTPIssuer(store CodeStore, notifier Notifier, clock auth.Clock, policy OTPPolicy, log *zap.Logger) *OTPIssuer {
	if clock == nil {
		clock = auth.SystemClock{}
	}
	return &OTPIssuer{
		store:    store,
		notifier: notifier,
		clock:    clock,
		policy:   policy.withDefaults(),
		validate: validator.New(),
		generate: auth.GenerateOTP,
		log:      log.Named("otp_issuer"),
	}
}

// Policy returns the effective limits.
func (s *OTPIssuer) Policy() OTPPolicy {
	return s.policy
}

// Issue checks both throttles, stores a fresh code and sends it to address.
//
// Rate limits come back as *models.RateLimitError. A delivery failure wraps
// models.ErrTransportFailure; the record stays stored and counts against
// the limits.
func (s *OTPIssuer) Issue(ctx context.Context, address string, purpose models.Purpose) error {
	// 1. Validate input before touching storage
	address = models.NormalizeAddress(address)
	if err := s.validate.Var(address, "required,email"); err != nil {
		return fmt.Errorf("%w: %q", models.ErrInvalidAddress, address)
	}

	purpose, err := models.ParsePurpose(string(purpose))
	if err != nil {
		return err
	}

	now := s.clock.Now()

	// 2. Short-window throttle
	if err := s.checkShortWindow(ctx, address, purpose, now); err != nil {
		return err
	}

	// 3. Daily throttle
	dailyCount, err := s.store.CountSince(ctx, address, purpose, now.Add(-models.DailyWindow))
	if err != nil {
		return fmt.Errorf("failed to check daily limit: %w", err)
	}
	if dailyCount >= s.policy.DailyThreshold {
		s.log.Info("daily OTP limit reached",
			zap.String("address", address),
			zap.Stringer("purpose", purpose),
			zap.Int("count", dailyCount),
		)
		return &models.RateLimitError{Kind: models.RateLimitDaily}
	}

	// 4. Generate and persist
	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}

	rec := &models.OTPRecord{
		Address:     address,
		Purpose:     purpose,
		Code:        code,
		GeneratedAt: now,
		ExpiresAt:   now.Add(s.policy.TTL),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("failed to create OTP: %w", err)
	}

	// 5. Deliver
	subject, body := OTPEmailContent(purpose, code, s.policy.TTL)
	if err := s.notifier.Send(ctx, address, subject, body); err != nil {
		s.log.Warn("OTP delivery failed",
			zap.Int64("otp_id", rec.ID),
			zap.String("address", address),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", models.ErrTransportFailure, err)
	}

	s.log.Info("OTP issued",
		zap.Int64("otp_id", rec.ID),
		zap.String("address", address),
		zap.Stringer("purpose", purpose),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return nil
}

// checkShortWindow trips once ShortThreshold codes fall inside the window.
// The throttle lifts when the record at index count-ShortThreshold (oldest
// first) ages out, so RetryAfter is measured from that record.
func (s *OTPIssuer) checkShortWindow(ctx context.Context, address string, purpose models.Purpose, now time.Time) error {
	generated, err := s.store.GeneratedAtSince(ctx, address, purpose, now.Add(-s.policy.ShortWindow))
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	count := len(generated)
	if count < s.policy.ShortThreshold {
		return nil
	}

	retryAfter := generated[count-s.policy.ShortThreshold].Add(s.policy.ShortWindow).Sub(now)

	s.log.Info("short-window OTP limit reached",
		zap.String("address", address),
		zap.Stringer("purpose", purpose),
		zap.Int("count", count),
		zap.Duration("retry_after", retryAfter),
	)
	return &models.RateLimitError{Kind: models.RateLimitShort, RetryAfter: retryAfter}
}
