package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/Brownie44l1/extension-admin/internal/auth"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"go.uber.org/zap"
)

// ==============================================
// OTP VERIFIER
// ==============================================

type OTPVerifier struct {
	store CodeStore
	clock auth.Clock
	log   *zap.Logger
}

func NewOTPVerifier(store CodeStore, clock auth.Clock, log *zap.Logger) *OTPVerifier {
	if clock == nil {
		clock = auth.SystemClock{}
	}
	return &OTPVerifier{
		store: store,
		clock: clock,
		log:   log.Named("otp_verifier"),
	}
}

// Verify redeems code for (address, purpose). It returns true at most once
// per record. A wrong, expired, used or superseded code returns false with
// a nil error; only storage failures return an error.
func (v *OTPVerifier) Verify(ctx context.Context, address string, purpose models.Purpose, code string) (bool, error) {
	address = models.NormalizeAddress(address)
	code = models.NormalizeCode(code)
	if address == "" || code == "" {
		return false, nil
	}

	purpose, err := models.ParsePurpose(string(purpose))
	if err != nil {
		return false, nil
	}

	rec, err := v.store.FindMostRecent(ctx, address, purpose)
	if err != nil {
		if errors.Is(err, models.ErrOTPNotFound) {
			v.reject(address, purpose, "no code issued")
			return false, nil
		}
		return false, fmt.Errorf("failed to get OTP: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		v.reject(address, purpose, "code mismatch")
		return false, nil
	}

	now := v.clock.Now()
	if rec.Used {
		v.reject(address, purpose, "already used")
		return false, nil
	}
	if rec.IsExpiredAt(now) {
		v.reject(address, purpose, "expired")
		return false, nil
	}

	// The conditional write decides; a concurrent redeemer may have won.
	flipped, err := v.store.MarkUsed(ctx, rec.ID, now)
	if err != nil {
		return false, fmt.Errorf("failed to redeem OTP: %w", err)
	}
	if !flipped {
		v.reject(address, purpose, "lost redemption race")
		return false, nil
	}

	v.log.Info("OTP redeemed",
		zap.Int64("otp_id", rec.ID),
		zap.String("address", address),
		zap.Stringer("purpose", purpose),
	)
	return true, nil
}

func (v *OTPVerifier) reject(address string, purpose models.Purpose, reason string) {
	v.log.Debug("OTP rejected",
		zap.String("address", address),
		zap.Stringer("purpose", purpose),
		zap.String("reason", reason),
	)
}
