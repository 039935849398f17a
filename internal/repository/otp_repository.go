package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ==============================================
// OTP REPOSITORY
// ==============================================

// OTPRepository is the Postgres code store backed by the otp_codes table.
type OTPRepository struct {
	db *pgxpool.Pool
}

func NewOTPRepository(db *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{db: db}
}

// ==============================================
// INSERT
// ==============================================

func (r *OTPRepository) Insert(ctx context.Context, rec *models.OTPRecord) error {
	query := `
		INSERT INTO otp_codes (address, purpose, code, generated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	row := r.db.QueryRow(ctx, query,
		rec.Address,
		rec.Purpose,
		rec.Code,
		rec.GeneratedAt,
		rec.ExpiresAt,
	)

	if err := row.Scan(&rec.ID); err != nil {
		return fmt.Errorf("failed to insert OTP: %w", err)
	}

	return nil
}

// ==============================================
// READ
// ==============================================

// FindMostRecent returns the newest record for (address, purpose), used or not.
func (r *OTPRepository) FindMostRecent(ctx context.Context, address string, purpose models.Purpose) (*models.OTPRecord, error) {
	query := `
		SELECT id, address, purpose, code, generated_at, expires_at, used, used_at
		FROM otp_codes
		WHERE address = $1 AND purpose = $2
		ORDER BY generated_at DESC, id DESC
		LIMIT 1
	`

	var rec models.OTPRecord
	err := r.db.QueryRow(ctx, query, address, purpose).Scan(
		&rec.ID,
		&rec.Address,
		&rec.Purpose,
		&rec.Code,
		&rec.GeneratedAt,
		&rec.ExpiresAt,
		&rec.Used,
		&rec.UsedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOTPNotFound
		}
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	return &rec, nil
}

// CountSince counts records for (address, purpose) generated after since.
func (r *OTPRepository) CountSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM otp_codes
		WHERE address = $1 AND purpose = $2 AND generated_at > $3
	`

	var count int
	err := r.db.QueryRow(ctx, query, address, purpose, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent OTPs: %w", err)
	}

	return count, nil
}

// GeneratedAtSince lists generation times after since for (address, purpose), oldest first.
func (r *OTPRepository) GeneratedAtSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) ([]time.Time, error) {
	query := `
		SELECT generated_at
		FROM otp_codes
		WHERE address = $1 AND purpose = $2 AND generated_at > $3
		ORDER BY generated_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, address, purpose, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent OTPs: %w", err)
	}

	generated, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to list recent OTPs: %w", err)
	}

	return generated, nil
}

// ==============================================
// REDEEM
// ==============================================

// MarkUsed flips used from false to true in one conditional write.
// It reports false when another caller already flipped it.
func (r *OTPRepository) MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE otp_codes
		SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark OTP as used: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
