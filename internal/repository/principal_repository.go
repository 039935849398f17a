package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ==============================================
// PRINCIPAL REPOSITORY
// ==============================================

// PrincipalRepository resolves sign-in identities from the principals table.
type PrincipalRepository struct {
	db *pgxpool.Pool
}

func NewPrincipalRepository(db *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

const principalColumns = `id::text, email, display_name, roles, active, created_at, updated_at`

// FindByAddress returns the active principal registered under email,
// ignoring case. Inactive principals are reported as not found.
func (r *PrincipalRepository) FindByAddress(ctx context.Context, email string) (*models.Principal, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE lower(email) = lower($1) AND active = TRUE
	`

	p, err := scanPrincipal(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get principal by email: %w", err)
	}

	return p, nil
}

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&p.Roles,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPrincipalNotFound
		}
		return nil, err
	}

	return &p, nil
}
