package models

import (
	"time"
)

// ==============================================
// PRINCIPAL MODEL (Database mapping)
// ==============================================

// Principal is an identity that may sign in through the OTP channel.
// Principals are provisioned by the admin backend, not by the auth core.
type Principal struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	Roles       []string  `db:"roles"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Authorities returns the role strings carried into session tokens.
func (p *Principal) Authorities() []string {
	out := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
