package models

import "time"

// RenewalToken is the long-lived credential exchanged for a fresh access token.
// An identity owns at most one at a time.
type RenewalToken struct {
	ID         string    `db:"id"`
	IdentityID string    `db:"identity_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Age reports how old the token is relative to now.
func (t *RenewalToken) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}
