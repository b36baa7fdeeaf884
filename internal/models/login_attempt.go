package models

import "time"

// LoginAttempt is one row of the append-only attempt ledger.
// Subject is stored as submitted and is not a foreign key, so attempts
// against unknown subjects still count towards throttling.
type LoginAttempt struct {
	ID        int64     `db:"id"`
	Subject   string    `db:"subject"`
	IPAddress string    `db:"ip_address"`
	Success   bool      `db:"success"`
	CreatedAt time.Time `db:"created_at"`
}
