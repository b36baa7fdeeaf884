package models

import "time"

// Identity is a principal that can authenticate with a password.
// Email doubles as the subject identifier and is unique.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
