package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinHashCost    = bcrypt.MinCost
	MaxHashCost    = 16 // Keeps a single verify well under a second on commodity hardware
	MinPasswordLen = 10
	MaxPasswordLen = 72 // bcrypt ignores input past 72 bytes
)

// ErrHashCostOutOfRange is returned for work factors outside [MinHashCost, MaxHashCost]
var ErrHashCostOutOfRange = fmt.Errorf("hash cost must be between %d and %d", MinHashCost, MaxHashCost)

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	// Never expose the specific rule that failed
	return "invalid password"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password123!":  true,
	"password1234!": true,
	"passw0rd1234!": true,
	"welcome123!":   true,
	"qwerty12345!":  true,
	"letmein1234!":  true,
	"changeme123!":  true,
	"p@ssw0rd1234":  true,
	"1q2w3e4r5t!Q":  true,
}

// ValidateHashCost checks that a configured work factor is usable
func ValidateHashCost(cost int) error {
	if cost < MinHashCost || cost > MaxHashCost {
		return ErrHashCostOutOfRange
	}
	return nil
}

// HashPassword produces a salted bcrypt hash with the given work factor
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if err := ValidateHashCost(cost); err != nil {
		return "", err
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// VerifyPassword reports whether password matches hash. A malformed hash is
// a mismatch, never an error.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the registration strength policy
func ValidatePassword(password string) error {
	errs := make([]string, 0)

	if len([]rune(password)) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d bytes", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}
	if !hasSpecial {
		errs = append(errs, "must contain at least one special character")
	}

	if commonPasswords[strings.ToLower(password)] {
		errs = append(errs, "is too common")
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}

	return nil
}
