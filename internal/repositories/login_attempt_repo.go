package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/learnlog/internal/database"
	"github.com/BradenHooton/learnlog/internal/models"
)

// LoginAttemptRepository is the append-only attempt ledger
type LoginAttemptRepository struct {
	q database.Querier
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(q database.Querier) *LoginAttemptRepository {
	return &LoginAttemptRepository{q: q}
}

// RecordAttempt appends one attempt row
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (subject, ip_address, success, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.Exec(ctx, query,
		attempt.Subject,
		attempt.IPAddress,
		attempt.Success,
		attempt.CreatedAt,
	)

	return database.MapPostgresError(err)
}

// CountRecentFailures counts failed attempts since the given time that match
// either the subject or the address
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, subject, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE (subject = $1 OR ip_address = $2) AND success = false AND created_at >= $3
	`

	var count int
	if err := r.q.QueryRow(ctx, query, subject, ipAddress, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteOlderThan removes attempts created before cutoff
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
