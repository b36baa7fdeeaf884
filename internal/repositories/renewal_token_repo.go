package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/learnlog/internal/database"
	"github.com/BradenHooton/learnlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RenewalTokenRepository stores at most one renewal token per identity
type RenewalTokenRepository struct {
	q database.Querier
}

func NewRenewalTokenRepository(q database.Querier) *RenewalTokenRepository {
	return &RenewalTokenRepository{q: q}
}

func scanRenewalTokenRow(scanner rowScanner) (*models.RenewalToken, error) {
	var token models.RenewalToken

	if err := scanner.Scan(&token.ID, &token.IdentityID, &token.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Rotate replaces the identity's renewal token with a fresh one created at
// createdAt. Delete and insert share a transaction; the upsert covers two
// logins racing past the delete.
func (r *RenewalTokenRepository) Rotate(ctx context.Context, identityID string, createdAt time.Time) (*models.RenewalToken, error) {
	var token *models.RenewalToken

	err := database.WithTransaction(ctx, r.q, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM renewal_tokens WHERE identity_id = $1`, identityID); err != nil {
			return database.MapPostgresError(err)
		}

		query := `
			INSERT INTO renewal_tokens (id, identity_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (identity_id) DO UPDATE
			SET id = EXCLUDED.id, created_at = EXCLUDED.created_at
			RETURNING id, identity_id, created_at
		`

		var err error
		token, err = scanRenewalTokenRow(tx.QueryRow(ctx, query, uuid.New().String(), identityID, createdAt))
		return err
	})
	if err != nil {
		return nil, err
	}

	return token, nil
}

// GetByID returns models.ErrNotFound for unknown or malformed ids
func (r *RenewalTokenRepository) GetByID(ctx context.Context, id string) (*models.RenewalToken, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT id, identity_id, created_at FROM renewal_tokens WHERE id = $1`

	return scanRenewalTokenRow(r.q.QueryRow(ctx, query, id))
}

// DeleteOlderThan removes renewal tokens created before cutoff
func (r *RenewalTokenRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM renewal_tokens WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
