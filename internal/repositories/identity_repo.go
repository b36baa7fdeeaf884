package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/learnlog/internal/database"
	"github.com/BradenHooton/learnlog/internal/models"
	"github.com/google/uuid"
)

// IdentityRepository is the credential store
type IdentityRepository struct {
	q database.Querier
}

func NewIdentityRepository(q database.Querier) *IdentityRepository {
	return &IdentityRepository{q: q}
}

// rowScanner interface for scanning rows (supports both pgx.Row and pgx.Rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIdentityRow(scanner rowScanner) (*models.Identity, error) {
	var identity models.Identity

	err := scanner.Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &identity, nil
}

// Create persists identity and fills in its id and timestamps. A duplicate
// e-mail yields models.ErrConflict.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	identity.ID = uuid.New().String()

	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	identity.UpdatedAt = identity.CreatedAt

	query := `
		INSERT INTO identities (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, password_hash, created_at, updated_at
	`

	return scanIdentityRow(r.q.QueryRow(ctx, query,
		identity.ID, identity.Email, identity.PasswordHash,
		identity.CreatedAt, identity.UpdatedAt,
	))
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM identities WHERE email = $1
	`

	return scanIdentityRow(r.q.QueryRow(ctx, query, email))
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM identities WHERE id = $1
	`

	return scanIdentityRow(r.q.QueryRow(ctx, query, id))
}
