package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/learnlog/internal/models"
	"github.com/BradenHooton/learnlog/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renewalTokenColumns = []string{"id", "identity_id", "created_at"}

func TestRenewalTokenRepository_Rotate(t *testing.T) {
	ctx := context.Background()
	identityID := "0d8f1e62-2f7c-4b6e-8f0a-6c1e2b3a4d5f"
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("deletes then inserts in one transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM renewal_tokens").
			WithArgs(identityID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectQuery("INSERT INTO renewal_tokens").
			WithArgs(pgxmock.AnyArg(), identityID, createdAt).
			WillReturnRows(pgxmock.NewRows(renewalTokenColumns).AddRow("token-1", identityID, createdAt))
		mock.ExpectCommit()

		token, err := repositories.NewRenewalTokenRepository(mock).Rotate(ctx, identityID, createdAt)
		require.NoError(t, err)
		assert.Equal(t, "token-1", token.ID)
		assert.Equal(t, identityID, token.IdentityID)
		assert.Equal(t, createdAt, token.CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM renewal_tokens").
			WithArgs(identityID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectQuery("INSERT INTO renewal_tokens").
			WithArgs(pgxmock.AnyArg(), identityID, createdAt).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err = repositories.NewRenewalTokenRepository(mock).Rotate(ctx, identityID, createdAt)
		assert.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete failure rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM renewal_tokens").
			WithArgs(identityID).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err = repositories.NewRenewalTokenRepository(mock).Rotate(ctx, identityID, createdAt)
		assert.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRenewalTokenRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewRenewalTokenRepository(mock)
	ctx := context.Background()
	id := "7a3c4b2e-1d5f-4e6a-9b8c-0d1e2f3a4b5c"
	createdAt := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, identity_id, created_at FROM renewal_tokens").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(renewalTokenColumns).AddRow(id, "identity-1", createdAt))

		token, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "identity-1", token.IdentityID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, identity_id, created_at FROM renewal_tokens").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := r.GetByID(ctx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := r.GetByID(ctx, "renewal-token")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewalTokenRepository_DeleteOlderThan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM renewal_tokens WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repositories.NewRenewalTokenRepository(mock).DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
