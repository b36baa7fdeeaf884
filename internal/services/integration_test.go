//go:build integration

package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/learnlog/internal/auth"
	"github.com/BradenHooton/learnlog/internal/database"
	"github.com/BradenHooton/learnlog/internal/models"
	"github.com/BradenHooton/learnlog/internal/repositories"
	"github.com/BradenHooton/learnlog/internal/services"
	pkglogger "github.com/BradenHooton/learnlog/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("learnlog"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool, nil))
	return pool
}

// TestIntegration_SessionLifecycle runs register, throttled login and refresh
// against PostgreSQL with a shared controllable clock
func TestIntegration_SessionLifecycle(t *testing.T) {
	pool := setupTestDatabase(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tm, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    "integration-secret-0123456789",
		Algorithm: "HS256",
		AccessTTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	tm.SetClock(clock)

	throttle := services.NewThrottleService(
		repositories.NewLoginAttemptRepository(pool),
		services.ThrottleConfig{AllowedAttempts: 5, BlockDuration: 15 * time.Minute},
		logger,
	)
	throttle.SetClock(clock)

	svc, err := services.NewSessionService(
		repositories.NewIdentityRepository(pool),
		repositories.NewRenewalTokenRepository(pool),
		tm,
		throttle,
		nil,
		services.SessionConfig{
			HashCost:          4,
			RenewalTTL:        7 * 24 * time.Hour,
			AllowRegistration: true,
			QueryTimeout:      5 * time.Second,
		},
		logger,
		pkglogger.NewAuditLogger(logger, "test"),
	)
	require.NoError(t, err)
	svc.SetClock(clock)

	require.NoError(t, svc.Register(ctx, "Alice@Example.com", "Str0ng!Passw0rd"))
	assert.ErrorIs(t, svc.Register(ctx, "alice@example.com", "Str0ng!Passw0rd"), models.ErrDuplicateSubject)

	pair, err := svc.Login(ctx, "alice@example.com", "Str0ng!Passw0rd", "192.0.2.1")
	require.NoError(t, err)

	t.Run("failed logins block the subject", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := svc.Login(ctx, "alice@example.com", "wrong", "192.0.2.1")
			assert.ErrorIs(t, err, models.ErrWrongPassword)
		}

		_, err := svc.Login(ctx, "alice@example.com", "Str0ng!Passw0rd", "198.51.100.7")
		assert.ErrorIs(t, err, models.ErrAuthBlocked)

		now = now.Add(15*time.Minute + time.Second)
		_, err = svc.Login(ctx, "alice@example.com", "Str0ng!Passw0rd", "198.51.100.7")
		assert.NoError(t, err)

		var rows int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM login_attempts`).Scan(&rows))
		assert.Equal(t, 8, rows)
	})

	t.Run("refresh after expiry", func(t *testing.T) {
		fresh, err := svc.Login(ctx, "alice@example.com", "Str0ng!Passw0rd", "192.0.2.1")
		require.NoError(t, err)

		// The earlier renewal token was replaced by the later login
		_, err = svc.Refresh(ctx, subjectOf(t, tm, pair.AccessToken), pair.AccessToken, pair.RefreshToken)
		assert.ErrorIs(t, err, models.ErrRefreshDenied)

		now = now.Add(20 * time.Minute)
		renewed, err := svc.Refresh(ctx, subjectOf(t, tm, fresh.AccessToken), fresh.AccessToken, fresh.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, fresh.AccessToken, renewed.AccessToken)
		assert.Equal(t, fresh.RefreshToken, renewed.RefreshToken)
	})
}

func subjectOf(t *testing.T, tm *auth.TokenManager, token string) string {
	t.Helper()
	result := tm.Verify(token)
	require.NotNil(t, result.Claims)
	return result.Claims.Subject
}
