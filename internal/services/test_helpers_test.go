package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/learnlog/internal/auth"
	"github.com/BradenHooton/learnlog/internal/models"
	pkglogger "github.com/BradenHooton/learnlog/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testPassword = "Str0ng!Passw0rd"

// fakeClock is a controllable time source shared by every component under test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MemoryLedger is an in-memory AttemptLedger. Both methods honour ctx
// cancellation so tests can observe detached writes.
type MemoryLedger struct {
	mu        sync.Mutex
	rows      []models.LoginAttempt
	CountErr  error
	RecordErr error
}

func (m *MemoryLedger) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, *attempt)
	return nil
}

func (m *MemoryLedger) CountRecentFailures(ctx context.Context, subject, ipAddress string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if (row.Subject == subject || row.IPAddress == ipAddress) && !row.Success && !row.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryLedger) Rows() []models.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LoginAttempt(nil), m.rows...)
}

// MockIdentityRepository stores identities in memory. The Func fields
// override the in-memory behaviour when set.
type MockIdentityRepository struct {
	mu             sync.Mutex
	byID           map[string]*models.Identity
	CreateFunc     func(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.Identity, error)
	GetByIDFunc    func(ctx context.Context, id string) (*models.Identity, error)
}

func NewMockIdentityRepository() *MockIdentityRepository {
	return &MockIdentityRepository{byID: make(map[string]*models.Identity)}
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, identity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == identity.Email {
			return nil, models.ErrConflict
		}
	}
	stored := *identity
	stored.ID = uuid.New().String()
	stored.UpdatedAt = stored.CreatedAt
	m.byID[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *MockIdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.byID {
		if identity.Email == email {
			out := *identity
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity, ok := m.byID[id]; ok {
		out := *identity
		return &out, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityRepository) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// MockRenewalTokenRepository keeps at most one token per identity
type MockRenewalTokenRepository struct {
	mu         sync.Mutex
	byID       map[string]*models.RenewalToken
	RotateFunc func(ctx context.Context, identityID string, createdAt time.Time) (*models.RenewalToken, error)
}

func NewMockRenewalTokenRepository() *MockRenewalTokenRepository {
	return &MockRenewalTokenRepository{byID: make(map[string]*models.RenewalToken)}
}

func (m *MockRenewalTokenRepository) Rotate(ctx context.Context, identityID string, createdAt time.Time) (*models.RenewalToken, error) {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, identityID, createdAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, token := range m.byID {
		if token.IdentityID == identityID {
			delete(m.byID, id)
		}
	}
	token := &models.RenewalToken{ID: uuid.New().String(), IdentityID: identityID, CreatedAt: createdAt}
	m.byID[token.ID] = token
	out := *token
	return &out, nil
}

func (m *MockRenewalTokenRepository) GetByID(ctx context.Context, id string) (*models.RenewalToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.byID[id]; ok {
		out := *token
		return &out, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockRenewalTokenRepository) CountFor(identityID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, token := range m.byID {
		if token.IdentityID == identityID {
			n++
		}
	}
	return n
}

// testHarness wires a SessionService to in-memory stores and a shared clock
type testHarness struct {
	svc        *SessionService
	throttle   *ThrottleService
	tokens     *auth.TokenManager
	clock      *fakeClock
	ledger     *MemoryLedger
	identities *MockIdentityRepository
	renewals   *MockRenewalTokenRepository
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestHarness(t *testing.T, configure ...func(*SessionConfig)) *testHarness {
	t.Helper()

	h := &testHarness{
		clock:      newFakeClock(),
		ledger:     &MemoryLedger{},
		identities: NewMockIdentityRepository(),
		renewals:   NewMockRenewalTokenRepository(),
	}

	tm, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    "session-test-secret-0123456789abcdef",
		Algorithm: "HS256",
		AccessTTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	tm.SetClock(h.clock.Now)
	h.tokens = tm

	logger := discardLogger()
	h.throttle = NewThrottleService(h.ledger, ThrottleConfig{AllowedAttempts: 5, BlockDuration: 15 * time.Minute}, logger)
	h.throttle.SetClock(h.clock.Now)

	cfg := SessionConfig{
		HashCost:          4,
		RenewalTTL:        7 * 24 * time.Hour,
		AllowRegistration: true,
		QueryTimeout:      time.Second,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	svc, err := NewSessionService(h.identities, h.renewals, tm, h.throttle, nil, cfg, logger, pkglogger.NewAuditLogger(logger, "test"))
	require.NoError(t, err)
	svc.SetClock(h.clock.Now)
	h.svc = svc

	return h
}

// register creates an identity and returns its id
func (h *testHarness) register(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, h.svc.Register(context.Background(), email, testPassword))
	identity, err := h.identities.GetByEmail(context.Background(), NormalizeSubject(email))
	require.NoError(t, err)
	return identity.ID
}
