package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/learnlog/internal/models"
)

// AttemptLedger is the persistence the throttle needs
type AttemptLedger interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, subject, ipAddress string, since time.Time) (int, error)
}

// ThrottleConfig holds the login throttling policy
type ThrottleConfig struct {
	AllowedAttempts int           // failures tolerated inside one window
	BlockDuration   time.Duration // sliding window length
}

// ThrottleService decides whether a login may proceed. State lives only in
// the ledger, so every instance sharing the database sees the same answer.
type ThrottleService struct {
	ledger AttemptLedger
	config ThrottleConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewThrottleService creates a new ThrottleService
func NewThrottleService(ledger AttemptLedger, config ThrottleConfig, logger *slog.Logger) *ThrottleService {
	return &ThrottleService{
		ledger: ledger,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *ThrottleService) SetClock(now func() time.Time) {
	s.now = now
}

// IsBlocked reports whether failures for subject or ipAddress within the
// window have reached the limit. Store errors are returned, never treated
// as "not blocked".
func (s *ThrottleService) IsBlocked(ctx context.Context, subject, ipAddress string) (bool, error) {
	since := s.now().Add(-s.config.BlockDuration)

	failures, err := s.ledger.CountRecentFailures(ctx, subject, ipAddress, since)
	if err != nil {
		return false, fmt.Errorf("failed to count recent login failures: %w", err)
	}

	if failures >= s.config.AllowedAttempts {
		s.logger.Warn("login throttled",
			slog.String("ip_address", ipAddress),
			slog.Int("failed_attempts", failures),
			slog.Duration("window", s.config.BlockDuration))
		return true, nil
	}

	return false, nil
}

// RecordAttempt appends one ledger row stamped with the service clock
func (s *ThrottleService) RecordAttempt(ctx context.Context, subject, ipAddress string, success bool) error {
	attempt := &models.LoginAttempt{
		Subject:   subject,
		IPAddress: ipAddress,
		Success:   success,
		CreatedAt: s.now(),
	}

	if err := s.ledger.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}
