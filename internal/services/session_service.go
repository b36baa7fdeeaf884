package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/learnlog/internal/auth"
	"github.com/BradenHooton/learnlog/internal/models"
	pkgauth "github.com/BradenHooton/learnlog/pkg/auth"
	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
	pkglogger "github.com/BradenHooton/learnlog/pkg/logger"
)

// IdentityRepository is the credential store
type IdentityRepository interface {
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetByID(ctx context.Context, id string) (*models.Identity, error)
}

// RenewalTokenRepository stores one renewal token per identity
type RenewalTokenRepository interface {
	Rotate(ctx context.Context, identityID string, createdAt time.Time) (*models.RenewalToken, error)
	GetByID(ctx context.Context, id string) (*models.RenewalToken, error)
}

// TokenCodec mints and verifies access tokens
type TokenCodec interface {
	Mint(subject, email string) (string, error)
	Verify(tokenString string) auth.VerifyResult
}

// LoginThrottle decides whether a login may proceed and records outcomes
type LoginThrottle interface {
	IsBlocked(ctx context.Context, subject, ipAddress string) (bool, error)
	RecordAttempt(ctx context.Context, subject, ipAddress string, success bool) error
}

// SessionConfig holds the orchestrator's settings
type SessionConfig struct {
	HashCost          int
	RenewalTTL        time.Duration
	AllowRegistration bool
	QueryTimeout      time.Duration
}

// SessionService registers identities and issues, renews and checks sessions
type SessionService struct {
	identities  IdentityRepository
	renewals    RenewalTokenRepository
	tokens      TokenCodec
	throttle    LoginThrottle
	timing      *auth.TimingDelay
	config      SessionConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
	dummyHash   string
}

// NewSessionService creates a new SessionService. timing may be nil.
func NewSessionService(
	identities IdentityRepository,
	renewals RenewalTokenRepository,
	tokens TokenCodec,
	throttle LoginThrottle,
	timing *auth.TimingDelay,
	config SessionConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) (*SessionService, error) {
	if err := pkgauth.ValidateHashCost(config.HashCost); err != nil {
		return nil, err
	}
	if config.RenewalTTL <= 0 {
		return nil, errors.New("renewal token ttl must be positive")
	}

	// Unknown subjects are compared against this so they cost one bcrypt run too
	dummyHash, err := pkgauth.HashPassword("learnlog-unknown-subject", config.HashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &SessionService{
		identities:  identities,
		renewals:    renewals,
		tokens:      tokens,
		throttle:    throttle,
		timing:      timing,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
		dummyHash:   dummyHash,
	}, nil
}

// SetClock replaces the time source. Intended for tests.
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

// NormalizeSubject trims and lower-cases an e-mail address
func NormalizeSubject(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *SessionService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}

// Register creates an identity. Weak passwords wrap models.ErrBadRequest,
// an existing subject yields models.ErrDuplicateSubject.
func (s *SessionService) Register(ctx context.Context, email, password string) error {
	if !s.config.AllowRegistration {
		return models.ErrRegistrationClosed
	}

	identity, err := s.createIdentity(ctx, email, password)
	if err != nil {
		s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventRegistrationFailed,
			Subject:       NormalizeSubject(email),
			FailureReason: registrationFailureReason(err),
		})
		return err
	}

	s.logger.Info("identity registered", slog.String("identity_id", identity.ID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType:  pkglogger.EventIdentityRegistered,
		IdentityID: identity.ID,
		Subject:    identity.Email,
		Success:    true,
	})
	return nil
}

// EnsureIdentity creates the identity unless its subject already exists.
// It ignores the registration switch and is used for bootstrapping.
func (s *SessionService) EnsureIdentity(ctx context.Context, email, password string) (created bool, err error) {
	identity, err := s.createIdentity(ctx, email, password)
	if errors.Is(err, models.ErrDuplicateSubject) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Info("bootstrap identity created", slog.String("identity_id", identity.ID))
	return true, nil
}

func (s *SessionService) createIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	subject := NormalizeSubject(email)
	if subject == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.identities.GetByEmail(ctx, subject)
	if err == nil {
		return nil, models.ErrDuplicateSubject
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for existing identity", slog.Any("error", err))
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	hash, err := pkgauth.HashPassword(password, s.config.HashCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity, err := s.identities.Create(ctx, &models.Identity{
		Email:        subject,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if err != nil {
		// A concurrent registration can pass the lookup above and lose on the unique index
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrDuplicateSubject
		}
		s.logger.Error("failed to create identity", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return identity, nil
}

// Login authenticates subject and issues a token pair. Every call, whatever
// its outcome, appends exactly one row to the attempt ledger. Authentication
// failures match models.ErrAuthFailed; other errors are infrastructure errors.
func (s *SessionService) Login(ctx context.Context, email, password, ipAddress string) (pair *models.TokenPair, err error) {
	start := time.Now()
	subject := NormalizeSubject(email)
	if ipAddress == "" {
		ipAddress = pkghttp.UnknownIP
	}

	defer func() {
		success := err == nil && pair != nil
		s.recordAttempt(ctx, subject, ipAddress, success)
		if errors.Is(err, models.ErrAuthFailed) {
			s.timing.WaitFrom(ctx, start)
		}
	}()

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	blocked, err := s.throttle.IsBlocked(opCtx, subject, ipAddress)
	if err != nil {
		s.logger.Error("throttle check failed", slog.Any("error", err))
		return nil, err
	}
	if blocked {
		return nil, s.loginFailure(ctx, subject, ipAddress, "", models.ErrAuthBlocked)
	}

	identity, err := s.identities.GetByEmail(opCtx, subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.VerifyPassword(s.dummyHash, password)
			return nil, s.loginFailure(ctx, subject, ipAddress, "", models.ErrUnknownSubject)
		}
		s.logger.Error("failed to get identity by email", slog.Any("error", err))
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	if !pkgauth.VerifyPassword(identity.PasswordHash, password) {
		return nil, s.loginFailure(ctx, subject, ipAddress, identity.ID, models.ErrWrongPassword)
	}

	accessToken, err := s.tokens.Mint(identity.ID, identity.Email)
	if err != nil {
		s.logger.Error("failed to mint access token", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil, err
	}

	renewal, err := s.renewals.Rotate(opCtx, identity.ID, s.now())
	if err != nil {
		s.logger.Error("failed to rotate renewal token", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to rotate renewal token: %w", err)
	}

	s.logger.Info("identity logged in", slog.String("identity_id", identity.ID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:  pkglogger.EventLoginSuccess,
		IdentityID: identity.ID,
		Subject:    subject,
		IPAddress:  ipAddress,
		Success:    true,
	})

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: renewal.ID,
	}, nil
}

// recordAttempt writes the ledger row for one login. It runs detached from
// the request's cancellation so an aborted request is still counted.
func (s *SessionService) recordAttempt(ctx context.Context, subject, ipAddress string, success bool) {
	recCtx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.throttle.RecordAttempt(recCtx, subject, ipAddress, success); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("ip_address", ipAddress),
			slog.Bool("success", success),
			slog.Any("error", err))
	}
}

func (s *SessionService) loginFailure(ctx context.Context, subject, ipAddress, identityID string, reason error) error {
	s.logger.Info("login failed", slog.String("reason", reason.Error()))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailed,
		IdentityID:    identityID,
		Subject:       subject,
		IPAddress:     ipAddress,
		FailureReason: failureReasonCode(reason),
	})
	return models.NewAuthFailure(reason)
}

// Refresh exchanges an expired access token plus the identity's renewal
// token for a fresh access token. A still-valid access token is echoed back
// unchanged. Denials match models.ErrRefreshDenied.
func (s *SessionService) Refresh(ctx context.Context, identityID, accessToken, renewalTokenID string) (*models.TokenPair, error) {
	result := s.tokens.Verify(accessToken)

	switch result.Status {
	case auth.TokenValid:
		if result.Claims.Subject != identityID {
			return nil, s.refreshDenial(ctx, identityID, models.ErrTokenInvalid)
		}
		return &models.TokenPair{AccessToken: accessToken, RefreshToken: renewalTokenID}, nil
	case auth.TokenExpired:
		if result.Claims.Subject != identityID {
			return nil, s.refreshDenial(ctx, identityID, models.ErrTokenInvalid)
		}
	default:
		return nil, s.refreshDenial(ctx, identityID, models.ErrTokenInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	renewal, err := s.renewals.GetByID(ctx, renewalTokenID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.refreshDenial(ctx, identityID, models.ErrRenewalTokenMissing)
		}
		s.logger.Error("failed to get renewal token", slog.Any("error", err))
		return nil, fmt.Errorf("failed to look up renewal token: %w", err)
	}
	if renewal.IdentityID != identityID {
		return nil, s.refreshDenial(ctx, identityID, models.ErrRenewalTokenMissing)
	}
	if renewal.Age(s.now()) > s.config.RenewalTTL {
		return nil, s.refreshDenial(ctx, identityID, models.ErrRenewalTokenExpired)
	}

	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.refreshDenial(ctx, identityID, models.ErrUnknownSubject)
		}
		s.logger.Error("failed to get identity for refresh", slog.String("identity_id", identityID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	fresh, err := s.tokens.Mint(identity.ID, identity.Email)
	if err != nil {
		s.logger.Error("failed to mint access token", slog.String("identity_id", identity.ID), slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("access token refreshed", slog.String("identity_id", identity.ID))
	s.auditLogger.LogTokenEvent(ctx, pkglogger.AuditEvent{
		EventType:  pkglogger.EventTokenRefreshed,
		IdentityID: identity.ID,
		Success:    true,
	})

	return &models.TokenPair{AccessToken: fresh, RefreshToken: renewal.ID}, nil
}

func (s *SessionService) refreshDenial(ctx context.Context, identityID string, reason error) error {
	s.logger.Info("refresh denied", slog.String("reason", reason.Error()))
	s.auditLogger.LogTokenEvent(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventRefreshDenied,
		IdentityID:    identityID,
		FailureReason: failureReasonCode(reason),
	})
	return models.NewRefreshDenial(reason)
}

// Authenticate returns the claims of a valid, unexpired access token
func (s *SessionService) Authenticate(tokenString string) (*models.TokenClaims, error) {
	result := s.tokens.Verify(tokenString)
	if result.Status != auth.TokenValid {
		return nil, models.NewAuthFailure(models.ErrTokenInvalid)
	}
	return result.Claims, nil
}

func failureReasonCode(reason error) string {
	switch {
	case errors.Is(reason, models.ErrAuthBlocked):
		return "blocked"
	case errors.Is(reason, models.ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(reason, models.ErrWrongPassword):
		return "wrong_password"
	case errors.Is(reason, models.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(reason, models.ErrRenewalTokenMissing):
		return "renewal_token_missing"
	case errors.Is(reason, models.ErrRenewalTokenExpired):
		return "renewal_token_expired"
	default:
		return "unknown"
	}
}

func registrationFailureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrDuplicateSubject):
		return "duplicate_subject"
	case errors.Is(err, models.ErrBadRequest):
		return "invalid_input"
	default:
		return "internal_error"
	}
}
