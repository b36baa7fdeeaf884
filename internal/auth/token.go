package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/learnlog/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenStatus discriminates the outcome of Verify
type TokenStatus int

const (
	TokenInvalid TokenStatus = iota
	TokenValid
	TokenExpired
)

func (s TokenStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// VerifyResult is the three-way verification outcome. Claims is non-nil only
// for TokenValid and TokenExpired; Err explains a TokenInvalid result.
type VerifyResult struct {
	Status TokenStatus
	Claims *models.TokenClaims
	Err    error
}

// TokenConfig holds the signing parameters for access tokens
type TokenConfig struct {
	Secret    string
	Algorithm string
	AccessTTL time.Duration
}

// supportedAlgorithms are the shared-secret algorithms the codec accepts
var supportedAlgorithms = map[string]*jwt.SigningMethodHMAC{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// TokenManager mints and verifies access tokens
type TokenManager struct {
	secret    []byte
	method    *jwt.SigningMethodHMAC
	accessTTL time.Duration
	parser    *jwt.Parser
	now       func() time.Time
}

// NewTokenManager creates a new TokenManager pinned to cfg.Algorithm
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	method, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	return &TokenManager{
		secret:    []byte(cfg.Secret),
		method:    method,
		accessTTL: cfg.AccessTTL,
		// Expiry is judged by Verify itself, so the parser only checks
		// structure, algorithm and signature.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}, nil
}

// ParseAlgorithm resolves a configured algorithm name such as "HS256"
func ParseAlgorithm(name string) (*jwt.SigningMethodHMAC, error) {
	method, ok := supportedAlgorithms[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", name)
	}
	return method, nil
}

// SetClock replaces the time source. Intended for tests.
func (tm *TokenManager) SetClock(now func() time.Time) {
	tm.now = now
}

// AccessTTL returns the configured access token lifetime
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// Mint creates an access token for subject with the configured ttl
func (tm *TokenManager) Mint(subject, email string) (string, error) {
	return tm.MintWithTTL(subject, email, tm.accessTTL)
}

// MintWithTTL creates an access token whose expiry is issuedAt + ttl
func (tm *TokenManager) MintWithTTL(subject, email string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}

	issuedAt := tm.now()
	claims := &models.TokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	tokenString, err := jwt.NewWithClaims(tm.method, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// Verify checks the signature and expiry of tokenString. An authentic but
// expired token still yields its claims; anything else yields none.
func (tm *TokenManager) Verify(tokenString string) VerifyResult {
	claims := &models.TokenClaims{}

	token, err := tm.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != tm.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return VerifyResult{Status: TokenInvalid, Err: fmt.Errorf("failed to parse token: %w", err)}
	}
	if !token.Valid {
		return VerifyResult{Status: TokenInvalid, Err: models.ErrTokenInvalid}
	}

	if claims.Subject == "" {
		return VerifyResult{Status: TokenInvalid, Err: errors.New("invalid token: missing subject")}
	}
	if claims.ExpiresAt == nil {
		return VerifyResult{Status: TokenInvalid, Err: errors.New("invalid token: missing expiry")}
	}

	if tm.now().After(claims.ExpiresAt.Time) {
		return VerifyResult{Status: TokenExpired, Claims: claims}
	}

	return VerifyResult{Status: TokenValid, Claims: claims}
}
