package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/learnlog/internal/auth"
	"github.com/BradenHooton/learnlog/internal/models"
	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds token claims to the request context, as AuthMiddleware would
func WithAuthContext(req *http.Request, identityID, email string) *http.Request {
	claims := &models.TokenClaims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: identityID},
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	RegisterFunc     func(ctx context.Context, email, password string) error
	LoginFunc        func(ctx context.Context, email, password, ipAddress string) (*models.TokenPair, error)
	RefreshFunc      func(ctx context.Context, identityID, accessToken, renewalTokenID string) (*models.TokenPair, error)
	AuthenticateFunc func(tokenString string) (*models.TokenClaims, error)
}

func (m *MockSessionService) Register(ctx context.Context, email, password string) error {
	if m.RegisterFunc == nil {
		return models.ErrDuplicateSubject
	}
	return m.RegisterFunc(ctx, email, password)
}

func (m *MockSessionService) Login(ctx context.Context, email, password, ipAddress string) (*models.TokenPair, error) {
	if m.LoginFunc == nil {
		return nil, models.NewAuthFailure(models.ErrUnknownSubject)
	}
	return m.LoginFunc(ctx, email, password, ipAddress)
}

func (m *MockSessionService) Refresh(ctx context.Context, identityID, accessToken, renewalTokenID string) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.NewRefreshDenial(models.ErrTokenInvalid)
	}
	return m.RefreshFunc(ctx, identityID, accessToken, renewalTokenID)
}

func (m *MockSessionService) Authenticate(tokenString string) (*models.TokenClaims, error) {
	if m.AuthenticateFunc == nil {
		return nil, models.NewAuthFailure(models.ErrTokenInvalid)
	}
	return m.AuthenticateFunc(tokenString)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
