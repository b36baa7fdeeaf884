package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/learnlog/internal/auth"
	"github.com/BradenHooton/learnlog/internal/models"
	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
)

// maxBodyBytes caps auth request bodies
const maxBodyBytes = 1 << 16

// SessionServiceInterface defines the interface for session business logic
type SessionServiceInterface interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password, ipAddress string) (*models.TokenPair, error)
	Refresh(ctx context.Context, identityID, accessToken, renewalTokenID string) (*models.TokenPair, error)
	Authenticate(tokenString string) (*models.TokenClaims, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  SessionServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service SessionServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionResponse describes the caller's current access token
type SessionResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// Register handles identity registration
// @Summary Register an identity
// @Accept json
// @Param request body CredentialsRequest true "Register request"
// @Produce json
// @Success 201
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest

	// Malformed input, weak passwords and taken e-mails all get the same answer
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "registration failed")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "registration failed")
		return
	}

	err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRegistrationClosed):
			pkghttp.WriteForbidden(w, "registration is disabled")
		case errors.Is(err, models.ErrBadRequest),
			errors.Is(err, models.ErrDuplicateSubject):
			pkghttp.WriteBadRequest(w, "registration failed")
		default:
			h.logger.Error("registration failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "registration successful",
	})
}

// Login handles password login
// @Summary Login
// @Accept json
// @Param request body CredentialsRequest true "Login request"
// @Produce json
// @Success 200 {object} models.TokenPair
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	pair, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress)
	if err != nil {
		// Blocked, unknown subject and wrong password are indistinguishable here
		if errors.Is(err, models.ErrAuthFailed) {
			pkghttp.WriteForbidden(w, "forbidden")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// RefreshToken exchanges an expired access token for a fresh one. Must be
// mounted behind auth.AuthMiddleware in AllowExpired mode.
// @Summary Refresh access token
// @Accept json
// @Security BearerAuth
// @Param request body RefreshTokenRequest true "Refresh token request"
// @Produce json
// @Success 200 {object} models.TokenPair
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req RefreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.service.Refresh(r.Context(), claims.Subject, req.AccessToken, req.RefreshToken)
	if err != nil {
		if errors.Is(err, models.ErrRefreshDenied) {
			pkghttp.WriteForbidden(w, "cannot refresh")
			return
		}
		h.logger.Error("refresh failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// Session reports who the bearer of a valid access token is
// @Summary Current session
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := auth.BearerToken(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing authorization header")
		return
	}

	claims, err := h.service.Authenticate(tokenString)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "invalid or expired token")
		return
	}

	resp := SessionResponse{UserID: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
