package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zuwara/server/internal/auth"
	"github.com/zuwara/server/internal/middleware"
	"github.com/zuwara/server/internal/otp"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.AuthService
	ipLimiter   *middleware.RateLimiter
	log         *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		ipLimiter:   middleware.NewRateLimiter(10*time.Minute, 20),
		log:         log.Named("http.auth"),
	}
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

// loginResponse is the JSON response for login
type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

// userResponse is the user object in API responses
type userResponse struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
}

// HandleLogin handles POST /auth/login. The submitted OTP code is consumed:
// a successful login marks it verified and it cannot be replayed.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.OTPCode = strings.TrimSpace(req.OTPCode)
	if req.PhoneNumber == "" || req.OTPCode == "" {
		respondWithError(w, http.StatusBadRequest, "phone_number and otp_code are required")
		return
	}

	if !h.ipLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	user, accessToken, err := h.authService.VerifyOTPAndIssueAccessToken(r.Context(), req.PhoneNumber, req.OTPCode)
	if err != nil {
		if errors.Is(err, auth.ErrOTPRejected) || errors.Is(err, otp.ErrInvalidPhoneNumber) {
			respondWithError(w, http.StatusUnauthorized, "invalid or expired OTP")
			return
		}
		h.log.Error("login failed", zap.String("phone", otp.MaskPhone(req.PhoneNumber)), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		User: userResponse{
			ID:          user.ID.String(),
			PhoneNumber: user.PhoneNumber,
		},
	})
}

// HandleMe handles GET /me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	respondJSON(w, http.StatusOK, userResponse{
		ID:          user.ID.String(),
		PhoneNumber: user.PhoneNumber,
	})
}
