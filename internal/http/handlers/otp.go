package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zuwara/server/internal/middleware"
	"github.com/zuwara/server/internal/otp"
)

// OTPHandler handles OTP issuance and verification endpoints
type OTPHandler struct {
	otp          *otp.Service
	ipLimiter    *middleware.RateLimiter
	phoneLimiter *middleware.RateLimiter
	log          *zap.Logger
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(service *otp.Service, log *zap.Logger) *OTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	// IP limit covers both endpoints; the per-phone limit only throttles sends
	// so an attacker cannot drain a victim's SMS quota from many addresses.
	return &OTPHandler{
		otp:          service,
		ipLimiter:    middleware.NewRateLimiter(10*time.Minute, 30),
		phoneLimiter: middleware.NewRateLimiter(10*time.Minute, 5),
		log:          log.Named("http.otp"),
	}
}

// sendOTPRequest is the request body for POST /otp/send
type sendOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// verifyOTPRequest is the request body for POST /otp/verify
type verifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

// HandleSend handles POST /otp/send
func (h *OTPHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" {
		respondEnvelopeError(w, http.StatusBadRequest, "Phone number is required")
		return
	}

	// Key the per-phone bucket on the normalized number so local and
	// international spellings of one subscriber share a budget.
	phoneKey := req.PhoneNumber
	if normalized, err := otp.NormalizePhone(req.PhoneNumber); err == nil {
		phoneKey = normalized
	}
	if !h.ipLimiter.Allow(middleware.GetIPKey(r)) ||
		!h.phoneLimiter.Allow(middleware.GetPhoneKey(phoneKey)) {
		respondEnvelopeError(w, http.StatusTooManyRequests, "Too many requests, try again later")
		return
	}

	result, err := h.otp.Issue(r.Context(), req.PhoneNumber)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidPhoneNumber) {
			respondEnvelopeError(w, http.StatusBadRequest, "Invalid phone number format")
			return
		}
		h.log.Error("otp send failed", zap.String("phone", otp.MaskPhone(req.PhoneNumber)), zap.Error(err))
		respondEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !result.Success {
		respondJSON(w, http.StatusBadGateway, envelope{Status: "error", Message: result.Message})
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		Status:  "success",
		Message: "OTP sent successfully",
		Data:    map[string]string{"otp_id": result.OTPID},
	})
}

// HandleVerify handles POST /otp/verify
func (h *OTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.OTPCode = strings.TrimSpace(req.OTPCode)
	if req.PhoneNumber == "" || req.OTPCode == "" {
		respondEnvelopeError(w, http.StatusBadRequest, "Phone number and OTP code are required")
		return
	}

	if !h.ipLimiter.Allow(middleware.GetIPKey(r)) {
		respondEnvelopeError(w, http.StatusTooManyRequests, "Too many requests, try again later")
		return
	}

	result, err := h.otp.Verify(r.Context(), req.PhoneNumber, req.OTPCode)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidPhoneNumber) {
			respondEnvelopeError(w, http.StatusBadRequest, "Invalid phone number format")
			return
		}
		h.log.Error("otp verify failed", zap.String("phone", otp.MaskPhone(req.PhoneNumber)), zap.Error(err))
		respondEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !result.Success {
		respondJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: result.Message})
		return
	}

	respondJSON(w, http.StatusOK, envelope{Status: "success", Message: result.Message})
}
