package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zuwara/server/internal/model"
	"github.com/zuwara/server/internal/repo"
	"github.com/zuwara/server/internal/rtctoken"
)

// VideoHandler issues RTC tokens and manages video call records
type VideoHandler struct {
	builder      *rtctoken.Builder
	calls        repo.CallRepo
	tokenTTL     int64
	privilegeTTL int64
	log          *zap.Logger
}

// NewVideoHandler creates a new video handler. TTLs are in seconds.
func NewVideoHandler(builder *rtctoken.Builder, calls repo.CallRepo, tokenTTL, privilegeTTL int64, log *zap.Logger) *VideoHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &VideoHandler{
		builder:      builder,
		calls:        calls,
		tokenTTL:     tokenTTL,
		privilegeTTL: privilegeTTL,
		log:          log.Named("http.video"),
	}
}

// generateTokenRequest is the request body for POST /video/token
type generateTokenRequest struct {
	DoctorID string `json:"doctor_id"`
	SlotTime string `json:"slot_time"`
}

// tokenResponse is the JSON response for token generation and call joins
type tokenResponse struct {
	Token          string `json:"token"`
	ChannelName    string `json:"channel_name"`
	UID            uint32 `json:"uid"`
	AppID          string `json:"app_id"`
	ExpirationTime string `json:"expiration_time"`
	Role           int    `json:"role"`
}

// HandleGenerateToken handles POST /video/token. The channel name is derived
// from the appointment so both participants independently arrive at the same
// channel.
func (h *VideoHandler) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req generateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.SlotTime = strings.TrimSpace(req.SlotTime)
	if req.DoctorID == "" || req.SlotTime == "" {
		respondWithError(w, http.StatusBadRequest, "doctor_id and slot_time are required")
		return
	}

	channelName := fmt.Sprintf("vid_%s_%s", req.DoctorID, alnumOnly(req.SlotTime))
	uid := sessionUID()

	token, expiresAt, err := h.buildToken(channelName, uid)
	if err != nil {
		h.log.Error("token generation failed", zap.String("channel", channelName), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "failed to generate video token")
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		Token:          token,
		ChannelName:    channelName,
		UID:            uid,
		AppID:          h.builder.AppID(),
		ExpirationTime: expiresAt.Format(time.RFC3339),
		Role:           int(rtctoken.RolePublisher),
	})
}

// refreshTokenRequest is the request body for POST /video/token/refresh
type refreshTokenRequest struct {
	ChannelName string  `json:"channel_name"`
	UID         *uint32 `json:"uid"`
}

// HandleRefreshToken handles POST /video/token/refresh
func (h *VideoHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.ChannelName = strings.TrimSpace(req.ChannelName)
	if req.ChannelName == "" {
		respondWithError(w, http.StatusBadRequest, "channel_name is required")
		return
	}

	uid := sessionUID()
	if req.UID != nil {
		uid = *req.UID
	}

	token, expiresAt, err := h.buildToken(req.ChannelName, uid)
	if err != nil {
		h.log.Error("token refresh failed", zap.String("channel", req.ChannelName), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "failed to refresh video token")
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		Token:          token,
		ChannelName:    req.ChannelName,
		UID:            uid,
		AppID:          h.builder.AppID(),
		ExpirationTime: expiresAt.Format(time.RFC3339),
		Role:           int(rtctoken.RolePublisher),
	})
}

// createCallRequest is the request body for POST /video/calls
type createCallRequest struct {
	DoctorID      string `json:"doctor_id"`
	PatientID     string `json:"patient_id"`
	ScheduledTime string `json:"scheduled_time"`
}

// callResponse is the video call record in API responses
type callResponse struct {
	ID            string  `json:"id"`
	ChannelName   string  `json:"channel_name"`
	DoctorID      string  `json:"doctor_id"`
	PatientID     string  `json:"patient_id"`
	Status        string  `json:"status"`
	ScheduledTime string  `json:"scheduled_time"`
	StartedAt     *string `json:"started_at"`
	EndedAt       *string `json:"ended_at"`
}

// HandleCreateCall handles POST /video/calls
func (h *VideoHandler) HandleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doctorID, err := uuid.Parse(strings.TrimSpace(req.DoctorID))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "doctor_id must be a valid UUID")
		return
	}
	patientID, err := uuid.Parse(strings.TrimSpace(req.PatientID))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "patient_id must be a valid UUID")
		return
	}
	scheduledTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledTime))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "scheduled_time must be RFC3339")
		return
	}

	channelName := fmt.Sprintf("call_%d_%04d", time.Now().Unix(), rand.Intn(10000))
	call, err := h.calls.Create(r.Context(), doctorID, patientID, channelName, scheduledTime)
	if err != nil {
		h.log.Error("call creation failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to create video call")
		return
	}

	h.log.Info("video call created",
		zap.String("call_id", call.ID.String()),
		zap.String("channel", call.ChannelName),
	)
	respondJSON(w, http.StatusCreated, toCallResponse(call))
}

// HandleGetCall handles GET /video/calls/{id}
func (h *VideoHandler) HandleGetCall(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toCallResponse(call))
}

// HandleJoinCall handles POST /video/calls/{id}/join. The first participant
// to join moves the call from scheduled to ongoing.
func (h *VideoHandler) HandleJoinCall(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}

	switch call.Status {
	case model.CallCompleted, model.CallCancelled:
		respondWithError(w, http.StatusConflict, "call is no longer joinable")
		return
	}

	uid := sessionUID()
	token, expiresAt, err := h.buildToken(call.ChannelName, uid)
	if err != nil {
		h.log.Error("join token generation failed", zap.String("channel", call.ChannelName), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to generate video call token")
		return
	}

	if call.Status == model.CallScheduled {
		if err := h.calls.Start(r.Context(), call.ID); err != nil && !errors.Is(err, repo.ErrInvalidTransition) {
			h.log.Error("call start failed", zap.String("call_id", call.ID.String()), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "failed to start call")
			return
		}
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		Token:          token,
		ChannelName:    call.ChannelName,
		UID:            uid,
		AppID:          h.builder.AppID(),
		ExpirationTime: expiresAt.Format(time.RFC3339),
		Role:           int(rtctoken.RolePublisher),
	})
}

// HandleEndCall handles POST /video/calls/{id}/end
func (h *VideoHandler) HandleEndCall(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}

	if err := h.calls.Complete(r.Context(), call.ID); err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) {
			respondWithError(w, http.StatusConflict, "call cannot be ended (not ongoing)")
			return
		}
		h.log.Error("call end failed", zap.String("call_id", call.ID.String()), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to end call")
		return
	}

	call, err := h.calls.GetByID(r.Context(), call.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load call")
		return
	}
	respondJSON(w, http.StatusOK, toCallResponse(call))
}

// HandleCancelCall handles POST /video/calls/{id}/cancel
func (h *VideoHandler) HandleCancelCall(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadCall(w, r)
	if !ok {
		return
	}

	if err := h.calls.Cancel(r.Context(), call.ID); err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) {
			respondWithError(w, http.StatusConflict, "call cannot be cancelled (not scheduled)")
			return
		}
		h.log.Error("call cancel failed", zap.String("call_id", call.ID.String()), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to cancel call")
		return
	}

	call, err := h.calls.GetByID(r.Context(), call.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load call")
		return
	}
	respondJSON(w, http.StatusOK, toCallResponse(call))
}

func (h *VideoHandler) buildToken(channelName string, uid uint32) (string, time.Time, error) {
	token, err := h.builder.BuildTokenWithUID(channelName, uid, rtctoken.RolePublisher, h.tokenTTL, h.privilegeTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(time.Duration(h.tokenTTL) * time.Second), nil
}

func (h *VideoHandler) loadCall(w http.ResponseWriter, r *http.Request) (model.VideoCall, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid call id")
		return model.VideoCall{}, false
	}

	call, err := h.calls.GetByID(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "call not found")
		return model.VideoCall{}, false
	}
	if err != nil {
		h.log.Error("call lookup failed", zap.String("call_id", id.String()), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to load call")
		return model.VideoCall{}, false
	}
	return call, true
}

func toCallResponse(call model.VideoCall) callResponse {
	resp := callResponse{
		ID:            call.ID.String(),
		ChannelName:   call.ChannelName,
		DoctorID:      call.DoctorID.String(),
		PatientID:     call.PatientID.String(),
		Status:        string(call.Status),
		ScheduledTime: call.ScheduledTime.Format(time.RFC3339),
	}
	if call.StartedAt != nil {
		s := call.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if call.EndedAt != nil {
		s := call.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &s
	}
	return resp
}

// sessionUID generates a per-session RTC uid from the clock plus a random
// suffix. Uniqueness within a channel is what matters, not secrecy.
func sessionUID() uint32 {
	timestampPart := uint32(time.Now().Unix() % 10000)
	randomPart := uint32(rand.Intn(999) + 1)
	return timestampPart*1000 + randomPart
}

// alnumOnly strips everything but letters and digits so slot times become
// valid channel name segments.
func alnumOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
