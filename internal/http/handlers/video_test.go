package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuwara/server/internal/model"
	"github.com/zuwara/server/internal/repo"
	"github.com/zuwara/server/internal/rtctoken"
)

const (
	videoTestAppID = "970CA35de60c44645bbae8a215061b33"
	videoTestCert  = "5CFd2fd1755d40ecb72977518be15d3b"
)

// memCallRepo is an in-memory repo.CallRepo enforcing the same transition
// guards as the SQL implementation.
type memCallRepo struct {
	calls map[uuid.UUID]*model.VideoCall
}

func newMemCallRepo() *memCallRepo {
	return &memCallRepo{calls: make(map[uuid.UUID]*model.VideoCall)}
}

func (r *memCallRepo) Create(_ context.Context, doctorID, patientID uuid.UUID, channelName string, scheduledTime time.Time) (model.VideoCall, error) {
	call := &model.VideoCall{
		ID:            uuid.New(),
		ChannelName:   channelName,
		DoctorID:      doctorID,
		PatientID:     patientID,
		Status:        model.CallScheduled,
		ScheduledTime: scheduledTime,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	r.calls[call.ID] = call
	return *call, nil
}

func (r *memCallRepo) GetByID(_ context.Context, id uuid.UUID) (model.VideoCall, error) {
	call, ok := r.calls[id]
	if !ok {
		return model.VideoCall{}, repo.ErrNotFound
	}
	return *call, nil
}

func (r *memCallRepo) GetByChannel(_ context.Context, channelName string) (model.VideoCall, error) {
	for _, call := range r.calls {
		if call.ChannelName == channelName {
			return *call, nil
		}
	}
	return model.VideoCall{}, repo.ErrNotFound
}

func (r *memCallRepo) Start(_ context.Context, id uuid.UUID) error {
	return r.transition(id, model.CallScheduled, model.CallOngoing)
}

func (r *memCallRepo) Complete(_ context.Context, id uuid.UUID) error {
	return r.transition(id, model.CallOngoing, model.CallCompleted)
}

func (r *memCallRepo) Cancel(_ context.Context, id uuid.UUID) error {
	return r.transition(id, model.CallScheduled, model.CallCancelled)
}

func (r *memCallRepo) transition(id uuid.UUID, from, to model.VideoCallStatus) error {
	call, ok := r.calls[id]
	if !ok || call.Status != from {
		return repo.ErrInvalidTransition
	}
	call.Status = to
	now := time.Now()
	switch to {
	case model.CallOngoing:
		call.StartedAt = &now
	case model.CallCompleted:
		call.EndedAt = &now
	}
	return nil
}

func newVideoFixture(t *testing.T) (*VideoHandler, *memCallRepo, *chi.Mux) {
	t.Helper()
	builder, err := rtctoken.NewBuilder(videoTestAppID, videoTestCert, nil)
	require.NoError(t, err)

	calls := newMemCallRepo()
	h := NewVideoHandler(builder, calls, 3600, 1800, nil)

	r := chi.NewRouter()
	r.Post("/video/token", h.HandleGenerateToken)
	r.Post("/video/token/refresh", h.HandleRefreshToken)
	r.Post("/video/calls", h.HandleCreateCall)
	r.Get("/video/calls/{id}", h.HandleGetCall)
	r.Post("/video/calls/{id}/join", h.HandleJoinCall)
	r.Post("/video/calls/{id}/end", h.HandleEndCall)
	r.Post("/video/calls/{id}/cancel", h.HandleCancelCall)
	return h, calls, r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateTokenDerivesChannel(t *testing.T) {
	_, _, router := newVideoFixture(t)

	doctorID := uuid.New().String()
	w := doJSON(t, router, http.MethodPost, "/video/token", map[string]string{
		"doctor_id": doctorID,
		"slot_time": "2026-09-01 15:00",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp tokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, "vid_"+doctorID+"_202609011500", resp.ChannelName)
	assert.Equal(t, videoTestAppID, resp.AppID)
	assert.Equal(t, int(rtctoken.RolePublisher), resp.Role)
	assert.NotZero(t, resp.UID)

	verifier, err := rtctoken.NewVerifier(videoTestAppID, videoTestCert, nil)
	require.NoError(t, err)
	assert.True(t, verifier.Verify(resp.Token))
}

func TestGenerateTokenMissingParams(t *testing.T) {
	_, _, router := newVideoFixture(t)

	w := doJSON(t, router, http.MethodPost, "/video/token", map[string]string{"doctor_id": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshTokenKeepsChannelAndUID(t *testing.T) {
	_, _, router := newVideoFixture(t)

	uid := uint32(4217)
	w := doJSON(t, router, http.MethodPost, "/video/token/refresh", map[string]any{
		"channel_name": "vid_doc_20260901",
		"uid":          uid,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp tokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "vid_doc_20260901", resp.ChannelName)
	assert.Equal(t, uid, resp.UID)

	parsed, err := rtctoken.ParseToken(resp.Token)
	require.NoError(t, err)
	require.Len(t, parsed.Services, 1)
	assert.Equal(t, uid, parsed.Services[0].UID)
}

func TestCallLifecycle(t *testing.T) {
	_, calls, router := newVideoFixture(t)

	w := doJSON(t, router, http.MethodPost, "/video/calls", map[string]string{
		"doctor_id":      uuid.New().String(),
		"patient_id":     uuid.New().String(),
		"scheduled_time": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created callResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, string(model.CallScheduled), created.Status)
	assert.NotEmpty(t, created.ChannelName)

	// Ending a call that never started is refused.
	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/end", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// First join starts the call and returns a valid token for its channel.
	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/join", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var joined tokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&joined))
	assert.Equal(t, created.ChannelName, joined.ChannelName)

	id, err := uuid.Parse(created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CallOngoing, calls.calls[id].Status)

	// Second participant joins the ongoing call.
	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/join", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/end", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var ended callResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ended))
	assert.Equal(t, string(model.CallCompleted), ended.Status)
	assert.NotNil(t, ended.EndedAt)

	// Completed calls are not joinable.
	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/join", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelScheduledCall(t *testing.T) {
	_, _, router := newVideoFixture(t)

	w := doJSON(t, router, http.MethodPost, "/video/calls", map[string]string{
		"doctor_id":      uuid.New().String(),
		"patient_id":     uuid.New().String(),
		"scheduled_time": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created callResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cancelled callResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cancelled))
	assert.Equal(t, string(model.CallCancelled), cancelled.Status)

	// Cancelled calls cannot be joined or cancelled again.
	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/join", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	w = doJSON(t, router, http.MethodPost, "/video/calls/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestGetCallNotFound(t *testing.T) {
	_, _, router := newVideoFixture(t)

	w := doJSON(t, router, http.MethodGet, "/video/calls/"+uuid.New().String(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/video/calls/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
