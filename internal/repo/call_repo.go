package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zuwara/server/internal/model"
)

// ErrInvalidTransition is returned when a call status change is not allowed
// from the call's current state.
var ErrInvalidTransition = errors.New("repo: invalid call status transition")

// CallRepo persists scheduled video calls and their status transitions.
type CallRepo interface {
	Create(ctx context.Context, doctorID, patientID uuid.UUID, channelName string, scheduledTime time.Time) (model.VideoCall, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.VideoCall, error)
	GetByChannel(ctx context.Context, channelName string) (model.VideoCall, error)
	Start(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

type callRepo struct {
	db *sql.DB
}

func NewCallRepo(db *sql.DB) CallRepo {
	return &callRepo{db: db}
}

func (r *callRepo) Create(ctx context.Context, doctorID, patientID uuid.UUID, channelName string, scheduledTime time.Time) (model.VideoCall, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO video_calls (doctor_id, patient_id, channel_name, scheduled_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, channel_name, doctor_id, patient_id, status, scheduled_time,
		          started_at, ended_at, created_at, updated_at
	`, doctorID, patientID, channelName, scheduledTime)
	return scanCall(row)
}

func (r *callRepo) GetByID(ctx context.Context, id uuid.UUID) (model.VideoCall, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *callRepo) GetByChannel(ctx context.Context, channelName string) (model.VideoCall, error) {
	return r.getOne(ctx, `WHERE channel_name = $1`, channelName)
}

// Start moves a scheduled call to ongoing and stamps started_at. The status
// guard in the WHERE clause enforces the transition atomically.
func (r *callRepo) Start(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, `
		UPDATE video_calls
		SET status = 'ongoing', started_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'scheduled'
	`, id)
}

// Complete moves an ongoing call to completed and stamps ended_at.
func (r *callRepo) Complete(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, `
		UPDATE video_calls
		SET status = 'completed', ended_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'ongoing'
	`, id)
}

// Cancel cancels a call that has not started.
func (r *callRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, `
		UPDATE video_calls
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'scheduled'
	`, id)
}

func (r *callRepo) transition(ctx context.Context, query string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *callRepo) getOne(ctx context.Context, where string, arg any) (model.VideoCall, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, channel_name, doctor_id, patient_id, status, scheduled_time,
		       started_at, ended_at, created_at, updated_at
		FROM video_calls `+where, arg)
	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.VideoCall{}, ErrNotFound
	}
	return call, err
}

func scanCall(row *sql.Row) (model.VideoCall, error) {
	var call model.VideoCall
	var idStr, doctorStr, patientStr string
	err := row.Scan(
		&idStr,
		&call.ChannelName,
		&doctorStr,
		&patientStr,
		&call.Status,
		&call.ScheduledTime,
		&call.StartedAt,
		&call.EndedAt,
		&call.CreatedAt,
		&call.UpdatedAt,
	)
	if err != nil {
		return model.VideoCall{}, err
	}
	if call.ID, err = uuid.Parse(idStr); err != nil {
		return model.VideoCall{}, fmt.Errorf("parse call ID: %w", err)
	}
	if call.DoctorID, err = uuid.Parse(doctorStr); err != nil {
		return model.VideoCall{}, fmt.Errorf("parse doctor ID: %w", err)
	}
	if call.PatientID, err = uuid.Parse(patientStr); err != nil {
		return model.VideoCall{}, fmt.Errorf("parse patient ID: %w", err)
	}
	return call, nil
}
