package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account keyed by verified phone number
type User struct {
	ID          uuid.UUID
	PhoneNumber string
	CreatedAt   time.Time
}

// OTP represents a one-time passcode issued for phone-number verification.
// attempts only ever increases and is_verified only ever flips false -> true;
// records are never deleted by the application (cleanup is an admin concern).
type OTP struct {
	ID          uuid.UUID
	PhoneNumber string
	Code        string
	Attempts    int
	IsVerified  bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsExpired reports whether the code is past its TTL at the given instant.
func (o OTP) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// VideoCallStatus is the lifecycle state of a scheduled video call.
type VideoCallStatus string

const (
	CallScheduled VideoCallStatus = "scheduled"
	CallOngoing   VideoCallStatus = "ongoing"
	CallCompleted VideoCallStatus = "completed"
	CallCancelled VideoCallStatus = "cancelled"
)

// VideoCall represents a scheduled consultation tied to a unique RTC channel
type VideoCall struct {
	ID            uuid.UUID
	ChannelName   string
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Status        VideoCallStatus
	ScheduledTime time.Time
	StartedAt     *time.Time
	EndedAt       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
