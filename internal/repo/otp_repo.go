package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zuwara/server/internal/model"
	"github.com/zuwara/server/internal/otp"
)

// OTPRepo is the Postgres implementation of otp.Repo.
type OTPRepo struct {
	db *sql.DB
}

func NewOTPRepo(db *sql.DB) *OTPRepo {
	return &OTPRepo{db: db}
}

// CreateOrReuse returns the live unverified code for phone if one exists, or
// inserts a fresh record. An advisory lock serializes concurrent issuance per
// phone so the check-then-create sequence cannot race into two live codes;
// the lock is released on commit/rollback.
func (r *OTPRepo) CreateOrReuse(ctx context.Context, phone, code string, expiresAt time.Time, rotate bool) (model.OTP, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.OTP{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, phone); err != nil {
		return model.OTP{}, false, fmt.Errorf("advisory lock: %w", err)
	}

	existing, err := scanOTP(tx.QueryRowContext(ctx, `
		SELECT id, phone_number, code, attempts, is_verified, created_at, expires_at
		FROM otps
		WHERE phone_number = $1
		  AND is_verified = FALSE
		  AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
	`, phone))
	switch {
	case err == nil && !rotate:
		if err := tx.Commit(); err != nil {
			return model.OTP{}, false, fmt.Errorf("commit: %w", err)
		}
		return existing, true, nil
	case err == nil && rotate:
		// Retire the live code so the new one is the only valid candidate.
		if _, err := tx.ExecContext(ctx, `
			UPDATE otps SET expires_at = now()
			WHERE phone_number = $1 AND is_verified = FALSE AND expires_at > now()
		`, phone); err != nil {
			return model.OTP{}, false, fmt.Errorf("retire existing codes: %w", err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return model.OTP{}, false, fmt.Errorf("query live code: %w", err)
	}

	rec, err := scanOTP(tx.QueryRowContext(ctx, `
		INSERT INTO otps (phone_number, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, phone_number, code, attempts, is_verified, created_at, expires_at
	`, phone, code, expiresAt))
	if err != nil {
		return model.OTP{}, false, fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.OTP{}, false, fmt.Errorf("commit: %w", err)
	}
	return rec, false, nil
}

// LatestUnverified returns the most recent unverified record for phone,
// expired or not. The service layer distinguishes expired from live so it can
// answer with the right failure message.
func (r *OTPRepo) LatestUnverified(ctx context.Context, phone string) (model.OTP, error) {
	rec, err := scanOTP(r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, code, attempts, is_verified, created_at, expires_at
		FROM otps
		WHERE phone_number = $1 AND is_verified = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return model.OTP{}, otp.ErrNoActiveCode
	}
	if err != nil {
		return model.OTP{}, fmt.Errorf("query otp: %w", err)
	}
	return rec, nil
}

// IncrementAttempts bumps the attempt counter atomically and returns the new
// value. The row update serializes concurrent verification attempts: two
// racing callers observe distinct post-increment counts, so the max-attempts
// cutoff cannot be bypassed.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE otps SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, otp.ErrNoActiveCode
	}
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

// MarkVerified flips is_verified exactly once; the guard in the WHERE clause
// makes the transition one-way even under concurrent verification.
func (r *OTPRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE otps SET is_verified = TRUE
		WHERE id = $1 AND is_verified = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return otp.ErrAlreadyVerified
	}
	return nil
}

func scanOTP(row *sql.Row) (model.OTP, error) {
	var rec model.OTP
	var idStr string
	err := row.Scan(
		&idStr,
		&rec.PhoneNumber,
		&rec.Code,
		&rec.Attempts,
		&rec.IsVerified,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		return model.OTP{}, err
	}
	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OTP{}, fmt.Errorf("parse otp ID: %w", err)
	}
	return rec, nil
}
