package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zuwara/server/internal/model"
)

const (
	codeLength = 6

	// bypassCode is the all-zero sentinel accepted only when Config.DevMode is
	// set. It must never be reachable in a production configuration.
	bypassCode = "000000"

	smsTemplate = "ZUWARA: Your verification code is %s"
)

var (
	// ErrNoActiveCode is returned by Repo implementations when no unverified
	// code exists for a number.
	ErrNoActiveCode = errors.New("otp: no active code")

	// ErrAlreadyVerified is returned by Repo.MarkVerified when the record was
	// verified by a concurrent request; is_verified never transitions back.
	ErrAlreadyVerified = errors.New("otp: code already verified")
)

// Repo persists OTP records. Implementations must serialize concurrent
// mutations per phone number: CreateOrReuse holds a per-number lock for its
// read-then-write sequence and IncrementAttempts must be an atomic
// read-modify-write returning the post-increment count.
type Repo interface {
	// CreateOrReuse returns the still-valid unverified code for phone if one
	// exists (reused=true), unless rotate is set, in which case the existing
	// code is retired and a record with code is inserted. At most one live
	// unverified code per number survives concurrent calls.
	CreateOrReuse(ctx context.Context, phone, code string, expiresAt time.Time, rotate bool) (rec model.OTP, reused bool, err error)

	// LatestUnverified returns the most recent unverified record for phone,
	// expired or not, or ErrNoActiveCode.
	LatestUnverified(ctx context.Context, phone string) (model.OTP, error)

	// IncrementAttempts atomically bumps the attempt counter and returns the
	// new value.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)

	// MarkVerified flips is_verified to true; ErrAlreadyVerified if it was
	// already set.
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

// Sender delivers a message to a phone number. Implementations report
// (success, providerMessage); delivery failure must not corrupt OTP state.
type Sender interface {
	Send(ctx context.Context, phone, message string) (bool, string)
}

// Config carries the tunable parts of the OTP lifecycle.
type Config struct {
	TTL            time.Duration // code validity window, default 10 minutes
	MaxAttempts    int           // verification attempts per code, default 3
	RotateOnResend bool          // mint a fresh code on re-issue instead of resending
	DevMode        bool          // accept bypassCode, for automated testing only
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// IssueResult reports the outcome of an issuance request.
type IssueResult struct {
	Success bool
	Message string
	OTPID   string
}

// VerifyResult reports the outcome of a verification attempt.
type VerifyResult struct {
	Success bool
	Message string
}

// Service owns the OTP lifecycle: issuance with resend semantics, attempt
// accounting and the one-way verified transition. All state lives in the Repo;
// the service itself is safe for concurrent use.
type Service struct {
	repo Repo
	sms  Sender
	cfg  Config
	now  func() time.Time
	log  *zap.Logger
}

func NewService(repo Repo, sms Sender, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo: repo,
		sms:  sms,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
		log:  log.Named("otp"),
	}
}

// GenerateCode returns a uniform random 6-digit code, leading zeros allowed.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates (or re-sends) a code for the given phone number and invokes
// the SMS collaborator. A still-valid unverified code is resent as-is rather
// than rotated, so a "resend" tap delivers the code the user is already
// expecting; RotateOnResend flips that policy. A failed send on a fresh code
// yields a failure result, but the persisted record is kept.
func (s *Service) Issue(ctx context.Context, rawPhone string) (IssueResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return IssueResult{}, err
	}

	code, err := GenerateCode()
	if err != nil {
		return IssueResult{}, err
	}

	rec, reused, err := s.repo.CreateOrReuse(ctx, phone, code, s.now().Add(s.cfg.TTL), s.cfg.RotateOnResend)
	if err != nil {
		return IssueResult{}, fmt.Errorf("persist otp: %w", err)
	}

	ok, providerMsg := s.sms.Send(ctx, phone, fmt.Sprintf(smsTemplate, rec.Code))
	if !ok {
		s.log.Warn("otp sms delivery failed",
			zap.String("phone", MaskPhone(phone)),
			zap.String("otp_id", rec.ID.String()),
			zap.String("provider", providerMsg),
		)
		return IssueResult{Success: false, Message: providerMsg}, nil
	}

	s.log.Info("otp issued",
		zap.String("phone", MaskPhone(phone)),
		zap.String("otp_id", rec.ID.String()),
		zap.Bool("resend", reused),
	)
	return IssueResult{Success: true, Message: providerMsg, OTPID: rec.ID.String()}, nil
}

// Verify checks a submitted code against the latest unverified record for the
// number. Every attempt against a live code is counted, matching or not; once
// the counter reaches MaxAttempts the code is dead and even the correct value
// is refused.
func (s *Service) Verify(ctx context.Context, rawPhone, submitted string) (VerifyResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return VerifyResult{}, err
	}
	if len(submitted) != codeLength || !isDigits(submitted) {
		return VerifyResult{Success: false, Message: "Invalid OTP format"}, nil
	}

	rec, err := s.repo.LatestUnverified(ctx, phone)
	if errors.Is(err, ErrNoActiveCode) {
		return VerifyResult{Success: false, Message: "Invalid OTP"}, nil
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load otp: %w", err)
	}

	if rec.IsExpired(s.now()) {
		return VerifyResult{Success: false, Message: "OTP has expired"}, nil
	}
	if rec.Attempts >= s.cfg.MaxAttempts {
		// Terminal state; repeated calls do not increment further.
		return VerifyResult{Success: false, Message: "Maximum verification attempts exceeded"}, nil
	}

	if s.cfg.DevMode && submitted == bypassCode {
		if err := s.repo.MarkVerified(ctx, rec.ID); err != nil {
			if errors.Is(err, ErrAlreadyVerified) {
				return VerifyResult{Success: false, Message: "Invalid OTP"}, nil
			}
			return VerifyResult{}, fmt.Errorf("mark verified: %w", err)
		}
		s.log.Info("otp verified via bypass code", zap.String("phone", MaskPhone(phone)))
		return VerifyResult{Success: true, Message: "OTP verified successfully"}, nil
	}

	attempts, err := s.repo.IncrementAttempts(ctx, rec.ID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("record attempt: %w", err)
	}

	match := subtle.ConstantTimeCompare([]byte(submitted), []byte(rec.Code)) == 1

	// attempts > MaxAttempts means a concurrent request used up the last slot
	// between our read and our increment; the cutoff still holds.
	if match && attempts <= s.cfg.MaxAttempts {
		if err := s.repo.MarkVerified(ctx, rec.ID); err != nil {
			if errors.Is(err, ErrAlreadyVerified) {
				return VerifyResult{Success: false, Message: "Invalid OTP"}, nil
			}
			return VerifyResult{}, fmt.Errorf("mark verified: %w", err)
		}
		s.log.Info("otp verified", zap.String("phone", MaskPhone(phone)))
		return VerifyResult{Success: true, Message: "OTP verified successfully"}, nil
	}

	if attempts >= s.cfg.MaxAttempts {
		s.log.Info("otp attempts exhausted", zap.String("phone", MaskPhone(phone)), zap.Int("attempts", attempts))
		return VerifyResult{Success: false, Message: "Maximum verification attempts exceeded"}, nil
	}
	return VerifyResult{Success: false, Message: "Invalid OTP code"}, nil
}
