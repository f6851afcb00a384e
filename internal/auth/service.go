package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zuwara/server/internal/model"
	"github.com/zuwara/server/internal/otp"
	"github.com/zuwara/server/internal/repo"
)

// ErrOTPRejected means the submitted code did not verify; the attached message
// is safe to return to the client.
var ErrOTPRejected = errors.New("otp rejected")

// OTPVerifier is the slice of the OTP service the auth flow needs.
type OTPVerifier interface {
	Verify(ctx context.Context, phone, code string) (otp.VerifyResult, error)
}

// AuthService ties OTP verification to account creation and session issuance
type AuthService struct {
	otp      OTPVerifier
	jwt      *JWTService
	userRepo repo.UserRepo
	log      *zap.Logger
}

func NewAuthService(otpVerifier OTPVerifier, jwtService *JWTService, userRepo repo.UserRepo, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		otp:      otpVerifier,
		jwt:      jwtService,
		userRepo: userRepo,
		log:      log.Named("auth"),
	}
}

// VerifyOTPAndIssueAccessToken checks the submitted code, registers the phone
// number on first login, and returns a signed access token.
func (s *AuthService) VerifyOTPAndIssueAccessToken(ctx context.Context, phone, code string) (*model.User, string, error) {
	result, err := s.otp.Verify(ctx, phone, code)
	if err != nil {
		return nil, "", fmt.Errorf("OTP verification failed: %w", err)
	}
	if !result.Success {
		return nil, "", fmt.Errorf("%w: %s", ErrOTPRejected, result.Message)
	}

	normalized, err := otp.NormalizePhone(phone)
	if err != nil {
		return nil, "", err
	}

	user, err := s.userRepo.GetOrCreateByPhone(ctx, normalized)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get or create user: %w", err)
	}

	token, err := s.jwt.SignAccessToken(user.ID, user.PhoneNumber)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Info("user logged in", zap.String("phone", otp.MaskPhone(normalized)))
	return &user, token, nil
}
