package sms

import (
	"context"

	"go.uber.org/zap"

	"github.com/zuwara/server/internal/otp"
)

// DevSender logs instead of calling the gateway. Used when DEV_MODE is set so
// local environments never burn SMS credit. The message (and so the code) goes
// to the log on purpose here; this sender must never be wired in production.
type DevSender struct {
	log *zap.Logger
}

func NewDevSender(log *zap.Logger) *DevSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &DevSender{log: log.Named("sms.dev")}
}

func (s *DevSender) Send(_ context.Context, phone, message string) (bool, string) {
	s.log.Info("dev mode, sms not sent",
		zap.String("phone", otp.MaskPhone(phone)),
		zap.String("message", message),
	)
	return true, "SMS sent successfully (Development Mode)"
}
