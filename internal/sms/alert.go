package sms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zuwara/server/internal/email"
	"github.com/zuwara/server/internal/otp"
)

// AlertingSender wraps a Sender and emails the ops address whenever the
// gateway refuses a message. Delivery outages (bad credentials, exhausted
// credit) otherwise only surface in logs.
type AlertingSender struct {
	next    otp.Sender
	mail    email.Sender
	alertTo string
	log     *zap.Logger
}

func NewAlertingSender(next otp.Sender, mail email.Sender, alertTo string, log *zap.Logger) *AlertingSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &AlertingSender{
		next:    next,
		mail:    mail,
		alertTo: alertTo,
		log:     log.Named("sms.alert"),
	}
}

func (s *AlertingSender) Send(ctx context.Context, phone, message string) (bool, string) {
	ok, providerMsg := s.next.Send(ctx, phone, message)
	if !ok {
		body := fmt.Sprintf("SMS delivery to %s failed: %s", otp.MaskPhone(phone), providerMsg)
		if sent, mailMsg := s.mail.Send(ctx, s.alertTo, "SMS delivery failure", body); !sent {
			s.log.Warn("delivery failure alert not sent", zap.String("reason", mailMsg))
		}
	}
	return ok, providerMsg
}
