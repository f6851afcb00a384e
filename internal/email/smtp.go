// Package email delivers verification and security-code notifications over
// SMTP. It exposes the same (success, providerMessage) shape as the SMS
// collaborator so the two channels are interchangeable to callers.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Config holds SMTP connection settings. Password is never logged.
type Config struct {
	Addr     string // host:port
	From     string
	User     string
	Password string
}

// Sender delivers a message to an email address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (bool, string)
}

type smtpSender struct {
	cfg Config
	log *zap.Logger

	// swappable for tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg Config, log *zap.Logger) Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &smtpSender{
		cfg:      cfg,
		log:      log.Named("email"),
		sendMail: smtp.SendMail,
	}
}

func (s *smtpSender) Send(_ context.Context, to, subject, body string) (bool, string) {
	var auth smtp.Auth
	if s.cfg.User != "" {
		host := s.cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		s.cfg.From, to, subject, body)

	if err := s.sendMail(s.cfg.Addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		s.log.Warn("email delivery failed", zap.String("to", maskEmail(to)), zap.Error(err))
		return false, fmt.Sprintf("Failed to send email: %v", err)
	}
	s.log.Info("email sent", zap.String("to", maskEmail(to)), zap.String("subject", subject))
	return true, "Email sent successfully"
}

func maskEmail(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 1 {
		return "****"
	}
	return addr[:1] + "***" + addr[at:]
}
