// Package sms delivers text messages through the Dreams SMS gateway. The
// gateway answers HTTP GET requests with a bare numeric status code; anything
// negative is a provider-side failure.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/zuwara/server/internal/otp"
)

// Config holds the Dreams gateway credentials. SecretKey is never logged.
type Config struct {
	APIURL    string
	User      string
	SecretKey string
	Sender    string
}

// Client sends SMS through the Dreams HTTP API. Transient transport errors are
// retried with fibonacci backoff; provider rejections (negative status codes)
// are not, since they are deterministic.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log.Named("sms"),
	}
}

// Send delivers message to phone (canonical international form). It reports
// (success, providerMessage) as the OTP service expects; it never returns an
// error because delivery failure is an expected outcome, not a fault.
func (c *Client) Send(ctx context.Context, phone, message string) (bool, string) {
	// The gateway wants the bare local subscriber number.
	to := otp.LocalPhone(phone)

	var body string
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.call(ctx, to, message)
		if err != nil {
			return retry.RetryableError(err)
		}
		body = b
		return nil
	})
	if err != nil {
		c.log.Warn("sms gateway unreachable", zap.String("phone", otp.MaskPhone(phone)), zap.Error(err))
		return false, fmt.Sprintf("Failed to send SMS: %v", err)
	}

	ok, providerMsg := interpretResponse(body)
	if !ok {
		c.log.Warn("sms gateway rejected message",
			zap.String("phone", otp.MaskPhone(phone)),
			zap.String("response", body),
		)
	}
	return ok, providerMsg
}

func (c *Client) call(ctx context.Context, to, message string) (string, error) {
	params := url.Values{
		"user":       {c.cfg.User},
		"secret_key": {c.cfg.SecretKey},
		"to":         {to},
		"message":    {message},
		"sender":     {c.cfg.Sender},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("read sms response: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// interpretResponse maps the gateway's numeric reply to a result. The reply
// sometimes carries stray whitespace or markup, so everything but digits and
// the sign is stripped first.
func interpretResponse(body string) (bool, string) {
	var b strings.Builder
	for _, r := range body {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	code := b.String()

	switch {
	case code == "1":
		return true, "SMS sent successfully"
	case code == "-124":
		return false, "Failed to send SMS: Invalid credentials or IP not whitelisted"
	case code == "-120":
		return false, "Failed to send SMS: Invalid sender ID"
	case code == "-110":
		return false, "Failed to send SMS: Invalid phone number format"
	case code == "-111":
		return false, "Failed to send SMS: Insufficient credit"
	case strings.HasPrefix(code, "-"):
		return false, fmt.Sprintf("Failed to send SMS: API error %s", code)
	default:
		// Unknown positive replies are treated as delivered, matching the
		// gateway's documented behavior for batch ids.
		return true, "SMS sent successfully"
	}
}
