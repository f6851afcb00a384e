package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration. Secrets are injected here once
// at startup and passed explicitly to the components that need them; nothing
// reads the environment after Load returns.
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string

	// RTC credential pair, provisioned out of band. Never logged in full.
	AgoraAppID       string
	AgoraCertificate string
	TokenTTL         time.Duration
	PrivilegeTTL     time.Duration

	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPRotateOnResend bool

	SMSAPIURL    string
	SMSUser      string
	SMSSecretKey string
	SMSSender    string

	SMTPAddr     string
	SMTPFrom     string
	SMTPUser     string
	SMTPPassword string

	// AlertEmail receives delivery-failure notifications when SMTP is
	// configured. Empty disables alerting.
	AlertEmail string

	// DevMode enables the OTP bypass code and the log-only SMS sender. Must
	// stay off in production deployments.
	DevMode bool
}

// Load reads configuration from environment variables. Missing secrets are a
// deployment defect and fail loudly here rather than degrading later.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getenv("PORT", "8080"),
		TokenTTL:     time.Duration(getenvInt("TOKEN_TTL_SECONDS", 3600)) * time.Second,
		PrivilegeTTL: time.Duration(getenvInt("PRIVILEGE_TTL_SECONDS", 0)) * time.Second,

		OTPTTL:            time.Duration(getenvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		OTPMaxAttempts:    getenvInt("OTP_MAX_ATTEMPTS", 3),
		OTPRotateOnResend: os.Getenv("OTP_ROTATE_ON_RESEND") == "true",

		SMSAPIURL:    os.Getenv("SMS_API_URL"),
		SMSUser:      os.Getenv("SMS_USER"),
		SMSSecretKey: os.Getenv("SMS_SECRET_KEY"),
		SMSSender:    getenv("SMS_SENDER", "ZUWARA"),

		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		AlertEmail: os.Getenv("ALERT_EMAIL"),

		DevMode: os.Getenv("DEV_MODE") == "true",
	}

	for _, required := range []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"JWT_SECRET", &cfg.JWTSecret},
		{"AGORA_APP_ID", &cfg.AgoraAppID},
		{"AGORA_APP_CERTIFICATE", &cfg.AgoraCertificate},
	} {
		v := os.Getenv(required.key)
		if v == "" {
			return nil, fmt.Errorf("%s environment variable is required", required.key)
		}
		*required.dst = v
	}

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL_SECONDS must be positive")
	}
	if cfg.SMSAPIURL == "" && !cfg.DevMode {
		return nil, fmt.Errorf("SMS_API_URL is required outside DEV_MODE")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
