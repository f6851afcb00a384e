package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/zuwara/server/internal/auth"
	"github.com/zuwara/server/internal/config"
	"github.com/zuwara/server/internal/db"
	"github.com/zuwara/server/internal/email"
	httpserver "github.com/zuwara/server/internal/http"
	"github.com/zuwara/server/internal/http/handlers"
	"github.com/zuwara/server/internal/otp"
	"github.com/zuwara/server/internal/repo"
	"github.com/zuwara/server/internal/rtctoken"
	"github.com/zuwara/server/internal/sms"
)

func main() {
	// Env vars override .env values
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.DevMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := runMigrations(database, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOTPRepo(database)
	callRepo := repo.NewCallRepo(database)

	smsSender := newSMSSender(cfg, logger)
	otpService := otp.NewService(otpRepo, smsSender, otp.Config{
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		RotateOnResend: cfg.OTPRotateOnResend,
		DevMode:        cfg.DevMode,
	}, logger)

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authService := auth.NewAuthService(otpService, jwtService, userRepo, logger)

	tokenBuilder, err := rtctoken.NewBuilder(cfg.AgoraAppID, cfg.AgoraCertificate, logger)
	if err != nil {
		return fmt.Errorf("initialize token builder: %w", err)
	}

	privilegeTTL := int64(cfg.PrivilegeTTL / time.Second)
	otpHandler := handlers.NewOTPHandler(otpService, logger)
	authHandler := handlers.NewAuthHandler(authService, logger)
	videoHandler := handlers.NewVideoHandler(tokenBuilder, callRepo, int64(cfg.TokenTTL/time.Second), privilegeTTL, logger)

	router := httpserver.NewRouter(database, otpHandler, authHandler, videoHandler, jwtService, userRepo)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.Bool("dev_mode", cfg.DevMode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func newLogger(devMode bool) (*zap.Logger, error) {
	if devMode {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newSMSSender picks the real gateway client or the log-only sender. DEV_MODE
// never talks to the provider. With SMTP and ALERT_EMAIL configured, gateway
// failures additionally page the ops address.
func newSMSSender(cfg *config.Config, logger *zap.Logger) otp.Sender {
	if cfg.DevMode {
		return sms.NewDevSender(logger)
	}
	var sender otp.Sender = sms.NewClient(sms.Config{
		APIURL:    cfg.SMSAPIURL,
		User:      cfg.SMSUser,
		SecretKey: cfg.SMSSecretKey,
		Sender:    cfg.SMSSender,
	}, logger)
	if cfg.SMTPAddr != "" && cfg.AlertEmail != "" {
		mail := email.NewSender(email.Config{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}, logger)
		sender = sms.NewAlertingSender(sender, mail, cfg.AlertEmail, logger)
	}
	return sender
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB, logger *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	logger.Info("running migrations", zap.String("dir", migrationDir))
	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
