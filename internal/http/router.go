package http

import (
	"database/sql"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zuwara/server/internal/auth"
	"github.com/zuwara/server/internal/http/handlers"
	"github.com/zuwara/server/internal/middleware"
	"github.com/zuwara/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	db *sql.DB,
	otpHandler *handlers.OTPHandler,
	authHandler *handlers.AuthHandler,
	videoHandler *handlers.VideoHandler,
	jwtService *auth.JWTService,
	userRepo repo.UserRepo,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler(db)
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/otp", func(r chi.Router) {
		r.Post("/send", otpHandler.HandleSend)
		r.Post("/verify", otpHandler.HandleVerify)
	})

	r.Post("/auth/login", authHandler.HandleLogin)

	// Protected routes (require valid JWT)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtService, userRepo))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/video", func(r chi.Router) {
			r.Post("/token", videoHandler.HandleGenerateToken)
			r.Post("/token/refresh", videoHandler.HandleRefreshToken)
			r.Route("/calls", func(r chi.Router) {
				r.Post("/", videoHandler.HandleCreateCall)
				r.Get("/{id}", videoHandler.HandleGetCall)
				r.Post("/{id}/join", videoHandler.HandleJoinCall)
				r.Post("/{id}/end", videoHandler.HandleEndCall)
				r.Post("/{id}/cancel", videoHandler.HandleCancelCall)
			})
		})
	})

	return r
}
