package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/tally/internal/handlers"
	"github.com/BradenHooton/tally/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Gateway guards protected routes
type Gateway interface {
	Protect(next http.Handler) http.Handler
}

// NewRouter returns a router with the common middleware stack. chi's RealIP is
// left out: client IPs come from pkg/http.ExtractClientIP, which only honours
// forwarding headers from trusted proxies.
func NewRouter(logger *slog.Logger, requestTimeout time.Duration) chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(requestTimeout))
	return router
}

// RegisterRoutes mounts the auth and session APIs on router. Callers mount
// router under /api/v1.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	gateway Gateway,
	rateLimit middleware.RateLimitConfig,
) {
	router.Route("/auth", func(r chi.Router) {
		// Public, IP rate limited
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimit))

			r.Post("/register", authHandler.Register)
			r.Get("/verify-email/{token}", authHandler.VerifyEmail)
			r.Post("/resend-verification", authHandler.ResendVerification)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh-token", authHandler.RefreshToken)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(gateway.Protect)

			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Put("/change-password", authHandler.ChangePassword)
			r.Delete("/delete-account", authHandler.DeleteAccount)
			r.Get("/getUser", authHandler.GetUser)
		})
	})

	router.Route("/session", func(r chi.Router) {
		r.Use(gateway.Protect)

		r.Get("/list", sessionHandler.List)
		r.Post("/revoke", sessionHandler.Revoke)
		r.Post("/revoke-all", sessionHandler.RevokeAll)
	})
}
