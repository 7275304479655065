// Package addinbackend предоставляет маршруты для основного приложения.
package addinbackend

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/planboard/addin-backend/internal/config"
	"github.com/planboard/addin-backend/internal/http/handlers/auth/login"
	"github.com/planboard/addin-backend/internal/http/handlers/auth/refresh"
	"github.com/planboard/addin-backend/internal/http/handlers/auth/register"
	"github.com/planboard/addin-backend/internal/http/handlers/billing/checkout"
	"github.com/planboard/addin-backend/internal/http/handlers/billing/status"
	"github.com/planboard/addin-backend/internal/http/handlers/billing/unsubscribe"
	"github.com/planboard/addin-backend/internal/http/handlers/billing/webhook"
	"github.com/planboard/addin-backend/internal/http/handlers/health"
	resetconfirm "github.com/planboard/addin-backend/internal/http/handlers/resetpass/confirm"
	resetrequest "github.com/planboard/addin-backend/internal/http/handlers/resetpass/request"
	"github.com/planboard/addin-backend/internal/http/middlewarectx"
	authservice "github.com/planboard/addin-backend/internal/services/auth"
	billingservice "github.com/planboard/addin-backend/internal/services/billing"
	resetservice "github.com/planboard/addin-backend/internal/services/resetpass"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	authService *authservice.AuthService,
	resetService *resetservice.ResetService,
	billingService *billingservice.BillingService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Post("/refresh", refresh.New(logger, authService).ServeHTTP)
		r.Post("/reset-password", resetrequest.New(logger, resetService).ServeHTTP)
		r.Post("/reset-password/confirm", resetconfirm.New(logger, resetService).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/subscription", status.New(logger, billingService).ServeHTTP)
			r.Post("/subscription/checkout", checkout.New(logger, billingService).ServeHTTP)
			r.Delete("/subscription", unsubscribe.New(logger, billingService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, подпись в заголовке)
		r.Post("/billing/webhook", webhook.New(logger, billingService, cfg.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
