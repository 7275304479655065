// Package addinbackend собирает основное приложение: хранилище, миграции,
// кэш, очередь уведомлений, сервисы и HTTP-сервер.
package addinbackend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/planboard/addin-backend/internal/billingprovider"
	"github.com/planboard/addin-backend/internal/cache"
	"github.com/planboard/addin-backend/internal/config"
	"github.com/planboard/addin-backend/internal/lib/jwt"
	"github.com/planboard/addin-backend/internal/lib/smtp"
	"github.com/planboard/addin-backend/internal/migrations"
	"github.com/planboard/addin-backend/internal/rabbitmq"
	authservice "github.com/planboard/addin-backend/internal/services/auth"
	billingservice "github.com/planboard/addin-backend/internal/services/billing"
	resetservice "github.com/planboard/addin-backend/internal/services/resetpass"
	senderservice "github.com/planboard/addin-backend/internal/services/sender"
	"github.com/planboard/addin-backend/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitAddress, cfg.RabbitRetries, cfg.RabbitDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, []rabbitmq.QueueConfig{rabbitmq.DunningQueue})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	providerClient := billingprovider.NewClient(cfg.BillingAPIURL, cfg.BillingSecret)
	transport := smtp.NewTransport(cfg, logger)

	authService := authservice.NewAuthService(db, db, jwtMaker, cfg.ExtendedTokenTTL, cfg.RefreshTokenTTL)
	senderService := senderservice.NewSenderService(logger, transport)
	resetService := resetservice.New(db, db, senderService, logger, cfg.ResetLinkBaseURL, cfg.ResetTokenTTL)
	billingService := billingservice.New(db, db, providerClient, cacheRedis,
		rabbitmq.NewPublisher(ch), logger,
		billingservice.PriceTable{Monthly: cfg.PriceMonthly, Yearly: cfg.PriceYearly},
		cfg.CheckoutOKURL, cfg.CheckoutBadURL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, authService, resetService, billingService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.ch.Close()
		_ = a.conn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
