// Package sender собирает воркер почтовых уведомлений: подключение к RabbitMQ,
// SMTP-транспорт и потребителя очереди о неуспешных списаниях.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/planboard/addin-backend/internal/config"
	"github.com/planboard/addin-backend/internal/lib/smtp"
	"github.com/planboard/addin-backend/internal/rabbitmq"
	senderservice "github.com/planboard/addin-backend/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitAddress, cfg.RabbitRetries, cfg.RabbitDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, []rabbitmq.QueueConfig{rabbitmq.DunningQueue})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	newTransport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.NewSenderService(logger, newTransport)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.DunningQueue.QueueName, a.senderService.SendDunningNotice)
	if err != nil {
		a.logger.Error("failed to start dunning queue consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
