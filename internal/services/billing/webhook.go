package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/planboard/addin-backend/internal/lib/sl"
	"github.com/planboard/addin-backend/internal/models"
	"github.com/planboard/addin-backend/internal/rabbitmq"
)

// Виды событий платёжного провайдера, обрабатываемые сервисом.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ProviderEvent — типизированное webhook-событие платёжного провайдера.
// Поле Object несёт разные объекты в зависимости от вида события:
// сессию оплаты, счёт или подписку.
type ProviderEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			CustomerEmail string `json:"customer_email"`
			Subscription  string `json:"subscription"`
		} `json:"object"`
	} `json:"data"`
}

// HandleEvent применяет эффект webhook-события к локальной записи о подписке.
// Все эффекты идемпотентны: идентификатор события фиксируется в таблице
// дедупликации в одной транзакции с изменением, и повторная доставка
// не меняет состояние. Нераспознанные виды событий игнорируются без ошибки:
// провайдер повторяет доставку при любом ответе, отличном от 2xx.
func (s *BillingService) HandleEvent(ctx context.Context, event *ProviderEvent) error {
	const op = "services.billing.HandleEvent"
	log := s.log.With(slog.String("op", op), slog.String("event", event.Type))

	switch event.Type {
	case EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, event)

	case EventInvoicePaid:
		email, _, err := s.subs.UpdateSubscriptionStatusByProviderID(ctx,
			event.ID, event.Data.Object.Subscription, models.SubscriptionStatusActive)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.invalidateStatus(ctx, email)
		return nil

	case EventInvoiceFailed:
		email, plan, err := s.subs.UpdateSubscriptionStatusByProviderID(ctx,
			event.ID, event.Data.Object.Subscription, models.SubscriptionStatusPastDue)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.invalidateStatus(ctx, email)
		if email != "" {
			notice := models.DunningNotice{Email: email, Plan: plan}
			if pubErr := s.publisher.Publish(rabbitmq.DunningQueue.RoutingKey, notice); pubErr != nil {
				// Уведомление вторично: сбой публикации не должен заставить
				// провайдера повторять уже применённое событие.
				log.Error("failed to publish dunning notice", sl.Err(pubErr))
			}
		}
		return nil

	case EventSubscriptionDeleted:
		email, _, err := s.subs.UpdateSubscriptionStatusByProviderID(ctx,
			event.ID, event.Data.Object.ID, models.SubscriptionStatusCanceled)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.invalidateStatus(ctx, email)
		return nil

	default:
		log.Info("ignored webhook event")
		return nil
	}
}

// applyCheckoutCompleted обрабатывает завершённую оплату: находит или создаёт
// пользователя по почте, запрашивает у провайдера авторитетный объект подписки,
// сопоставляет цену локальному плану и создаёт либо обновляет запись со
// статусом active.
func (s *BillingService) applyCheckoutCompleted(ctx context.Context, event *ProviderEvent) error {
	const op = "services.billing.applyCheckoutCompleted"

	remote, err := s.provider.GetSubscription(ctx, event.Data.Object.Subscription)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	plan, err := s.planForPrice(remote.PriceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.GetOrCreateUserByEmail(ctx, event.Data.Object.CustomerEmail)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user.BillingCustomerID == nil && remote.CustomerID != "" {
		if err = s.users.SetBillingCustomerID(ctx, user.UID, remote.CustomerID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	sub := models.Subscription{
		UserUID:                user.UID,
		ProviderSubscriptionID: remote.ID,
		Status:                 models.SubscriptionStatusActive,
		Plan:                   plan,
		CurrentPeriodEnd:       time.Unix(remote.CurrentPeriodEnd, 0).UTC(),
	}
	if err = s.subs.UpsertActiveSubscription(ctx, event.ID, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateStatus(ctx, user.Email)
	return nil
}

// invalidateStatus сбрасывает кэш статуса подписки; пустая почта означает,
// что событие не затронуло ни одной записи.
func (s *BillingService) invalidateStatus(ctx context.Context, email string) {
	if email == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, subscriptionCacheKey(email)); err != nil {
		s.log.Warn("subscription cache invalidate failed", sl.Err(err))
	}
}
