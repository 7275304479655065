// Package billing содержит логику бизнес-уровня синхронизации подписки
// с платёжным провайдером: чтение статуса, создание сессии оплаты,
// отмена подписки и обработка webhook-событий.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/billingprovider"
	"github.com/planboard/addin-backend/internal/lib/sl"
	"github.com/planboard/addin-backend/internal/models"
)

const subscriptionCacheTTL = 5 * time.Minute

// UserRepository описывает работу с пользователями, нужную биллингу.
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetOrCreateUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetBillingCustomerID(ctx context.Context, userUID, customerID string) error
}

// SubscriptionRepository описывает контракт для записей о подписках.
type SubscriptionRepository interface {
	GetSubscriptionByEmail(ctx context.Context, email string) (*models.Subscription, error)
	UpsertActiveSubscription(ctx context.Context, eventID string, sub models.Subscription) error
	UpdateSubscriptionStatusByProviderID(ctx context.Context, eventID, providerSubID, status string) (email, plan string, err error)
	CancelSubscription(ctx context.Context, email string, cancelRemote func(ctx context.Context, providerSubID string) error) error
}

// Provider описывает используемую часть API платёжного провайдера.
type Provider interface {
	FindCustomerByEmail(ctx context.Context, email string) (*billingprovider.Customer, error)
	CreateCustomer(ctx context.Context, email string) (*billingprovider.Customer, error)
	CreateCheckoutSession(ctx context.Context, req billingprovider.CreateCheckoutSessionRequest) (*billingprovider.CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*billingprovider.Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
}

// Cache описывает кэш статуса подписки.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует уведомления в очередь.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// PriceTable сопоставляет идентификаторы цен провайдера локальным планам.
type PriceTable struct {
	Monthly string
	Yearly  string
}

// BillingService синхронизирует локальную запись о подписке с провайдером.
type BillingService struct {
	users     UserRepository
	subs      SubscriptionRepository
	provider  Provider
	cache     Cache
	publisher Publisher
	log       *slog.Logger

	prices         PriceTable
	checkoutOKURL  string
	checkoutBadURL string
}

// New создает новый экземпляр BillingService.
func New(users UserRepository, subs SubscriptionRepository, provider Provider,
	cache Cache, publisher Publisher, log *slog.Logger,
	prices PriceTable, checkoutOKURL, checkoutBadURL string) *BillingService {
	return &BillingService{
		users:          users,
		subs:           subs,
		provider:       provider,
		cache:          cache,
		publisher:      publisher,
		log:            log,
		prices:         prices,
		checkoutOKURL:  checkoutOKURL,
		checkoutBadURL: checkoutBadURL,
	}
}

func subscriptionCacheKey(email string) string {
	return "subscription:" + email
}

// planForPrice сопоставляет идентификатор цены провайдера локальному плану.
func (s *BillingService) planForPrice(priceID string) (string, error) {
	switch priceID {
	case s.prices.Monthly:
		return models.PlanMonthly, nil
	case s.prices.Yearly:
		return models.PlanYearly, nil
	default:
		return "", fmt.Errorf("unknown price id: %s", priceID)
	}
}

// priceForPlan возвращает идентификатор цены провайдера для локального плана.
func (s *BillingService) priceForPlan(plan string) (string, error) {
	switch plan {
	case models.PlanMonthly:
		return s.prices.Monthly, nil
	case models.PlanYearly:
		return s.prices.Yearly, nil
	default:
		return "", fmt.Errorf("unknown plan: %s", plan)
	}
}

// CheckSubscription возвращает статус подписки пользователя.
// Отсутствие записи и неактивный статус одинаково дают subscribed=false
// и никогда не являются ошибкой.
func (s *BillingService) CheckSubscription(ctx context.Context, email string) (models.SubscriptionStatusInfo, error) {
	const op = "services.billing.CheckSubscription"

	var info models.SubscriptionStatusInfo
	key := subscriptionCacheKey(email)
	if found, err := s.cache.Get(ctx, key, &info); err != nil {
		s.log.Warn("subscription cache read failed", sl.Err(err))
	} else if found {
		return info, nil
	}

	sub, err := s.subs.GetSubscriptionByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			info = models.SubscriptionStatusInfo{Subscribed: false}
			if cacheErr := s.cache.Set(ctx, key, info, subscriptionCacheTTL); cacheErr != nil {
				s.log.Warn("subscription cache write failed", sl.Err(cacheErr))
			}
			return info, nil
		}
		return models.SubscriptionStatusInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	info = models.SubscriptionStatusInfo{Subscribed: sub.Status == models.SubscriptionStatusActive}
	if info.Subscribed {
		info.Plan = sub.Plan
	}
	if cacheErr := s.cache.Set(ctx, key, info, subscriptionCacheTTL); cacheErr != nil {
		s.log.Warn("subscription cache write failed", sl.Err(cacheErr))
	}
	return info, nil
}

// CreateCheckoutSession создаёт у провайдера сессию оплаты выбранного плана
// и возвращает URL для редиректа пользователя. При необходимости заводит
// клиента у провайдера и сохраняет его идентификатор в учётной записи.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, email, plan string) (string, error) {
	const op = "services.billing.CreateCheckoutSession"

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperr.ErrNotFound
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	priceID, err := s.priceForPlan(plan)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var customerID string
	if user.BillingCustomerID != nil {
		customerID = *user.BillingCustomerID
	} else {
		customer, err := s.provider.FindCustomerByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if customer == nil {
			customer, err = s.provider.CreateCustomer(ctx, email)
			if err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}
		}
		customerID = customer.ID
		if err = s.users.SetBillingCustomerID(ctx, user.UID, customerID); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, billingprovider.CreateCheckoutSessionRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.checkoutOKURL,
		CancelURL:  s.checkoutBadURL,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return session.URL, nil
}

// Unsubscribe отменяет активную подписку пользователя. Удалённая отмена
// и локальный перевод в canceled выполняются внутри одной транзакции
// хранилища: сбой на любом шаге откатывает всё целиком.
func (s *BillingService) Unsubscribe(ctx context.Context, email string) error {
	const op = "services.billing.Unsubscribe"

	err := s.subs.CancelSubscription(ctx, email, func(ctx context.Context, providerSubID string) error {
		return s.provider.CancelSubscription(ctx, providerSubID)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if cacheErr := s.cache.Invalidate(ctx, subscriptionCacheKey(email)); cacheErr != nil {
		s.log.Warn("subscription cache invalidate failed", sl.Err(cacheErr))
	}
	return nil
}
