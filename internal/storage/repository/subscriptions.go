package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/models"
)

// GetSubscriptionByEmail возвращает запись о подписке пользователя по его почте.
// Отсутствие записи возвращает sql.ErrNoRows в обёртке.
func (s *Storage) GetSubscriptionByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, s.user_uid, s.provider_subscription_id, s.status, s.plan, s.current_period_end
			  FROM subscriptions s
			  JOIN users u ON u.uid = s.user_uid
			  WHERE u.email = $1`
	sub := &models.Subscription{}
	row := s.DB.QueryRowContext(ctx, query, email)
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.ProviderSubscriptionID,
		&sub.Status, &sub.Plan, &sub.CurrentPeriodEnd); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// markEventProcessed регистрирует идентификатор webhook-события в таблице
// дедупликации. Возвращает false, если событие уже было обработано:
// провайдер может повторно доставить одно и то же событие.
func markEventProcessed(ctx context.Context, tx *sql.Tx, eventID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id) VALUES ($1)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpsertActiveSubscription создаёт или обновляет запись о подписке пользователя
// со статусом active. Выполняется в одной транзакции с регистрацией
// идентификатора события: повторная доставка события не меняет состояние.
func (s *Storage) UpsertActiveSubscription(ctx context.Context, eventID string, sub models.Subscription) error {
	const op = "storage.UpsertActiveSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	fresh, err := markEventProcessed(ctx, tx, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !fresh {
		return tx.Commit()
	}

	query := `INSERT INTO subscriptions (user_uid, provider_subscription_id, status, plan, current_period_end)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_uid) DO UPDATE
			  SET provider_subscription_id = EXCLUDED.provider_subscription_id,
			      status = EXCLUDED.status,
			      plan = EXCLUDED.plan,
			      current_period_end = EXCLUDED.current_period_end;`
	if _, err = tx.ExecContext(ctx, query,
		sub.UserUID, sub.ProviderSubscriptionID, sub.Status, sub.Plan, sub.CurrentPeriodEnd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateSubscriptionStatusByProviderID обновляет статус подписки по её
// идентификатору у провайдера, в одной транзакции с регистрацией события.
// Возвращает почту и план владельца подписки; пустая почта означает,
// что подходящей записи нет либо событие уже было обработано — и то,
// и другое трактуется вызывающей стороной как no-op.
func (s *Storage) UpdateSubscriptionStatusByProviderID(ctx context.Context, eventID, providerSubID, status string) (email, plan string, err error) {
	const op = "storage.UpdateSubscriptionStatusByProviderID"
	select {
	case <-ctx.Done():
		return "", "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	fresh, err := markEventProcessed(ctx, tx, eventID)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if !fresh {
		return "", "", tx.Commit()
	}

	query := `UPDATE subscriptions
			  SET status = $1
			  FROM users
			  WHERE subscriptions.user_uid = users.uid
			    AND subscriptions.provider_subscription_id = $2
			  RETURNING users.email, subscriptions.plan;`
	row := tx.QueryRowContext(ctx, query, status, providerSubID)
	if err = row.Scan(&email, &plan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Событие для неизвестной подписки: фиксируем его и выходим без изменений.
			return "", "", tx.Commit()
		}
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return email, plan, nil
}

// CancelSubscription отменяет активную подписку пользователя атомарно
// с запросом к платёжному провайдеру: строка подписки блокируется на время
// транзакции, затем выполняется удалённая отмена, и только после её успеха
// локальный статус переводится в canceled и транзакция фиксируется.
// Любая ошибка, включая таймаут удалённого вызова, откатывает транзакцию —
// локальная запись не может разойтись с провайдером в сторону canceled.
func (s *Storage) CancelSubscription(ctx context.Context, email string, cancelRemote func(ctx context.Context, providerSubID string) error) error {
	const op = "storage.CancelSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT s.id, s.provider_subscription_id
			  FROM subscriptions s
			  JOIN users u ON u.uid = s.user_uid
			  WHERE u.email = $1 AND s.status = $2
			  FOR UPDATE OF s`
	var subID int
	var providerSubID string
	row := tx.QueryRowContext(ctx, query, email, models.SubscriptionStatusActive)
	if err = row.Scan(&subID, &providerSubID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = cancelRemote(ctx, providerSubID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET status = $1 WHERE id = $2`,
		models.SubscriptionStatusCanceled, subID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
