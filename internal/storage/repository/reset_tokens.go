package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/models"
)

// CreateResetToken сохраняет новый токен восстановления пароля.
// Несколько действующих токенов на одну почту допустимы,
// каждый из них одноразовый.
func (s *Storage) CreateResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	const op = "storage.CreateResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO reset_tokens (token, email, expires_at)
			  VALUES ($1, $2, $3);`
	if _, err := s.DB.ExecContext(ctx, query, token, email, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetResetToken возвращает запись токена восстановления по его значению.
// Отсутствующая запись возвращает apperr.ErrInvalidOrExpiredToken.
func (s *Storage) GetResetToken(ctx context.Context, token string) (*models.ResetToken, error) {
	const op = "storage.GetResetToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, token, email, expires_at
			  FROM reset_tokens
			  WHERE token = $1`
	rt := &models.ResetToken{}
	row := s.DB.QueryRowContext(ctx, query, token)
	if err := row.Scan(&rt.ID, &rt.Token, &rt.Email, &rt.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidOrExpiredToken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rt, nil
}

// DeleteResetToken удаляет запись токена восстановления по идентификатору.
// Используется для очистки просроченных токенов при попытке их применения.
func (s *Storage) DeleteResetToken(ctx context.Context, id int) error {
	const op = "storage.DeleteResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM reset_tokens WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetPassword применяет восстановление пароля одной транзакцией:
// обновляет хэш пароля, удаляет все refresh-токены пользователя
// (принудительный выход со всех сессий) и удаляет использованный
// токен восстановления. Частичное применение невозможно: при ошибке
// на любом шаге транзакция откатывается целиком.
func (s *Storage) ResetPassword(ctx context.Context, email, passwordHash string, resetTokenID int) error {
	const op = "storage.ResetPassword"
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

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE email = $2`,
		passwordHash, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM refresh_tokens
		 USING users
		 WHERE refresh_tokens.user_uid = users.uid AND users.email = $1`,
		email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE id = $1`,
		resetTokenID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
