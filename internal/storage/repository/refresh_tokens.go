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

// CreateRefreshToken сохраняет новый refresh-токен для пользователя.
func (s *Storage) CreateRefreshToken(ctx context.Context, userUID, token string, expiresAt time.Time) error {
	const op = "storage.CreateRefreshToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO refresh_tokens (token, user_uid, expires_at)
			  VALUES ($1, $2, $3);`
	if _, err := s.DB.ExecContext(ctx, query, token, userUID, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetRefreshToken возвращает запись refresh-токена по его значению.
// Отсутствующая запись возвращает apperr.ErrInvalidOrExpiredToken.
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const op = "storage.GetRefreshToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, token, user_uid, expires_at
			  FROM refresh_tokens
			  WHERE token = $1`
	rt := &models.RefreshToken{}
	row := s.DB.QueryRowContext(ctx, query, token)
	if err := row.Scan(&rt.ID, &rt.Token, &rt.UserUID, &rt.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidOrExpiredToken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rt, nil
}

// RotateRefreshToken атомарно заменяет значение токена на новое
// и продлевает срок действия, возвращая почту владельца. Замена выполняется
// одним условным UPDATE по старому значению: из двух конкурентных ротаций
// одной строки успешной будет ровно одна, вторая не найдёт строку и получит
// apperr.ErrInvalidOrExpiredToken.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (string, error) {
	const op = "storage.RotateRefreshToken"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_tokens
			  SET token = $2,
			      expires_at = $3
			  FROM users
			  WHERE refresh_tokens.token = $1
			    AND users.uid = refresh_tokens.user_uid
			  RETURNING users.email;`
	var email string
	if err := s.DB.QueryRowContext(ctx, query, oldToken, newToken, expiresAt).Scan(&email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, apperr.ErrInvalidOrExpiredToken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return email, nil
}

// DeleteRefreshToken удаляет запись refresh-токена по его значению.
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	const op = "storage.DeleteRefreshToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM refresh_tokens WHERE token = $1`
	if _, err := s.DB.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
