// Package resetpass содержит логику бизнес-уровня восстановления пароля:
// выпуск одноразовых токенов со сроком действия и их применение
// с принудительным выходом со всех сессий пользователя.
package resetpass

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/lib/password"
	"github.com/planboard/addin-backend/internal/lib/sl"
	"github.com/planboard/addin-backend/internal/models"
)

// UserRepository описывает чтение пользователей.
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ResetRepository описывает контракт для работы с токенами восстановления.
type ResetRepository interface {
	CreateResetToken(ctx context.Context, email, token string, expiresAt time.Time) error
	GetResetToken(ctx context.Context, token string) (*models.ResetToken, error)
	DeleteResetToken(ctx context.Context, id int) error

	// ResetPassword применяет восстановление одной транзакцией:
	// новый хэш пароля, удаление всех refresh-токенов пользователя,
	// удаление использованного токена восстановления.
	ResetPassword(ctx context.Context, email, passwordHash string, resetTokenID int) error
}

// Notifier отправляет пользователю ссылку восстановления.
type Notifier interface {
	SendResetLink(email, link string) error
}

// ResetService отвечает за жизненный цикл токенов восстановления пароля.
type ResetService struct {
	users    UserRepository
	resets   ResetRepository
	notifier Notifier
	log      *slog.Logger

	linkBaseURL string
	tokenTTL    time.Duration
}

// New создает новый экземпляр ResetService.
func New(users UserRepository, resets ResetRepository, notifier Notifier,
	log *slog.Logger, linkBaseURL string, tokenTTL time.Duration) *ResetService {
	return &ResetService{
		users:       users,
		resets:      resets,
		notifier:    notifier,
		log:         log,
		linkBaseURL: linkBaseURL,
		tokenTTL:    tokenTTL,
	}
}

// RequestReset выпускает токен восстановления и отправляет ссылку на почту.
// Для несуществующей почты возвращает nil без каких-либо действий: ответ
// одинаков в обоих случаях, чтобы не допустить перебор учётных записей.
// Ошибка отправки письма возвращается вызывающей стороне: токен к этому
// моменту уже сохранён, и молча проглатывать сбой нельзя.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	const op = "services.resetpass.RequestReset"

	if _, err := s.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.Info("reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	token := uuid.NewString()
	if err := s.resets.CreateResetToken(ctx, email, token, time.Now().UTC().Add(s.tokenTTL)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	link := s.linkBaseURL + "?token=" + token
	if err := s.notifier.SendResetLink(email, link); err != nil {
		s.log.Error("failed to send reset link", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConfirmReset применяет токен восстановления: устанавливает новый пароль,
// удаляет все refresh-токены пользователя и сам токен восстановления.
// Просроченный токен уничтожается и для вызывающей стороны неотличим
// от отсутствующего.
func (s *ResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	const op = "services.resetpass.ConfirmReset"

	rt, err := s.resets.GetResetToken(ctx, token)
	if err != nil {
		return err
	}
	if time.Now().UTC().After(rt.ExpiresAt) {
		if delErr := s.resets.DeleteResetToken(ctx, rt.ID); delErr != nil {
			return fmt.Errorf("%s: %w", op, delErr)
		}
		return apperr.ErrInvalidOrExpiredToken
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.resets.ResetPassword(ctx, rt.Email, hashed, rt.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
