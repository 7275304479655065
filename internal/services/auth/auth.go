// Package services содержит логику бизнес-уровня для работы с учётными записями,
// аутентификацией и ротацией refresh-токенов.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/lib/jwt"
	"github.com/planboard/addin-backend/internal/lib/password"
	"github.com/planboard/addin-backend/internal/models"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, email, passwordHash string) (string, error)

	// GetUserByEmail возвращает пользователя по почте или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionRepository описывает контракт для работы с refresh-токенами.
type SessionRepository interface {
	// CreateRefreshToken сохраняет новый refresh-токен пользователя.
	CreateRefreshToken(ctx context.Context, userUID, token string, expiresAt time.Time) error

	// GetRefreshToken возвращает запись refresh-токена по значению.
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// RotateRefreshToken атомарно заменяет значение токена и возвращает почту владельца.
	RotateRefreshToken(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (string, error)

	// DeleteRefreshToken удаляет запись refresh-токена.
	DeleteRefreshToken(ctx context.Context, token string) error
}

// AuthService отвечает за регистрацию, авторизацию, валидацию access-токенов
// и ротацию refresh-токенов.
type AuthService struct {
	users           UserRepository
	sessions        SessionRepository
	jwtMaker        jwt.Maker
	extendedTTL     time.Duration // срок access-токена для точки входа с длинной сессией
	refreshTokenTTL time.Duration
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, sessions SessionRepository, jwtMaker jwt.Maker,
	extendedTTL, refreshTokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:           users,
		sessions:        sessions,
		jwtMaker:        jwtMaker,
		extendedTTL:     extendedTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Register создает нового пользователя с хэшированием пароля.
// Токены при регистрации не выдаются: требуется явный вход.
func (s *AuthService) Register(ctx context.Context, email, rawPassword string) (string, error) {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", err
	}
	return s.users.RegisterUser(ctx, email, hashed)
}

// Login проверяет пароль пользователя и выдаёт пару access- и refresh-токенов.
// Неизвестная почта и неверный пароль возвращают одну и ту же ошибку:
// ответ не должен раскрывать, существует ли учётная запись.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string, extended bool) (token, refresh string, err error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", apperr.ErrInvalidCredentials
		}
		return "", "", err
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", apperr.ErrInvalidCredentials
	}

	if extended {
		token, err = s.jwtMaker.GenerateTokenWithTTL(user.Email, s.extendedTTL)
	} else {
		token, err = s.jwtMaker.GenerateToken(user.Email)
	}
	if err != nil {
		return "", "", err
	}

	refresh = uuid.NewString()
	if err = s.sessions.CreateRefreshToken(ctx, user.UID, refresh, time.Now().UTC().Add(s.refreshTokenTTL)); err != nil {
		return "", "", err
	}
	return token, refresh, nil
}

// Refresh валидирует refresh-токен и выполняет его ротацию: значение токена
// заменяется на месте одним условным обновлением, после чего выпускается
// новый access-токен того же пользователя. Старое значение становится
// недействительным; повторная ротация того же значения завершается ошибкой.
func (s *AuthService) Refresh(ctx context.Context, oldToken string) (token, refresh string, err error) {
	const op = "services.auth.Refresh"

	rt, err := s.sessions.GetRefreshToken(ctx, oldToken)
	if err != nil {
		return "", "", err
	}
	if time.Now().UTC().After(rt.ExpiresAt) {
		// Просроченный токен уничтожается и трактуется как отсутствующий.
		if delErr := s.sessions.DeleteRefreshToken(ctx, oldToken); delErr != nil {
			return "", "", fmt.Errorf("%s: %w", op, delErr)
		}
		return "", "", apperr.ErrInvalidOrExpiredToken
	}

	refresh = uuid.NewString()
	email, err := s.sessions.RotateRefreshToken(ctx, oldToken, refresh, time.Now().UTC().Add(s.refreshTokenTTL))
	if err != nil {
		return "", "", err
	}

	token, err = s.jwtMaker.GenerateToken(email)
	if err != nil {
		return "", "", err
	}
	return token, refresh, nil
}

// ValidateToken проверяет access-токен и возвращает почту пользователя.
func (s *AuthService) ValidateToken(_ context.Context, token string) (string, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}
