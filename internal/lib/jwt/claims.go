// Package jwt реализует генерацию и парсинг access-токенов с пользовательскими claim полями.
//
// CustomClaims расширяет стандартные claims JWT, добавляя электронную почту пользователя.
//
// Методы GenerateToken и ParseToken реализуют создание и валидацию токена с заданными claims.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims описывает пользовательские данные, хранящиеся в access-токене.
type CustomClaims struct {
	Email                string `json:"email"` // Электронная почта пользователя
	jwt.RegisteredClaims        // Встроенные стандартные claims JWT (ExpiresAt, IssuedAt и пр.)
}

// GenerateToken создает токен для email со сроком действия по умолчанию.
func (j *MakerImpl) GenerateToken(email string) (string, error) {
	return j.GenerateTokenWithTTL(email, j.tokenTTL)
}

// GenerateTokenWithTTL создает токен для email с заданным сроком действия,
// подписывая его секретным ключом.
func (j *MakerImpl) GenerateTokenWithTTL(email string, ttl time.Duration) (string, error) {
	claims := CustomClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken парсит токен, проверяет его подпись и срок действия,
// возвращает CustomClaims с данными, если токен корректен.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
