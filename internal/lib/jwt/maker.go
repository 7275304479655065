// Package jwt реализует генерацию и парсинг access-токенов.
//
// Maker определяет интерфейс для создания и проверки токенов, привязанных
// к электронной почте пользователя. MakerImpl — конкретная реализация
// с использованием секретного ключа и срока действия по умолчанию.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга access-токенов.
//
// Токен не хранится на сервере: его действительность определяется
// только подписью и сроком действия.
type Maker interface {
	// GenerateToken выпускает токен со сроком действия по умолчанию.
	GenerateToken(email string) (string, error)
	// GenerateTokenWithTTL выпускает токен с явным сроком действия,
	// для точек входа с длинной сессией.
	GenerateTokenWithTTL(email string, ttl time.Duration) (string, error)
	// ParseToken возвращает *CustomClaims, если токен корректен.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL) по умолчанию.
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена по умолчанию.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
