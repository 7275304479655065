package models

import "time"

// RefreshToken представляет серверную запись о refresh-токене сессии.
// Ровно одна действующая запись на линию сессии: при ротации значение
// токена заменяется на месте, новая строка не создаётся.
type RefreshToken struct {
	ID        int       // Идентификатор записи
	Token     string    // Опак-значение токена (уникальное)
	UserUID   string    // Владелец токена
	ExpiresAt time.Time // Срок действия (UTC)
}

// ResetToken представляет одноразовый токен восстановления пароля.
// Уничтожается при успешном использовании либо при обнаружении истечения срока.
type ResetToken struct {
	ID        int       // Идентификатор записи
	Token     string    // Значение токена из ссылки восстановления (уникальное)
	Email     string    // Электронная почта владельца
	ExpiresAt time.Time // Срок действия, один час с момента выпуска (UTC)
}
