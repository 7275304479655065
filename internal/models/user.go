// Package models содержит доменную модель пользователя системы,
// включающую учётные данные, хэш пароля и ссылку на клиента платёжного провайдера.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя надстройки.
type User struct {
	UID               string    // Уникальный идентификатор пользователя
	Email             string    // Электронная почта (уникальная, логин)
	PasswordHash      string    // Хэш пароля пользователя
	BillingCustomerID *string   // Идентификатор клиента у платёжного провайдера (может отсутствовать)
	CreatedAt         time.Time // Дата регистрации
}
