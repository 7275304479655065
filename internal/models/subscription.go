// Package models содержит доменные структуры подписки пользователя.
// Статус подписки всегда является проекцией последнего известного состояния
// объекта подписки у платёжного провайдера.
package models

import "time"

// Статусы подписки, допустимые в локальном хранилище.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Тарифные планы надстройки.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// Subscription представляет локальную запись о подписке пользователя.
type Subscription struct {
	ID                     int       // Идентификатор записи
	UserUID                string    // Владелец подписки (одна подписка на пользователя)
	ProviderSubscriptionID string    // Идентификатор подписки у платёжного провайдера
	Status                 string    // active, past_due или canceled
	Plan                   string    // monthly или yearly
	CurrentPeriodEnd       time.Time // Конец текущего оплаченного периода
}

// SubscriptionStatusInfo используется в ответе проверки статуса подписки.
type SubscriptionStatusInfo struct {
	Subscribed bool   `json:"subscribed"`
	Plan       string `json:"plan,omitempty"`
}

// DunningNotice — сообщение для очереди уведомлений о неуспешном списании.
type DunningNotice struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}
