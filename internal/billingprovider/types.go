package billingprovider

// Customer — клиент у платёжного провайдера.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// customerList — ответ провайдера на поиск клиентов по почте.
type customerList struct {
	Data []Customer `json:"data"`
}

// CreateCustomerRequest — запрос на создание клиента.
type CreateCustomerRequest struct {
	Email string `json:"email"`
}

// CheckoutSession — сессия оплаты; URL используется для редиректа пользователя.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSessionRequest — запрос на создание сессии оплаты подписки.
type CreateCheckoutSessionRequest struct {
	CustomerID string `json:"customer"`
	PriceID    string `json:"price"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// Subscription — объект подписки у провайдера; авторитетный источник
// статуса и тарифа для локальной проекции.
type Subscription struct {
	ID               string `json:"id"`
	CustomerID       string `json:"customer"`
	CustomerEmail    string `json:"customer_email"`
	Status           string `json:"status"`
	PriceID          string `json:"price"`
	CurrentPeriodEnd int64  `json:"current_period_end"` // unix-секунды
}
