// Package billingprovider реализует HTTP-клиент платёжного провайдера:
// поиск и создание клиентов, сессии оплаты, чтение и отмена подписок.
package billingprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/planboard/addin-backend/internal/apperr"
)

type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент платёжного провайдера.
func NewClient(apiURL, secretKey string) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	reqURL := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrRemoteProvider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: unexpected status %s", apperr.ErrRemoteProvider, resp.Status)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrRemoteProvider, err)
	}
	return nil
}

// FindCustomerByEmail ищет клиента по почте. Возвращает nil без ошибки,
// если клиент у провайдера ещё не заведён.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/customers?email="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, err
	}
	var list customerList
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}
	return &list.Data[0], nil
}

// CreateCustomer создаёт клиента у провайдера.
func (c *Client) CreateCustomer(ctx context.Context, email string) (*Customer, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/customers", CreateCustomerRequest{Email: email})
	if err != nil {
		return nil, err
	}
	var customer Customer
	if err := c.do(req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCheckoutSession создаёт сессию оплаты подписки и возвращает URL редиректа.
func (c *Client) CreateCheckoutSession(ctx context.Context, reqParams CreateCheckoutSessionRequest) (*CheckoutSession, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/checkout/sessions", reqParams)
	if err != nil {
		return nil, err
	}
	var session CheckoutSession
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSubscription возвращает авторитетный объект подписки провайдера.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/subscriptions/"+id, nil)
	if err != nil {
		return nil, err
	}
	var sub Subscription
	if err := c.do(req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription отменяет подписку у провайдера.
func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/v1/subscriptions/"+id, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
