// Package webhook реализует HTTP-обработчик событий платёжного провайдера.
//
// Запрос аутентифицируется подписью HMAC-SHA256 над сырым телом с общим
// секретом. Нераспознанные виды событий подтверждаются как no-op:
// провайдер повторяет доставку при любом ответе, отличном от 2xx.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/planboard/addin-backend/internal/lib/sl"
	"github.com/planboard/addin-backend/internal/services/billing"
)

// Service описывает интерфейс обработки webhook-событий.
type Service interface {
	HandleEvent(ctx context.Context, event *billing.ProviderEvent) error
}

// Handler обрабатывает webhook-запросы платёжного провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler с указанными логгером, сервисом и секретом.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// verifySignature проверяет подпись webhook-запроса (X-Api-Signature)
// сравнением, устойчивым к атакам по времени.
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Webhook платёжного провайдера
// @Description Принимает подписанные события провайдера и синхронизирует локальную запись о подписке.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Success 200 "Событие применено или проигнорировано"
// @Failure 400 "Неверная подпись или некорректное тело"
// @Failure 500 "Внутренняя ошибка сервера"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var event billing.ProviderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.service.HandleEvent(r.Context(), &event); err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed successfully",
		slog.String("event", event.Type), slog.String("event_id", event.ID))
	w.WriteHeader(http.StatusOK)
}
