// Package status реализует HTTP-обработчик проверки статуса подписки.
//
// Отсутствие записи о подписке и неактивный статус одинаково дают
// subscribed=false и никогда не являются ошибкой.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/planboard/addin-backend/internal/http/middlewarectx"
	"github.com/planboard/addin-backend/internal/http/response"
	"github.com/planboard/addin-backend/internal/lib/sl"
	"github.com/planboard/addin-backend/internal/models"
)

// Service описывает интерфейс бизнес-логики проверки подписки.
type Service interface {
	CheckSubscription(ctx context.Context, email string) (models.SubscriptionStatusInfo, error)
}

// Handler обрабатывает HTTP-запросы статуса подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler с указанными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Статус подписки пользователя
// @Description Возвращает subscribed и план текущего пользователя.
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} models.SubscriptionStatusInfo "Статус подписки"
// @Failure 401 {object} response.ErrorResponse "Нет или недействительный токен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email, ok := middlewarectx.EmailFromContext(r.Context())
	if !ok {
		log.Error("missing email in request context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	info, err := h.service.CheckSubscription(r.Context(), email)
	if err != nil {
		log.Error("subscription check failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(info))
}
