// Package unsubscribe реализует HTTP-обработчик отмены подписки.
//
// Отмена у платёжного провайдера и локальный перевод записи в canceled
// выполняются атомарно: при любом сбое локальное состояние не меняется.
package unsubscribe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/http/middlewarectx"
	"github.com/planboard/addin-backend/internal/http/response"
	"github.com/planboard/addin-backend/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Unsubscribe(ctx context.Context, email string) error
}

// Handler обрабатывает HTTP-запросы отмены подписки.
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
// @Summary Отмена подписки
// @Description Отменяет активную подписку текущего пользователя у провайдера и локально.
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Подписка отменена"
// @Failure 401 {object} response.ErrorResponse "Нет или недействительный токен"
// @Failure 404 {object} response.ErrorResponse "Активная подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.unsubscribe"

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

	if err := h.service.Unsubscribe(r.Context(), email); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Error("no active subscription", slog.String("email", email))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("not found"))
			return
		}
		log.Error("unsubscribe failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("subscription canceled", slog.String("email", email))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "subscription canceled",
	}))
}
