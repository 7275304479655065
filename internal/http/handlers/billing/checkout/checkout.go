// Package checkout реализует HTTP-обработчик создания сессии оплаты подписки.
//
// Обработчик возвращает URL страницы оплаты у платёжного провайдера,
// на которую клиент перенаправляет пользователя.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/http/middlewarectx"
	"github.com/planboard/addin-backend/internal/http/response"
	"github.com/planboard/addin-backend/internal/lib/sl"
)

// Request — структура входных данных создания сессии оплаты.
type Request struct {
	Plan string `json:"plan" validate:"required,oneof=monthly yearly"`
}

// Service описывает интерфейс бизнес-логики оформления подписки.
type Service interface {
	CreateCheckoutSession(ctx context.Context, email, plan string) (string, error)
}

// Handler обрабатывает HTTP-запросы создания сессии оплаты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler с указанными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создание сессии оплаты подписки
// @Description Создаёт у платёжного провайдера сессию оплаты выбранного плана и возвращает URL редиректа.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Выбранный план"
// @Success 200 {object} map[string]any "URL страницы оплаты"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Нет или недействительный токен"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	url, err := h.service.CreateCheckoutSession(r.Context(), email, req.Plan)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Error("user not found", slog.String("email", email))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("not found"))
			return
		}
		log.Error("checkout session creation failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("checkout session created", slog.String("plan", req.Plan))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"checkout_url": url,
	}))
}
