// Package request реализует HTTP-обработчик запроса восстановления пароля.
//
// Ответ одинаков для существующей и несуществующей почты: обработчик
// не раскрывает, зарегистрирована ли учётная запись.
package request

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/planboard/addin-backend/internal/http/response"
	"github.com/planboard/addin-backend/internal/lib/sl"
)

// Request — структура входных данных запроса восстановления.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service описывает интерфейс бизнес-логики восстановления пароля.
type Service interface {
	RequestReset(ctx context.Context, email string) error
}

// Handler обрабатывает HTTP-запросы восстановления пароля.
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
// @Summary Запрос восстановления пароля
// @Description Отправляет ссылку восстановления, если почта зарегистрирована. Ответ одинаков в любом случае.
// @Tags ResetPassword
// @Accept  json
// @Produce  json
// @Param request body Request true "Почта пользователя"
// @Success 200 {object} map[string]any "Общий ответ"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.resetpass.request"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	if err := h.service.RequestReset(r.Context(), req.Email); err != nil {
		log.Error("reset request failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("reset request processed")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "if the email is registered, a reset link has been sent",
	}))
}
