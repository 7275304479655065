// Package confirm реализует HTTP-обработчик применения токена восстановления пароля.
//
// Успешный запрос устанавливает новый пароль и завершает все сессии пользователя.
// Отсутствующий, использованный и просроченный токены неразличимы в ответе.
package confirm

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
	"github.com/planboard/addin-backend/internal/http/response"
	"github.com/planboard/addin-backend/internal/lib/sl"
)

// Request — структура входных данных применения восстановления.
type Request struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// Service описывает интерфейс бизнес-логики восстановления пароля.
type Service interface {
	ConfirmReset(ctx context.Context, token, newPassword string) error
}

// Handler обрабатывает HTTP-запросы применения восстановления.
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
// @Summary Применение токена восстановления пароля
// @Description Устанавливает новый пароль и завершает все сессии пользователя. Токен одноразовый.
// @Tags ResetPassword
// @Accept  json
// @Produce  json
// @Param request body Request true "Токен и новый пароль"
// @Success 200 {object} map[string]any "Пароль обновлён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON, ошибка валидации либо недействительный токен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /reset-password/confirm [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.resetpass.confirm"

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

	if err := h.service.ConfirmReset(r.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, apperr.ErrInvalidOrExpiredToken) {
			log.Error("invalid or expired reset token")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid or expired token"))
			return
		}
		log.Error("reset confirm failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("password reset confirmed")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "password updated successfully",
	}))
}
