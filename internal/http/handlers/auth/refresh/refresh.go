// Package refresh реализует HTTP-обработчик ротации refresh-токенов.
//
// Предъявленный токен одноразовый: успешный запрос заменяет его значение
// и возвращает новую пару access- и refresh-токенов; повторное предъявление
// старого значения отклоняется.
package refresh

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

// Request — структура входных данных для ротации.
type Request struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Service описывает интерфейс бизнес-логики ротации refresh-токенов.
type Service interface {
	Refresh(ctx context.Context, oldToken string) (token, refresh string, err error)
}

// Handler обрабатывает HTTP-запросы ротации.
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
// @Summary Ротация refresh-токена
// @Description Обменивает действующий refresh-токен на новую пару токенов. Старое значение становится недействительным.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Действующий refresh-токен"
// @Success 200 {object} map[string]any "Новая пара токенов"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Токен не найден, использован или просрочен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.refresh"

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

	token, refresh, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidOrExpiredToken) {
			log.Error("invalid or expired refresh token")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid or expired token"))
			return
		}
		log.Error("refresh failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("refresh token rotated")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":         token,
		"refresh_token": refresh,
	}))
}
