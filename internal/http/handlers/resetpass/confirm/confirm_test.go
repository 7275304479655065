package confirm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/planboard/addin-backend/internal/apperr"
)

// Мок сервиса с методом ConfirmReset
type ResetServiceMock struct {
	mock.Mock
}

func (m *ResetServiceMock) ConfirmReset(ctx context.Context, token, newPassword string) error {
	args := m.Called(ctx, token, newPassword)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestConfirmHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(m *ResetServiceMock)
		wantStatusCode int
		wantMessage    string
		wantError      string
		wantStatus     string
	}{
		{
			name: "successful confirm",
			requestBody: Request{
				Token:       "valid-reset-token",
				NewPassword: "newpassword123",
			},
			setupMock: func(m *ResetServiceMock) {
				m.On("ConfirmReset", mock.Anything, "valid-reset-token", "newpassword123").
					Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantMessage:    "password updated successfully",
			wantStatus:     "OK",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
			wantStatus:     "Error",
		},
		{
			name: "validation error - short new password",
			requestBody: Request{
				Token:       "valid-reset-token",
				NewPassword: "short",
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "field NewPassword is shorter than the minimum length",
			wantStatus:     "Error",
		},
		{
			name: "unknown, used or expired token",
			requestBody: Request{
				Token:       "stale-token",
				NewPassword: "newpassword123",
			},
			setupMock: func(m *ResetServiceMock) {
				m.On("ConfirmReset", mock.Anything, "stale-token", "newpassword123").
					Return(apperr.ErrInvalidOrExpiredToken).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid or expired token",
			wantStatus:     "Error",
		},
		{
			name: "service error",
			requestBody: Request{
				Token:       "valid-reset-token",
				NewPassword: "newpassword123",
			},
			setupMock: func(m *ResetServiceMock) {
				m.On("ConfirmReset", mock.Anything, "valid-reset-token", "newpassword123").
					Return(errors.New("db error")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
			wantStatus:     "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(ResetServiceMock)
			handler := New(newNoopLogger(), serviceMock)

			if tt.setupMock != nil {
				tt.setupMock(serviceMock)
			}

			var bodyBytes []byte
			var err error
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/reset-password/confirm", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got["status"])

			if tt.wantError != "" {
				errStr, ok := got["error"].(string)
				assert.True(t, ok)
				assert.Equal(t, tt.wantError, errStr)
			}

			if tt.wantMessage != "" {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, tt.wantMessage, data["message"])
			}

			serviceMock.AssertExpectations(t)
		})
	}
}
