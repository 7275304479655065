package checkout

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/http/middlewarectx"
)

// Мок сервиса с методом CreateCheckoutSession
type BillingServiceMock struct {
	mock.Mock
}

func (m *BillingServiceMock) CreateCheckoutSession(ctx context.Context, email, plan string) (string, error) {
	args := m.Called(ctx, email, plan)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCheckoutHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		contextEmail   string
		requestBody    interface{}
		setupMock      func(m *BillingServiceMock)
		wantStatusCode int
		wantData       map[string]any
		wantError      string
	}{
		{
			name:         "successful checkout",
			contextEmail: "user1@example.com",
			requestBody:  Request{Plan: "monthly"},
			setupMock: func(m *BillingServiceMock) {
				m.On("CreateCheckoutSession", mock.Anything, "user1@example.com", "monthly").
					Return("https://pay.example.com/cs_1", nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantData: map[string]any{
				"checkout_url": "https://pay.example.com/cs_1",
			},
		},
		{
			name:           "missing email in context",
			requestBody:    Request{Plan: "monthly"},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "unauthorized",
		},
		{
			name:           "invalid json body",
			contextEmail:   "user1@example.com",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - unsupported plan",
			contextEmail:   "user1@example.com",
			requestBody:    Request{Plan: "weekly"},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "field Plan has an unsupported value",
		},
		{
			name:         "user not found",
			contextEmail: "user1@example.com",
			requestBody:  Request{Plan: "yearly"},
			setupMock: func(m *BillingServiceMock) {
				m.On("CreateCheckoutSession", mock.Anything, "user1@example.com", "yearly").
					Return("", apperr.ErrNotFound).Once()
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      "not found",
		},
		{
			name:         "provider error",
			contextEmail: "user1@example.com",
			requestBody:  Request{Plan: "monthly"},
			setupMock: func(m *BillingServiceMock) {
				m.On("CreateCheckoutSession", mock.Anything, "user1@example.com", "monthly").
					Return("", errors.New("provider unavailable")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(BillingServiceMock)
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

			req := httptest.NewRequest(http.MethodPost, "/subscription/checkout", bytes.NewReader(bodyBytes))
			if tt.contextEmail != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.UserEmail, tt.contextEmail)
				req = req.WithContext(ctx)
			}

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			if tt.wantError != "" {
				errStr, ok := got["error"].(string)
				assert.True(t, ok)
				assert.Equal(t, tt.wantError, errStr)
			}

			if tt.wantData != nil {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				for k, v := range tt.wantData {
					assert.Equal(t, v, data[k])
				}
			}

			serviceMock.AssertExpectations(t)
		})
	}
}
