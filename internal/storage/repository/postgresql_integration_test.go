package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planboard/addin-backend/internal/apperr"
	"github.com/planboard/addin-backend/internal/models"
)

func TestStorage_RegisterUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	uid, err := storage.RegisterUser(context.Background(), "test@example.com", "hashedpassword")
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	// Повторная регистрация той же почты
	_, err = storage.RegisterUser(context.Background(), "test@example.com", "anotherhash")
	assert.ErrorIs(t, err, apperr.ErrDuplicateIdentity)
}

func TestStorage_GetUserByEmail(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "hashedpassword")

	got, err := storage.GetUserByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, uid, got.UID)
	assert.Equal(t, "test@example.com", got.Email)
	assert.Equal(t, "hashedpassword", got.PasswordHash)
	assert.Nil(t, got.BillingCustomerID)

	_, err = storage.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStorage_GetOrCreateUserByEmail(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	existingUID := factory.CreateUser(t, "existing@example.com", "hashedpassword")

	// Существующая почта возвращает ту же запись
	got, err := storage.GetOrCreateUserByEmail(context.Background(), "existing@example.com")
	require.NoError(t, err)
	assert.Equal(t, existingUID, got.UID)
	assert.Equal(t, "hashedpassword", got.PasswordHash)

	// Для неизвестной почты создается запись без пароля
	created, err := storage.GetOrCreateUserByEmail(context.Background(), "webhook-only@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)
	assert.Empty(t, created.PasswordHash)
}

func TestStorage_SetBillingCustomerID(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "hashedpassword")

	err := storage.SetBillingCustomerID(context.Background(), uid, "cus_123")
	require.NoError(t, err)

	got, err := storage.GetUserByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, got.BillingCustomerID)
	assert.Equal(t, "cus_123", *got.BillingCustomerID)
}

func TestStorage_RotateRefreshToken(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "hashedpassword")
	factory.CreateRefreshToken(t, uid, "old-token", time.Now().UTC().Add(time.Hour))

	email, err := storage.RotateRefreshToken(context.Background(),
		"old-token", "new-token", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", email)

	// Ротация заменяет значение на месте: строк не прибавляется
	verification := NewTestVerification(storage)
	verification.VerifyRefreshTokenCount(t, uid, 1)

	// Старое значение одноразовое: второй обмен того же токена отклоняется
	_, err = storage.RotateRefreshToken(context.Background(),
		"old-token", "another-token", time.Now().UTC().Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)

	// Новое значение остается рабочим
	rt, err := storage.GetRefreshToken(context.Background(), "new-token")
	require.NoError(t, err)
	assert.Equal(t, uid, rt.UserUID)
}

func TestStorage_GetRefreshToken_Unknown(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := storage.GetRefreshToken(context.Background(), "missing-token")
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)
}

func TestStorage_ResetPassword(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "oldhash")
	factory.CreateRefreshToken(t, uid, "session-1", time.Now().UTC().Add(time.Hour))
	factory.CreateRefreshToken(t, uid, "session-2", time.Now().UTC().Add(time.Hour))
	resetID := factory.CreateResetToken(t, "test@example.com", "reset-token", time.Now().UTC().Add(time.Hour))

	err := storage.ResetPassword(context.Background(), "test@example.com", "newhash", resetID)
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifyPasswordHash(t, "test@example.com", "newhash")
	// Все сессии пользователя завершены, токен восстановления уничтожен
	verification.VerifyRefreshTokenCount(t, uid, 0)
	verification.VerifyResetTokenDeleted(t, resetID)
}

func TestStorage_ResetPassword_UnknownEmailRollsBack(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	resetID := factory.CreateResetToken(t, "ghost@example.com", "reset-token", time.Now().UTC().Add(time.Hour))

	err := storage.ResetPassword(context.Background(), "ghost@example.com", "newhash", resetID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Токен восстановления не удален: транзакция откатилась целиком
	var count int
	err = storage.DB.QueryRow("SELECT COUNT(*) FROM reset_tokens WHERE id = $1", resetID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorage_UpsertActiveSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "hashedpassword")

	periodEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	sub := models.Subscription{
		UserUID:                uid,
		ProviderSubscriptionID: "sub_1",
		Status:                 models.SubscriptionStatusActive,
		Plan:                   models.PlanMonthly,
		CurrentPeriodEnd:       periodEnd,
	}

	err := storage.UpsertActiveSubscription(context.Background(), "evt_1", sub)
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifySubscriptionStatus(t, uid, models.SubscriptionStatusActive)
	verification.VerifyEventProcessed(t, "evt_1")

	// Повторная доставка того же события ничего не меняет
	sub.Plan = models.PlanYearly
	err = storage.UpsertActiveSubscription(context.Background(), "evt_1", sub)
	require.NoError(t, err)

	got, err := storage.GetSubscriptionByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PlanMonthly, got.Plan)

	// Новое событие обновляет существующую запись того же пользователя
	sub.Plan = models.PlanYearly
	sub.ProviderSubscriptionID = "sub_2"
	err = storage.UpsertActiveSubscription(context.Background(), "evt_2", sub)
	require.NoError(t, err)

	got, err = storage.GetSubscriptionByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PlanYearly, got.Plan)
	assert.Equal(t, "sub_2", got.ProviderSubscriptionID)
}

func TestStorage_UpdateSubscriptionStatusByProviderID(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "hashedpassword")
	factory.CreateSubscription(t, uid, "sub_1", models.SubscriptionStatusActive, models.PlanMonthly,
		time.Now().UTC().Add(30*24*time.Hour))

	email, plan, err := storage.UpdateSubscriptionStatusByProviderID(context.Background(),
		"evt_1", "sub_1", models.SubscriptionStatusPastDue)
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", email)
	assert.Equal(t, models.PlanMonthly, plan)

	verification := NewTestVerification(storage)
	verification.VerifySubscriptionStatus(t, uid, models.SubscriptionStatusPastDue)
	verification.VerifyEventProcessed(t, "evt_1")

	// Повторная доставка того же события: состояние не меняется, почта пустая
	email, _, err = storage.UpdateSubscriptionStatusByProviderID(context.Background(),
		"evt_1", "sub_1", models.SubscriptionStatusActive)
	require.NoError(t, err)
	assert.Empty(t, email)
	verification.VerifySubscriptionStatus(t, uid, models.SubscriptionStatusPastDue)

	// Неизвестная подписка провайдера подтверждается как no-op
	email, _, err = storage.UpdateSubscriptionStatusByProviderID(context.Background(),
		"evt_2", "sub_unknown", models.SubscriptionStatusActive)
	require.NoError(t, err)
	assert.Empty(t, email)
	verification.VerifyEventProcessed(t, "evt_2")
}

func TestStorage_GetSubscriptionByEmail_NoRecord(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, "test@example.com", "hashedpassword")

	_, err := storage.GetSubscriptionByEmail(context.Background(), "test@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStorage_CancelSubscription(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		cancelRemote func(ctx context.Context, providerSubID string) error
		wantErr      error
		wantStatus   string
	}{
		{
			name:   "successful cancellation",
			status: models.SubscriptionStatusActive,
			cancelRemote: func(_ context.Context, providerSubID string) error {
				return nil
			},
			wantStatus: models.SubscriptionStatusCanceled,
		},
		{
			name:   "remote failure rolls back local state",
			status: models.SubscriptionStatusActive,
			cancelRemote: func(_ context.Context, _ string) error {
				return errors.New("provider unavailable")
			},
			wantErr:    errors.New("provider unavailable"),
			wantStatus: models.SubscriptionStatusActive,
		},
		{
			name:   "already canceled subscription",
			status: models.SubscriptionStatusCanceled,
			cancelRemote: func(_ context.Context, _ string) error {
				t.Fatal("remote cancel must not be called")
				return nil
			},
			wantErr:    apperr.ErrNotFound,
			wantStatus: models.SubscriptionStatusCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			uid := factory.CreateUser(t, "test@example.com", "hashedpassword")
			factory.CreateSubscription(t, uid, "sub_1", tt.status, models.PlanMonthly,
				time.Now().UTC().Add(30*24*time.Hour))

			err := storage.CancelSubscription(context.Background(), "test@example.com", tt.cancelRemote)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			} else {
				require.NoError(t, err)
			}

			verification := NewTestVerification(storage)
			verification.VerifySubscriptionStatus(t, uid, tt.wantStatus)
		})
	}
}

func TestStorage_CancelSubscription_NoSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, "test@example.com", "hashedpassword")

	err := storage.CancelSubscription(context.Background(), "test@example.com",
		func(_ context.Context, _ string) error { return nil })
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
